package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spendwise/internal/sandbox"
	"spendwise/internal/store"
)

// Merchant extracts the merchant from a bank description: the first
// whitespace-separated token.
func Merchant(description string) string {
	fields := strings.Fields(description)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// importTransactionTool writes one bank transaction into the ledger
// with its assigned category.
type importTransactionTool struct {
	guard  *sandbox.Guard
	store  *store.Store
	dbPath string
}

// NewImportTransaction creates the import_transaction tool.
func NewImportTransaction(guard *sandbox.Guard, st *store.Store, dbPath string) Tool {
	return &importTransactionTool{guard: guard, store: st, dbPath: dbPath}
}

func (t *importTransactionTool) Name() string { return "import_transaction" }

func (t *importTransactionTool) Description() string {
	return "Import one bank transaction into the ledger with a category from the taxonomy. Importing an existing reference is a no-op."
}

func (t *importTransactionTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"external_id": map[string]interface{}{"type": "string"},
			"date":        map[string]interface{}{"type": "string", "description": "YYYY-MM-DD"},
			"amount":      map[string]interface{}{"type": "number"},
			"currency":    map[string]interface{}{"type": "string", "description": "ISO code, defaults to CHF"},
			"description": map[string]interface{}{"type": "string"},
			"category":    map[string]interface{}{"type": "string"},
		},
		"required": []string{"external_id", "date", "amount", "description", "category"},
	}
}

func (t *importTransactionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	externalID, err := stringArg(t.Name(), args, "external_id")
	if err != nil {
		return nil, err
	}
	dateStr, err := stringArg(t.Name(), args, "date")
	if err != nil {
		return nil, err
	}
	date, perr := time.Parse("2006-01-02", dateStr)
	if perr != nil {
		if date, perr = time.Parse(time.RFC3339, dateStr); perr != nil {
			return nil, &ValidationError{Tool: t.Name(), Field: "date", Reason: "must be YYYY-MM-DD"}
		}
	}
	amount, err := numberArg(t.Name(), args, "amount")
	if err != nil {
		return nil, err
	}
	currency, err := optionalStringArg(t.Name(), args, "currency")
	if err != nil {
		return nil, err
	}
	description, err := stringArg(t.Name(), args, "description")
	if err != nil {
		return nil, err
	}
	category, err := stringArg(t.Name(), args, "category")
	if err != nil {
		return nil, err
	}
	if err := t.guard.Filesystem(t.dbPath, true); err != nil {
		return nil, err
	}

	categoryID, ok := t.store.CategoryID(category)
	if !ok {
		return nil, &ValidationError{Tool: t.Name(), Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}

	fresh, err := t.store.InsertTransaction(store.Transaction{
		ExternalID:  externalID,
		Date:        date,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Merchant:    Merchant(description),
		CategoryID:  &categoryID,
		Source:      "bank-sync",
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"imported": fresh,
		"category": category,
	}, nil
}
