package tools

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/sandbox"
	"spendwise/internal/store"
)

// querySpendingTool answers "how much did I spend on X".
type querySpendingTool struct {
	guard  *sandbox.Guard
	store  *store.Store
	dbPath string
}

// NewQuerySpending creates the query_spending tool.
func NewQuerySpending(guard *sandbox.Guard, st *store.Store, dbPath string) Tool {
	return &querySpendingTool{guard: guard, store: st, dbPath: dbPath}
}

func (t *querySpendingTool) Name() string { return "query_spending" }

func (t *querySpendingTool) Description() string {
	return "Total spending for one category over a period (week, month, or year)."
}

func (t *querySpendingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Category name, e.g. Food & Dining",
			},
			"period": map[string]interface{}{
				"type": "string",
				"enum": []string{"week", "month", "year"},
			},
		},
		"required": []string{"category"},
	}
}

func (t *querySpendingTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	category, err := stringArg(t.Name(), args, "category")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	since, period, err := periodStart(t.Name(), args, now)
	if err != nil {
		return nil, err
	}
	if err := t.guard.Filesystem(t.dbPath, false); err != nil {
		return nil, err
	}

	id, ok := t.store.CategoryID(category)
	if !ok {
		return nil, &ValidationError{Tool: t.Name(), Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	total, err := t.store.CategorySpent(id, since, now)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"category": category,
		"period":   period,
		"total":    total,
	}, nil
}

// listTransactionsTool lists recent ledger rows.
type listTransactionsTool struct {
	guard  *sandbox.Guard
	store  *store.Store
	dbPath string
}

// NewListTransactions creates the list_transactions tool.
func NewListTransactions(guard *sandbox.Guard, st *store.Store, dbPath string) Tool {
	return &listTransactionsTool{guard: guard, store: st, dbPath: dbPath}
}

func (t *listTransactionsTool) Name() string { return "list_transactions" }

func (t *listTransactionsTool) Description() string {
	return "List recent transactions, newest first, optionally filtered by category."
}

func (t *listTransactionsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{"type": "string"},
			"limit":    map[string]interface{}{"type": "integer"},
		},
	}
}

func (t *listTransactionsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	category, err := optionalStringArg(t.Name(), args, "category")
	if err != nil {
		return nil, err
	}
	limit, err := intArg(t.Name(), args, "limit", 20)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		return nil, &ValidationError{Tool: t.Name(), Field: "limit", Reason: "must be between 1 and 100"}
	}
	if err := t.guard.Filesystem(t.dbPath, false); err != nil {
		return nil, err
	}
	return t.store.ListTransactions(store.ListFilter{Category: category, Limit: limit})
}

// spendingSummaryTool aggregates spending per category.
type spendingSummaryTool struct {
	guard  *sandbox.Guard
	store  *store.Store
	dbPath string
}

// NewSpendingSummary creates the spending_summary tool.
func NewSpendingSummary(guard *sandbox.Guard, st *store.Store, dbPath string) Tool {
	return &spendingSummaryTool{guard: guard, store: st, dbPath: dbPath}
}

func (t *spendingSummaryTool) Name() string { return "spending_summary" }

func (t *spendingSummaryTool) Description() string {
	return "Spending totals per category over a period (week, month, or year)."
}

func (t *spendingSummaryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"period": map[string]interface{}{
				"type": "string",
				"enum": []string{"week", "month", "year"},
			},
		},
	}
}

func (t *spendingSummaryTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	since, period, err := periodStart(t.Name(), args, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := t.guard.Filesystem(t.dbPath, false); err != nil {
		return nil, err
	}
	sums, err := t.store.SummarizeByCategory(since)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"period":     period,
		"categories": sums,
	}, nil
}
