package tools

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/sandbox"
	"spendwise/internal/store"
)

// setBudgetTool writes a weekly budget for one category.
type setBudgetTool struct {
	guard  *sandbox.Guard
	store  *store.Store
	dbPath string
}

// NewSetBudget creates the set_budget tool.
func NewSetBudget(guard *sandbox.Guard, st *store.Store, dbPath string) Tool {
	return &setBudgetTool{guard: guard, store: st, dbPath: dbPath}
}

func (t *setBudgetTool) Name() string { return "set_budget" }

func (t *setBudgetTool) Description() string {
	return "Set the spending limit for a category for the current week."
}

func (t *setBudgetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"category": map[string]interface{}{"type": "string"},
			"amount":   map[string]interface{}{"type": "number"},
		},
		"required": []string{"category", "amount"},
	}
}

func (t *setBudgetTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	category, err := stringArg(t.Name(), args, "category")
	if err != nil {
		return nil, err
	}
	amount, err := positiveArg(t.Name(), args, "amount")
	if err != nil {
		return nil, err
	}
	// Budgets are writes; the read-write grant is required.
	if err := t.guard.Filesystem(t.dbPath, true); err != nil {
		return nil, err
	}

	id, ok := t.store.CategoryID(category)
	if !ok {
		return nil, &ValidationError{Tool: t.Name(), Field: "category", Reason: fmt.Sprintf("unknown category %q", category)}
	}
	start, end := store.WeekPeriod(time.Now())
	if err := t.store.UpsertBudget(id, amount, start, end); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"category":     category,
		"amount":       amount,
		"period_start": start.Format("2006-01-02"),
		"period_end":   end.Format("2006-01-02"),
	}, nil
}

// listBudgetsTool reports active budgets with usage.
type listBudgetsTool struct {
	guard  *sandbox.Guard
	store  *store.Store
	dbPath string
}

// NewListBudgets creates the list_budgets tool.
func NewListBudgets(guard *sandbox.Guard, st *store.Store, dbPath string) Tool {
	return &listBudgetsTool{guard: guard, store: st, dbPath: dbPath}
}

func (t *listBudgetsTool) Name() string { return "list_budgets" }

func (t *listBudgetsTool) Description() string {
	return "List active budgets with spent, remaining, and status (ok, warning, over)."
}

func (t *listBudgetsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *listBudgetsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := t.guard.Filesystem(t.dbPath, false); err != nil {
		return nil, err
	}
	return t.store.BudgetStatuses(time.Now().UTC())
}
