package store

import (
	"fmt"
	"time"
)

// Budget is a spending limit for one category over one period.
type Budget struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// BudgetStatus is a budget joined with its usage.
type BudgetStatus struct {
	Budget
	Spent        float64 `json:"spent"`
	Remaining    float64 `json:"remaining"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"` // ok | warning | over
}

// WeekPeriod returns the ISO week containing t: Monday 00:00 UTC up to
// (exclusive) the next Monday.
func WeekPeriod(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(weekday - 1))
	return start, start.AddDate(0, 0, 7)
}

// UpsertBudget sets the limit for one category+period. One active
// budget per (category, period); setting it again replaces the amount.
func (s *Store) UpsertBudget(categoryID int64, amount float64, periodStart, periodEnd time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("budget amount must be positive, got %v", amount)
	}
	_, err := s.db.Exec(`
		INSERT INTO budgets (category_id, amount, period_start, period_end, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(category_id, period_start, period_end) DO UPDATE SET
			amount = excluded.amount
	`, categoryID, amount, periodStart, periodEnd, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert budget: %w", err)
	}
	return nil
}

// ListBudgets returns budgets active at the given time.
func (s *Store) ListBudgets(at time.Time) ([]Budget, error) {
	rows, err := s.db.Query(`
		SELECT b.id, b.category_id, c.name, b.amount, b.period_start, b.period_end
		FROM budgets b
		JOIN categories c ON c.id = b.category_id
		WHERE b.period_start <= ? AND b.period_end > ?
		ORDER BY c.name
	`, at, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var out []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Category, &b.Amount, &b.PeriodStart, &b.PeriodEnd); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BudgetStatuses computes usage for every budget active at the given
// time. Warning starts at 80% usage, over at 100%.
func (s *Store) BudgetStatuses(at time.Time) ([]BudgetStatus, error) {
	budgets, err := s.ListBudgets(at)
	if err != nil {
		return nil, err
	}

	var out []BudgetStatus
	for _, b := range budgets {
		spent, err := s.CategorySpent(b.CategoryID, b.PeriodStart, b.PeriodEnd)
		if err != nil {
			return nil, err
		}
		st := BudgetStatus{
			Budget:    b,
			Spent:     spent,
			Remaining: b.Amount - spent,
		}
		if b.Amount > 0 {
			st.UsagePercent = spent / b.Amount * 100
		}
		switch {
		case st.UsagePercent >= 100:
			st.Status = "over"
		case st.UsagePercent >= 80:
			st.Status = "warning"
		default:
			st.Status = "ok"
		}
		out = append(out, st)
	}
	return out, nil
}
