package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Transaction is one ledger row. Expenses carry negative amounts,
// income positive. Category may be unassigned when the categorization
// attempt failed.
type Transaction struct {
	ID          int64     `json:"id"`
	ExternalID  string    `json:"external_id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant"`
	CategoryID  *int64    `json:"category_id"`
	Category    string    `json:"category,omitempty"`
	Source      string    `json:"source"`
}

// CategorySummary aggregates spending for one category.
type CategorySummary struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// InsertTransaction writes one row atomically. Inserting a reference
// that already exists is a no-op; the return value reports whether the
// row was new. categoryID may be nil when categorization failed.
// Currency defaults to CHF and source to manual when unset.
func (s *Store) InsertTransaction(t Transaction) (bool, error) {
	var category interface{}
	if t.CategoryID != nil {
		category = *t.CategoryID
	}
	if t.Currency == "" {
		t.Currency = "CHF"
	}
	if t.Source == "" {
		t.Source = "manual"
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO transactions (external_id, date, amount, currency, description, merchant, category_id, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ExternalID, t.Date, t.Amount, t.Currency, t.Description, t.Merchant, category, t.Source, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

// DeleteByExternalIDs removes the rows for the given references.
func (s *Store) DeleteByExternalIDs(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.Exec(
		"DELETE FROM transactions WHERE external_id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return res.RowsAffected()
}

// ListExternalIDs returns every reference currently in the ledger.
func (s *Store) ListExternalIDs() (map[string]bool, error) {
	rows, err := s.db.Query("SELECT external_id FROM transactions")
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ListFilter narrows ListTransactions. Zero values mean "no filter".
type ListFilter struct {
	Category string
	Since    time.Time
	Limit    int
	Offset   int
}

// ListTransactions returns rows newest-first, joined with their
// category names.
func (s *Store) ListTransactions(f ListFilter) ([]Transaction, error) {
	query := `
		SELECT t.id, t.external_id, t.date, t.amount, t.currency, t.description, t.merchant, t.category_id, c.name, t.source
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE 1=1`
	var args []interface{}
	if f.Category != "" {
		query += " AND c.name = ?"
		args = append(args, f.Category)
	}
	if !f.Since.IsZero() {
		query += " AND t.date >= ?"
		args = append(args, f.Since)
	}
	query += " ORDER BY t.date DESC, t.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SummarizeByCategory aggregates expense totals per category since the
// given time. Amounts are reported as positive spend.
func (s *Store) SummarizeByCategory(since time.Time) ([]CategorySummary, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(c.name, 'Uncategorized'), SUM(-t.amount), COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.amount < 0 AND t.date >= ?
		GROUP BY c.name
		ORDER BY SUM(-t.amount) DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize: %w", err)
	}
	defer rows.Close()

	var out []CategorySummary
	for rows.Next() {
		var cs CategorySummary
		if err := rows.Scan(&cs.Category, &cs.Total, &cs.Count); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// CategoryAverage returns the mean absolute expense amount for a
// category, or 0 when the category has no expenses yet.
func (s *Store) CategoryAverage(categoryID int64) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT AVG(-amount) FROM transactions WHERE category_id = ? AND amount < 0
	`, categoryID).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute category average: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// CategorySpent returns total positive spend for a category inside a
// date range.
func (s *Store) CategorySpent(categoryID int64, from, to time.Time) (float64, error) {
	var spent sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT SUM(-amount) FROM transactions
		WHERE category_id = ? AND amount < 0 AND date >= ? AND date < ?
	`, categoryID, from, to).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("failed to compute spend: %w", err)
	}
	if !spent.Valid {
		return 0, nil
	}
	return spent.Float64, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	var categoryID sql.NullInt64
	var categoryName sql.NullString
	var merchant sql.NullString
	if err := row.Scan(&t.ID, &t.ExternalID, &t.Date, &t.Amount, &t.Currency, &t.Description, &merchant, &categoryID, &categoryName, &t.Source); err != nil {
		return Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}
	t.Merchant = merchant.String
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	t.Category = categoryName.String
	return t, nil
}
