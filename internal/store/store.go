// Package store persists the local ledger in SQLite. It is the single
// writer for transactions, categories, budgets, and alert dedup keys.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Category is one entry of the fixed spending taxonomy.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// seedCategories is the taxonomy the importer assigns from. IDs are
// stable so categorization results stay meaningful across restarts.
var seedCategories = []Category{
	{1, "Food & Dining"},
	{2, "Transportation"},
	{3, "Shopping"},
	{4, "Entertainment"},
	{5, "Bills & Utilities"},
	{6, "Healthcare"},
	{7, "Travel"},
	{8, "Income"},
	{9, "Investments"},
	{10, "Other"},
}

// Store wraps the SQLite ledger database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// init creates the schema and seeds the category taxonomy.
func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		date DATETIME NOT NULL,
		amount REAL NOT NULL,
		currency TEXT NOT NULL DEFAULT 'CHF',
		description TEXT NOT NULL,
		merchant TEXT,
		category_id INTEGER,
		source TEXT NOT NULL DEFAULT 'manual',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (category_id) REFERENCES categories(id)
	);

	CREATE TABLE IF NOT EXISTS budgets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id INTEGER NOT NULL,
		amount REAL NOT NULL,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (category_id, period_start, period_end),
		FOREIGN KEY (category_id) REFERENCES categories(id)
	);

	CREATE TABLE IF NOT EXISTS alerts (
		dedup_key TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, c := range seedCategories {
		if _, err := s.db.Exec(
			"INSERT OR IGNORE INTO categories (id, name) VALUES (?, ?)", c.ID, c.Name); err != nil {
			return fmt.Errorf("failed to seed categories: %w", err)
		}
	}

	return nil
}

// ListCategories returns the taxonomy ordered by id.
func (s *Store) ListCategories() ([]Category, error) {
	rows, err := s.db.Query("SELECT id, name FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryID resolves a category name to its id.
func (s *Store) CategoryID(name string) (int64, bool) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM categories WHERE name = ?", name).Scan(&id)
	if err != nil {
		return 0, false
	}
	return id, true
}
