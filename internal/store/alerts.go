package store

import (
	"fmt"
	"time"
)

// MarkAlerted records an alert dedup key. The insert is atomic: the
// return value reports whether this call claimed the key, so across
// restarts and replays at most one caller sees fresh=true per key.
func (s *Store) MarkAlerted(key string) (bool, error) {
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO alerts (dedup_key, created_at) VALUES (?, ?)",
		key, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read alert result: %w", err)
	}
	return n == 1, nil
}
