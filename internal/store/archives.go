package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveArchive replaces the cached archive of a module
func (s *Store) SaveArchive(a *CachedArchive) error {
	if a.FetchedAt.IsZero() {
		a.FetchedAt = time.Now()
	}
	return s.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM archives WHERE module_id = ?`, a.ModuleID); err != nil {
			return fmt.Errorf("failed to clear archive cache: %w", err)
		}
		_, err := tx.Exec(`
			INSERT INTO archives (module_id, points, body, fetched_at)
			VALUES (?, ?, ?, ?)
		`, a.ModuleID, a.Points, a.Body, a.FetchedAt)
		if err != nil {
			return fmt.Errorf("failed to cache archive: %w", err)
		}
		return nil
	})
}

// LoadArchive returns the cached archive of a module, or (nil, nil)
func (s *Store) LoadArchive(moduleID string) (*CachedArchive, error) {
	a := &CachedArchive{}
	err := s.db.QueryRow(`
		SELECT module_id, points, body, fetched_at
		FROM archives WHERE module_id = ?
	`, moduleID).Scan(&a.ModuleID, &a.Points, &a.Body, &a.FetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load archive cache: %w", err)
	}
	return a, nil
}
