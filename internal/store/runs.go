package store

import (
	"database/sql"
	"fmt"
	"time"
)

const runColumns = `
	id, COALESCE(event_run_id, ''), module_id, tool, COALESCE(input_path, ''),
	COALESCE(input_sha1, ''), COALESCE(intermediate_hash, ''), status, COALESCE(error, ''),
	nr_prec, COALESCE(median_abs_epsilon, 0), COALESCE(datapoint_json, ''), COALESCE(pr_url, ''),
	created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	err := row.Scan(
		&r.ID, &r.EventRunID, &r.ModuleID, &r.Tool, &r.InputPath,
		&r.InputSHA1, &r.IntermediateHash, &r.Status, &r.Error,
		&r.NrPrec, &r.MedianAbsEpsilon, &r.DatapointJSON, &r.PRURL,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// InsertRun inserts or replaces a run record
func (s *Store) InsertRun(r *Run) error {
	if r.Status == "" {
		r.Status = StatusScored
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO runs (id, event_run_id, module_id, tool, input_path, input_sha1,
		                  intermediate_hash, status, error, nr_prec, median_abs_epsilon,
		                  datapoint_json, pr_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			datapoint_json = excluded.datapoint_json,
			pr_url = excluded.pr_url,
			updated_at = excluded.updated_at
	`, r.ID, r.EventRunID, r.ModuleID, r.Tool, r.InputPath, r.InputSHA1,
		r.IntermediateHash, r.Status, r.Error, r.NrPrec, r.MedianAbsEpsilon,
		r.DatapointJSON, r.PRURL, r.CreatedAt, r.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by datapoint id. A missing run is (nil, nil).
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// GetRunsByHash retrieves the runs that produced an intermediate hash
func (s *Store) GetRunsByHash(hash string) ([]*Run, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM runs WHERE intermediate_hash = ? ORDER BY created_at`, hash)
}

// ListRuns returns the latest runs of a module, newest first. An empty
// module lists every module; limit <= 0 means no limit.
func (s *Store) ListRuns(moduleID string, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []interface{}
	if moduleID != "" {
		query += ` WHERE module_id = ?`
		args = append(args, moduleID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryRuns(query, args...)
}

func (s *Store) queryRuns(query string, args ...interface{}) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// MarkSubmitted records the pull request of a run and its final datapoint
func (s *Store) MarkSubmitted(id, prURL, datapointJSON string) error {
	return s.updateRun(id, `
		UPDATE runs SET status = ?, pr_url = ?, datapoint_json = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`, StatusSubmitted, prURL, datapointJSON, time.Now(), id)
}

// MarkFailed records a failed submission. The run stays usable locally.
func (s *Store) MarkFailed(id string, errorMsg string) error {
	return s.updateRun(id, `
		UPDATE runs SET status = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, StatusFailed, errorMsg, time.Now(), id)
}

func (s *Store) updateRun(id, query string, args ...interface{}) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// CountRunsByStatus returns the number of runs with a given status
func (s *Store) CountRunsByStatus(status string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM runs WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}
