package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendPredictionIDs persists the prediction ids for a job in a single
// transaction. Insertion order is preserved: the poller later reads the ids
// back in the order the creation requests were issued.
func (s *Store) AppendPredictionIDs(jobID string, predictionIDs []string) error {
	if len(predictionIDs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT OR IGNORE INTO job_predictions (job_id, prediction_id, created_at)
        VALUES (?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, predictionID := range predictionIDs {
		if _, err := stmt.Exec(jobID, predictionID, time.Now()); err != nil {
			return fmt.Errorf("failed to insert prediction id %s: %w", predictionID, err)
		}
	}

	return tx.Commit()
}

// ListPredictionIDs returns all prediction ids for a job, ordered by the time
// they were recorded. An unknown job yields an empty slice, not an error.
func (s *Store) ListPredictionIDs(jobID string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT prediction_id FROM job_predictions WHERE job_id = ? ORDER BY created_at ASC, rowid ASC",
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// JobExists reports whether any prediction ids have been persisted for a job.
func (s *Store) JobExists(jobID string) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		"SELECT 1 FROM job_predictions WHERE job_id = ? LIMIT 1", jobID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeletePredictionIDs removes every persisted prediction id for a job.
func (s *Store) DeletePredictionIDs(jobID string) error {
	_, err := s.db.Exec("DELETE FROM job_predictions WHERE job_id = ?", jobID)
	return err
}

// CountJobs returns the number of distinct jobs with persisted predictions.
func (s *Store) CountJobs() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(DISTINCT job_id) FROM job_predictions").Scan(&count)
	return count, err
}
