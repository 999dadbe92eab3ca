package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

const jobColumns = `id, kind, status, payload, progress, message, attempts, max_attempts,
              error, created_at, started_at, finished_at`

func scanSyncJob(sc rowScanner) (*models.SyncJob, error) {
	var job models.SyncJob
	var payload string
	err := sc.Scan(
		&job.ID, &job.Kind, &job.Status, &payload, &job.Progress, &job.Message,
		&job.Attempts, &job.MaxAttempts, &job.Error, &job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	return &job, nil
}

// SaveSyncJob inserts the job row or refreshes it in place. The
// orchestrator calls this on every status change.
func (db *DB) SaveSyncJob(ctx context.Context, job *models.SyncJob) error {
	query := `INSERT INTO sync_jobs (id, kind, status, payload, progress, message, attempts,
              max_attempts, error, created_at, started_at, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  status = excluded.status,
                  progress = excluded.progress,
                  message = excluded.message,
                  attempts = excluded.attempts,
                  error = excluded.error,
                  started_at = excluded.started_at,
                  finished_at = excluded.finished_at`
	payload := string(job.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := db.ExecContext(ctx, query,
		job.ID, job.Kind, job.Status, payload, job.Progress, job.Message, job.Attempts,
		job.MaxAttempts, job.Error, job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync job: %w", err)
	}
	return nil
}

func (db *DB) GetSyncJob(ctx context.Context, id string) (*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = ?`
	job, err := scanSyncJob(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	return job, nil
}

// ListSyncJobs returns the most recent jobs, optionally filtered by
// kind.
func (db *DB) ListSyncJobs(ctx context.Context, kind string, limit int) ([]*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs ORDER BY created_at DESC LIMIT ?`
	args := []interface{}{limit}
	if kind != "" {
		query = `SELECT ` + jobColumns + ` FROM sync_jobs WHERE kind = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{kind, limit}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteFinishedJobsBefore removes completed and failed job rows older
// than the cutoff, returning how many were dropped.
func (db *DB) DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_jobs WHERE status IN (?, ?) AND finished_at < ?`
	result, err := db.ExecContext(ctx, query, models.JobStatusCompleted, models.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return result.RowsAffected()
}
