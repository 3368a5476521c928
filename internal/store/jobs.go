package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mediaparser/internal/model"
)

// CreateJob inserts a new job in PENDING status.
func (s *Store) CreateJob(ctx context.Context, jobType model.JobType, total int) (int64, error) {
	now := nowUTC()
	var id int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO jobs (job_type, status, progress_total, created_at)
			VALUES (?, ?, ?, ?)`, string(jobType), string(model.JobPending), total, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

const jobSelectColumns = `SELECT
	id, job_type, status, progress_total, progress_current, error_count,
	COALESCE(current_filename, ''), COALESCE(error_message, ''),
	created_at, started_at, completed_at`

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (model.Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelectColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// GetJobTx re-reads a job's status within an open transaction, used by the
// Scheduler at yield points to observe PAUSED/CANCELLED requests.
func GetJobTx(ctx context.Context, tx *sql.Tx, id int64) (model.Job, error) {
	row := tx.QueryRowContext(ctx, jobSelectColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func scanJob(row rowScanner) (model.Job, error) {
	var j model.Job
	var startedAt, completedAt sql.NullString
	var createdAt string
	var status string

	err := row.Scan(&j.ID, &j.Type, &status, &j.ProgressTotal, &j.ProgressCurrent,
		&j.ErrorCount, &j.CurrentFilename, &j.ErrorMessage, &createdAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return model.Job{}, fmt.Errorf("store: %w", model.ErrNotFound)
	}
	if err != nil {
		return model.Job{}, err
	}
	j.Status = model.JobStatus(status)
	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		j.CreatedAt = t
	}
	if startedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, startedAt.String); perr == nil {
			j.StartedAt = &t
		}
	}
	if completedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, completedAt.String); perr == nil {
			j.CompletedAt = &t
		}
	}
	return j, nil
}

// MarkStarted sets started_at and zeroes error_count, the Import job
// algorithm's first step unless this is a resume (spec.md §4.7 step 1).
func (s *Store) MarkStarted(ctx context.Context, jobID int64) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, started_at = COALESCE(started_at, ?), error_count = 0
			WHERE id = ?`, string(model.JobRunning), nowUTC(), jobID)
		return err
	})
}

// SetStatus transitions a job's status unconditionally. Its callers are the
// Scheduler and the "jobs signal" command in cmd/mediaparser; only the
// latter checks the source state, before its pause/cancel/resume writes.
func (s *Store) SetStatus(ctx context.Context, jobID int64, status model.JobStatus) error {
	return s.withRetry(ctx, func() error {
		var completedAt any
		if status.Terminal() {
			completedAt = nowUTC()
		}
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, completed_at = COALESCE(completed_at, ?) WHERE id = ?`,
			string(status), completedAt, jobID)
		return err
	})
}

// SetStatusTx is SetStatus run inside an already-open transaction, used by
// the Scheduler when a status change must commit atomically with buffered
// file updates.
func SetStatusTx(ctx context.Context, tx *sql.Tx, jobID int64, status model.JobStatus) error {
	var completedAt any
	if status.Terminal() {
		completedAt = nowUTC()
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = COALESCE(completed_at, ?) WHERE id = ?`,
		string(status), completedAt, jobID)
	return err
}

// UpdateProgressTx bumps progress_current/current_filename/error_count
// inside an open transaction, part of the batched commit protocol.
func UpdateProgressTx(ctx context.Context, tx *sql.Tx, jobID int64, progressCurrent, errorCount int, currentFilename string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE jobs SET progress_current = ?, error_count = ?, current_filename = ? WHERE id = ?`,
		progressCurrent, errorCount, currentFilename, jobID)
	return err
}

// SetJobError records a fatal job-level error message and marks the job
// FAILED.
func (s *Store) SetJobError(ctx context.Context, jobID int64, msg string) error {
	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
			string(model.JobFailed), msg, nowUTC(), jobID)
		return err
	})
}
