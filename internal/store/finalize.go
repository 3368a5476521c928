package store

import (
	"context"
	"database/sql"
)

// PurgeJob deletes every row associated with a job — file_tags, then
// user_decisions, then files, then the job itself — in the FK-safe order
// spec.md §3/§6 require ("deletions happen only in finalize"). GCUnusedTags
// should be called afterward by the caller, once, outside this per-job
// transaction, since a tag can be shared across jobs.
func PurgeJob(ctx context.Context, tx *sql.Tx, jobID int64) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM file_tags WHERE file_id IN (SELECT id FROM files WHERE job_id = ?)`, jobID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM user_decisions WHERE file_id IN (SELECT id FROM files WHERE job_id = ?)`, jobID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}
