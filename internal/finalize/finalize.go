// Package finalize implements the destructive end-of-lifecycle operation
// spec.md §4.9/§6 describes: deleting working data for a completed job while
// preserving its exported output tree.
package finalize

import (
	"context"
	"fmt"
	"os"

	"mediaparser/internal/store"
)

// Options holds the two finalize flags Run implements, delete_sources and
// clear_database. There is no option to clean working files: Run never
// removes thumbnails.
type Options struct {
	// DeleteSources removes a file's storage_path copy, but only when it
	// differs from original_path — i.e. only staged upload working copies,
	// never a server-path import's original file on the user's disk.
	DeleteSources bool
	// ClearDatabase purges the job's File/Decision/Tag-association rows
	// after exported outputs are already on disk.
	ClearDatabase bool
}

// Run executes the finalize sequence for a job. The output tree under
// OUTPUT_ROOT is never touched; only uploads/job_<id> working copies and,
// optionally, the job's Store rows are removed.
func Run(ctx context.Context, st *store.Store, jobID int64, opts Options) error {
	if opts.DeleteSources {
		files, err := st.FilesByJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("finalize: list files: %w", err)
		}
		for _, f := range files {
			if f.StoragePath == f.OriginalPath {
				continue
			}
			if err := os.Remove(f.StoragePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("finalize: remove working copy %s: %w", f.StoragePath, err)
			}
		}
	}

	if opts.ClearDatabase {
		tx, err := st.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("finalize: begin tx: %w", err)
		}
		if err := store.PurgeJob(ctx, tx, jobID); err != nil {
			tx.Rollback()
			return fmt.Errorf("finalize: purge job %d: %w", jobID, err)
		}
		if err := store.GCUnusedTags(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("finalize: gc unused tags: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("finalize: commit: %w", err)
		}
	}

	return nil
}
