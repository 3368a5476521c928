package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mediaparser/internal/model"
)

// CreateFile inserts a placeholder File row at the moment a Job is
// enqueued (C7), before extraction has run.
func (s *Store) CreateFile(ctx context.Context, jobID int64, originalFilename, originalPath, storagePath string) (int64, error) {
	now := nowUTC()
	var id int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO files (job_id, original_filename, original_path, storage_path,
				confidence, timestamp_candidates, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'NONE', '[]', ?, ?)`,
			jobID, originalFilename, originalPath, storagePath, now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetFile returns a single File by id.
func (s *Store) GetFile(ctx context.Context, id int64) (model.File, error) {
	row := s.db.QueryRowContext(ctx, fileSelectColumns+` FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// GetFileTx is GetFile read within an already-open transaction, used by C9
// operations that must observe a file's current group/state before
// mutating it in the same transaction.
func GetFileTx(ctx context.Context, tx *sql.Tx, id int64) (model.File, error) {
	row := tx.QueryRowContext(ctx, fileSelectColumns+` FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// PendingFiles returns a job's files with no sha256 yet, ordered by
// original_filename, matching the Import job algorithm's "pending" filter
// in spec.md §4.7.
func (s *Store) PendingFiles(ctx context.Context, jobID int64) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectColumns+`
		FROM files WHERE job_id = ? AND sha256 IS NULL ORDER BY original_filename`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// PendingExportFiles returns a job's files with no output_path yet, the
// export job's pending filter per spec.md §4.10.
func (s *Store) PendingExportFiles(ctx context.Context, jobID int64) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectColumns+`
		FROM files WHERE job_id = ? AND output_path IS NULL AND discarded = 0
		ORDER BY original_filename`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FilesByJob returns every file belonging to a job, for C8 clustering.
func (s *Store) FilesByJob(ctx context.Context, jobID int64) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectColumns+`
		FROM files WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FilesByExactGroup returns every file sharing an exact_group_id, including
// discarded members (callers filter as needed).
func (s *Store) FilesByExactGroup(ctx context.Context, groupID string) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectColumns+`
		FROM files WHERE exact_group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FilesBySimilarGroup returns every file sharing a similar_group_id.
func (s *Store) FilesBySimilarGroup(ctx context.Context, groupID string) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx, fileSelectColumns+`
		FROM files WHERE similar_group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// CountFiles returns the total number of files belonging to a job.
func (s *Store) CountFiles(ctx context.Context, jobID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE job_id = ?`, jobID).Scan(&n)
	return n, err
}

// ApplyExtraction persists an ExtractionResult onto a File row within an
// already-open transaction (the Scheduler controls commit boundaries per
// spec.md §4.6). sha256 is monotone per invariant 4: a second extraction
// never overwrites a sha256 that is already set.
func ApplyExtraction(ctx context.Context, tx *sql.Tx, fileID int64, r model.ExtractionResult) error {
	now := nowUTC()

	if r.Status == model.ExtractionError {
		_, err := tx.ExecContext(ctx, `
			UPDATE files SET processing_error = ?, updated_at = ?
			WHERE id = ?`, r.ErrorMessage, now, fileID)
		return err
	}

	candidatesJSON, err := json.Marshal(r.Candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}

	var chosenStr *string
	if r.ChosenInstant != nil {
		s := r.ChosenInstant.UTC().Format(time.RFC3339Nano)
		chosenStr = &s
	}

	var width, height *int
	if r.HasDimensions {
		w, h := r.Width, r.Height
		width, height = &w, &h
	}

	var phash *string
	if r.PerceptualHash != "" {
		phash = &r.PerceptualHash
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE files SET
			sha256 = COALESCE(sha256, ?),
			perceptual_hash = ?,
			mime_type = ?,
			size_bytes = ?,
			width = ?,
			height = ?,
			detected_timestamp = ?,
			timestamp_source = ?,
			timestamp_candidates = ?,
			confidence = ?,
			processing_error = NULL,
			updated_at = ?
		WHERE id = ?`,
		r.SHA256, phash, r.MimeType, r.SizeBytes, width, height,
		chosenStr, r.ChosenSource, string(candidatesJSON), string(r.Confidence),
		now, fileID)
	return err
}

// SetOutputPath records where export wrote a file's corrected copy
// (spec.md §4.10, invariant 7).
func SetOutputPath(ctx context.Context, tx *sql.Tx, fileID int64, outputPath string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE files SET output_path = ?, updated_at = ? WHERE id = ?`,
		outputPath, nowUTC(), fileID)
	return err
}

// SetGroups updates a file's exact/similar group assignments, used by C8.
func SetGroups(ctx context.Context, tx *sql.Tx, fileID int64,
	exactGroupID string, exactConfidence model.ConfidenceLevel,
	similarGroupID string, similarConfidence model.ConfidenceLevel, similarType model.GroupType) error {

	_, err := tx.ExecContext(ctx, `
		UPDATE files SET
			exact_group_id = NULLIF(?, ''),
			exact_group_confidence = NULLIF(?, ''),
			similar_group_id = NULLIF(?, ''),
			similar_group_confidence = NULLIF(?, ''),
			similar_group_type = NULLIF(?, ''),
			updated_at = ?
		WHERE id = ?`,
		exactGroupID, string(exactConfidence), similarGroupID, string(similarConfidence),
		string(similarType), nowUTC(), fileID)
	return err
}

// ClearGroups dissolves a file's group membership (cardinality invariant 3:
// a group with one remaining member has its fields cleared).
func ClearGroups(ctx context.Context, tx *sql.Tx, fileID int64, exact, similar bool) error {
	if exact {
		if _, err := tx.ExecContext(ctx, `
			UPDATE files SET exact_group_id = NULL, exact_group_confidence = NULL, updated_at = ?
			WHERE id = ?`, nowUTC(), fileID); err != nil {
			return err
		}
	}
	if similar {
		if _, err := tx.ExecContext(ctx, `
			UPDATE files SET similar_group_id = NULL, similar_group_confidence = NULL,
				similar_group_type = NULL, updated_at = ?
			WHERE id = ?`, nowUTC(), fileID); err != nil {
			return err
		}
	}
	return nil
}

// SetCandidates overwrites a file's timestamp_candidates list, used by C9's
// discard and bulk_discard accumulation (spec.md §4.9) to fold a discarded file's
// candidates into a kept sibling before severing its group link.
func SetCandidates(ctx context.Context, tx *sql.Tx, fileID int64, candidates []model.TimestampCandidate) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE files SET timestamp_candidates = ?, updated_at = ? WHERE id = ?`,
		string(data), nowUTC(), fileID)
	return err
}

// SetReview sets or clears the reviewed/final-timestamp fields.
func SetReview(ctx context.Context, tx *sql.Tx, fileID int64, finalTimestamp *time.Time, reviewed bool) error {
	var ts *string
	if finalTimestamp != nil {
		s := finalTimestamp.UTC().Format(time.RFC3339Nano)
		ts = &s
	}
	var reviewedAt *string
	if reviewed {
		s := nowUTC()
		reviewedAt = &s
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE files SET final_timestamp = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?`, ts, reviewedAt, nowUTC(), fileID)
	return err
}

// SetDiscarded toggles the discarded flag; per invariant 1, discarding
// clears reviewed_at and final_timestamp in the same statement.
func SetDiscarded(ctx context.Context, tx *sql.Tx, fileID int64, discarded bool) error {
	if discarded {
		_, err := tx.ExecContext(ctx, `
			UPDATE files SET discarded = 1, reviewed_at = NULL, final_timestamp = NULL,
				exact_group_id = NULL, exact_group_confidence = NULL,
				similar_group_id = NULL, similar_group_confidence = NULL, similar_group_type = NULL,
				updated_at = ?
			WHERE id = ?`, nowUTC(), fileID)
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE files SET discarded = 0, updated_at = ? WHERE id = ?`, nowUTC(), fileID)
	return err
}

const fileSelectColumns = `SELECT
	id, job_id, original_filename, original_path, storage_path,
	COALESCE(size_bytes, 0), COALESCE(mime_type, ''), COALESCE(width, 0), COALESCE(height, 0),
	COALESCE(sha256, ''), COALESCE(perceptual_hash, ''),
	detected_timestamp, COALESCE(timestamp_source, ''), final_timestamp,
	timestamp_candidates, confidence,
	reviewed_at, discarded, COALESCE(processing_error, ''),
	COALESCE(exact_group_id, ''), COALESCE(exact_group_confidence, ''),
	COALESCE(similar_group_id, ''), COALESCE(similar_group_confidence, ''), COALESCE(similar_group_type, ''),
	output_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (model.File, error) {
	var f model.File
	var detectedTS, finalTS, reviewedAt, outputPath sql.NullString
	var candidatesJSON string
	var discardedInt int

	err := row.Scan(
		&f.ID, &f.JobID, &f.OriginalFilename, &f.OriginalPath, &f.StoragePath,
		&f.SizeBytes, &f.MimeType, &f.Width, &f.Height,
		&f.SHA256, &f.PerceptualHash,
		&detectedTS, &f.TimestampSource, &finalTS,
		&candidatesJSON, &f.Confidence,
		&reviewedAt, &discardedInt, &f.ProcessingError,
		&f.ExactGroupID, &f.ExactGroupConfidence,
		&f.SimilarGroupID, &f.SimilarGroupConfidence, &f.SimilarGroupType,
		&outputPath, &f.CreatedAt, &f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.File{}, fmt.Errorf("store: %w", model.ErrNotFound)
	}
	if err != nil {
		return model.File{}, err
	}

	f.Discarded = discardedInt != 0
	if detectedTS.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, detectedTS.String); perr == nil {
			f.DetectedTimestamp = &t
		}
	}
	if finalTS.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, finalTS.String); perr == nil {
			f.FinalTimestamp = &t
		}
	}
	if reviewedAt.Valid {
		if t, perr := time.Parse(time.RFC3339Nano, reviewedAt.String); perr == nil {
			f.ReviewedAt = &t
		}
	}
	if outputPath.Valid {
		f.OutputPath = outputPath.String
	}
	if candidatesJSON != "" {
		_ = json.Unmarshal([]byte(candidatesJSON), &f.TimestampCandidates)
	}
	return f, nil
}

func scanFiles(rows *sql.Rows) ([]model.File, error) {
	var out []model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
