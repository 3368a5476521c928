package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mediaparser/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "mediaparser.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRunsMigrationsIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mediaparser.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open (re-running migrations): %v", err)
	}
	s2.Close()
}

func TestCreateJobAndFile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	jobID, err := s.CreateJob(ctx, model.JobTypeImport, 1)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != model.JobPending {
		t.Errorf("got status %v, want PENDING", job.Status)
	}

	fileID, err := s.CreateFile(ctx, jobID, "a.jpg", "/src/a.jpg", "/src/a.jpg")
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	f, err := s.GetFile(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.SHA256 != "" {
		t.Errorf("expected empty sha256 before extraction, got %q", f.SHA256)
	}
}

func TestApplyExtractionIsMonotoneOnSHA256(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	jobID, _ := s.CreateJob(ctx, model.JobTypeImport, 1)
	fileID, _ := s.CreateFile(ctx, jobID, "a.jpg", "/src/a.jpg", "/src/a.jpg")

	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := ApplyExtraction(ctx, tx, fileID, model.ExtractionResult{
		Status: model.ExtractionSuccess, SHA256: "aaa", Confidence: model.ConfidenceLow,
	}); err != nil {
		t.Fatalf("ApplyExtraction: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2, _ := s.BeginTx(ctx)
	if err := ApplyExtraction(ctx, tx2, fileID, model.ExtractionResult{
		Status: model.ExtractionSuccess, SHA256: "bbb", Confidence: model.ConfidenceLow,
	}); err != nil {
		t.Fatalf("second ApplyExtraction: %v", err)
	}
	tx2.Commit()

	f, err := s.GetFile(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.SHA256 != "aaa" {
		t.Errorf("got sha256 %q, want the first-set value aaa (monotone)", f.SHA256)
	}
}

func TestDiscardClearsReviewAndFinalTimestamp(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	jobID, _ := s.CreateJob(ctx, model.JobTypeImport, 1)
	fileID, _ := s.CreateFile(ctx, jobID, "a.jpg", "/src/a.jpg", "/src/a.jpg")

	tx, _ := s.BeginTx(ctx)
	now := time.Now().UTC()
	if err := SetReview(ctx, tx, fileID, &now, true); err != nil {
		t.Fatalf("SetReview: %v", err)
	}
	tx.Commit()

	tx2, _ := s.BeginTx(ctx)
	if err := SetDiscarded(ctx, tx2, fileID, true); err != nil {
		t.Fatalf("SetDiscarded: %v", err)
	}
	tx2.Commit()

	f, err := s.GetFile(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if !f.Discarded {
		t.Error("expected discarded = true")
	}
	if f.ReviewedAt != nil {
		t.Error("expected reviewed_at cleared by discard (invariant 1)")
	}
	if f.FinalTimestamp != nil {
		t.Error("expected final_timestamp cleared by discard (invariant 1)")
	}
}

func TestAddTagThenRemoveTagRestoresUsageCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	jobID, _ := s.CreateJob(ctx, model.JobTypeImport, 1)
	fileID, _ := s.CreateFile(ctx, jobID, "a.jpg", "/src/a.jpg", "/src/a.jpg")

	tx, _ := s.BeginTx(ctx)
	if err := AddTag(ctx, tx, fileID, "vacation"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	tx.Commit()

	tags, err := s.FileTags(ctx, fileID)
	if err != nil {
		t.Fatalf("FileTags: %v", err)
	}
	if len(tags) != 1 || tags[0].UsageCount != 1 {
		t.Fatalf("got %+v, want one tag with usage_count=1", tags)
	}

	tx2, _ := s.BeginTx(ctx)
	if err := RemoveTag(ctx, tx2, fileID, "vacation"); err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	tx2.Commit()

	tags, err = s.FileTags(ctx, fileID)
	if err != nil {
		t.Fatalf("FileTags after remove: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("got %+v, want no tags attached", tags)
	}

	var usage int
	if err := s.db.QueryRowContext(ctx, `SELECT usage_count FROM tags WHERE name = ?`, "vacation").Scan(&usage); err != nil {
		t.Fatalf("read usage_count: %v", err)
	}
	if usage != 0 {
		t.Errorf("got usage_count %d after remove, want 0", usage)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SetSetting(ctx, "OUTPUT_DIR", "/data/output"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, "OUTPUT_DIR")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if !ok || v != "/data/output" {
		t.Errorf("got (%q, %v), want (/data/output, true)", v, ok)
	}
}
