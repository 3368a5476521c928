package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaparser/internal/export"
	"mediaparser/internal/extractor"
	"mediaparser/internal/metadataprobe"
	"mediaparser/internal/model"
	"mediaparser/internal/store"
)

type fakeProbe struct{}

func (fakeProbe) GetAll(ctx context.Context, path string) (map[string]string, error) {
	return map[string]string{}, nil
}
func (fakeProbe) DetectMime(ctx context.Context, path string) (string, error) {
	return "image/jpeg", nil
}
func (fakeProbe) Dimensions(ctx context.Context, path string) (int, int, bool, error) {
	return 100, 100, true, nil
}
func (fakeProbe) WriteTags(ctx context.Context, path string, tags metadataprobe.Tags) error {
	return nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "mediaparser.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunImportProcessesAllPendingFilesAndCompletes(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	dir := t.TempDir()

	jobID, err := st.CreateJob(ctx, model.JobTypeImport, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		name := filepath.Base(dir) + "_" + string(rune('a'+i)) + ".jpg"
		path := writeTempFile(t, dir, name, "content")
		if _, err := st.CreateFile(ctx, jobID, name, path, path); err != nil {
			t.Fatal(err)
		}
	}

	ex := extractor.New(fakeProbe{}, time.UTC, nil)
	sched := New(st, ex, nil, Settings{WorkerThreads: 2, BatchCommitSize: 2})

	if err := sched.RunImport(ctx, jobID); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobCompleted {
		t.Errorf("got status %v, want COMPLETED", job.Status)
	}
	if job.ProgressCurrent != 3 {
		t.Errorf("got progress_current %d, want 3", job.ProgressCurrent)
	}

	files, err := st.FilesByJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if f.SHA256 == "" {
			t.Errorf("file %d: expected sha256 to be set after extraction", f.ID)
		}
	}
}

func TestRunImportHaltsOnErrorThreshold(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	jobID, err := st.CreateJob(ctx, model.JobTypeImport, 20)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		name := "missing_" + string(rune('a'+i)) + ".jpg"
		if _, err := st.CreateFile(ctx, jobID, name, "/nonexistent/"+name, "/nonexistent/"+name); err != nil {
			t.Fatal(err)
		}
	}

	ex := extractor.New(fakeProbe{}, time.UTC, nil)
	sched := New(st, ex, nil, Settings{WorkerThreads: 2, BatchCommitSize: 5, ErrorThreshold: 0.10})

	if err := sched.RunImport(ctx, jobID); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobHalted {
		t.Errorf("got status %v, want HALTED (every file errors, past the 10%% threshold)", job.Status)
	}
}

func TestRunExportCopiesFilesAndSetsOutputPath(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	srcDir := t.TempDir()
	outDir := t.TempDir()

	jobID, err := st.CreateJob(ctx, model.JobTypeImport, 1)
	if err != nil {
		t.Fatal(err)
	}
	path := writeTempFile(t, srcDir, "photo.jpg", "image-bytes")
	fileID, err := st.CreateFile(ctx, jobID, "photo.jpg", path, path)
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2022, 4, 9, 8, 30, 0, 0, time.UTC)
	sum := sha256.Sum256([]byte("image-bytes"))
	tx, err := st.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ApplyExtraction(ctx, tx, fileID, model.ExtractionResult{
		Status: model.ExtractionSuccess, SHA256: hex.EncodeToString(sum[:]), ChosenInstant: &ts, ChosenSource: "EXIF:DateTimeOriginal",
		Confidence: model.ConfidenceHigh,
	}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	exporter := export.New(fakeProbe{}, outDir, nil)
	sched := New(st, nil, exporter, Settings{WorkerThreads: 1, BatchCommitSize: 1})

	if err := sched.RunExport(ctx, jobID); err != nil {
		t.Fatalf("RunExport: %v", err)
	}

	f, err := st.GetFile(ctx, fileID)
	if err != nil {
		t.Fatal(err)
	}
	if f.OutputPath == "" {
		t.Fatal("expected output_path to be set")
	}
	if _, err := os.Stat(f.OutputPath); err != nil {
		t.Errorf("expected the exported copy to exist at %s: %v", f.OutputPath, err)
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.JobCompleted {
		t.Errorf("got status %v, want COMPLETED", job.Status)
	}
}
