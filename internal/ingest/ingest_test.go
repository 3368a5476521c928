package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mediaparser/internal/store"
)

func TestWalkFiltersToAllowedExtensions(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "photo.jpg", "x")
	write(t, dir, "clip.mov", "x")
	write(t, dir, "notes.txt", "x")

	files, errs := Walk(dir)
	if len(errs) != 0 {
		t.Fatalf("unexpected walk errors: %v", errs)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2 (jpg + mov, not txt): %v", len(files), files)
	}
}

func TestCreateJobRegistersOneFilePerDiscoveredPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	write(t, dir, "a.jpg", "x")
	write(t, dir, "b.png", "x")

	st, err := store.Open(filepath.Join(t.TempDir(), "mediaparser.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	jobID, walkErrs, err := CreateJob(ctx, st, dir)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if len(walkErrs) != 0 {
		t.Fatalf("unexpected walk errors: %v", walkErrs)
	}

	job, err := st.GetJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.ProgressTotal != 2 {
		t.Errorf("got progress_total %d, want 2", job.ProgressTotal)
	}

	files, err := st.FilesByJob(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	for _, f := range files {
		if f.OriginalPath != f.StoragePath {
			t.Errorf("expected original_path == storage_path for a server-path import, got %q vs %q",
				f.OriginalPath, f.StoragePath)
		}
	}
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
