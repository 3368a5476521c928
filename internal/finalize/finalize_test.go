package finalize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mediaparser/internal/model"
	"mediaparser/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "mediaparser.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunClearDatabasePurgesJobAndFiles(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	jobID, err := st.CreateJob(ctx, model.JobTypeImport, 1)
	if err != nil {
		t.Fatal(err)
	}
	fileID, err := st.CreateFile(ctx, jobID, "a.jpg", "/orig/a.jpg", "/orig/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	tx, err := st.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.AddTag(ctx, tx, fileID, "vacation"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if err := Run(ctx, st, jobID, Options{ClearDatabase: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := st.GetJob(ctx, jobID); err == nil {
		t.Error("expected the job row to be purged")
	}
	if _, err := st.GetFile(ctx, fileID); err == nil {
		t.Error("expected the file row to be purged")
	}
}

func TestRunDeleteSourcesSkipsServerPathImports(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	jobID, err := st.CreateJob(ctx, model.JobTypeImport, 1)
	if err != nil {
		t.Fatal(err)
	}
	orig := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(orig, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateFile(ctx, jobID, "a.jpg", orig, orig); err != nil {
		t.Fatal(err)
	}

	if err := Run(ctx, st, jobID, Options{DeleteSources: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(orig); err != nil {
		t.Errorf("expected the server-path original to survive delete_sources: %v", err)
	}
}
