package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenWiresStoreQueueAndScheduler(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("OUTPUT_DIR", filepath.Join(dir, "out"))
	os.Setenv("MEDIAPARSER_STORE_DB_PATH", filepath.Join(dir, "mediaparser.db"))
	os.Setenv("MEDIAPARSER_QUEUE_DB_PATH", filepath.Join(dir, "queue.db"))
	defer os.Unsetenv("OUTPUT_DIR")
	defer os.Unsetenv("MEDIAPARSER_STORE_DB_PATH")
	defer os.Unsetenv("MEDIAPARSER_QUEUE_DB_PATH")

	c, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if c.Store == nil || c.Queue == nil || c.Scheduler == nil || c.Review == nil || c.Probe == nil {
		t.Fatal("expected Open to populate every dependency")
	}
}
