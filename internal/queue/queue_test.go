package queue

import (
	"path/filepath"
	"testing"
)

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestPushPopRoundTrip(t *testing.T) {
	q := openTestQueue(t)

	if err := q.Push(42, KindImport); err != nil {
		t.Fatalf("Push: %v", err)
	}
	entry, ok, err := q.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if !ok || entry.JobID != 42 || entry.Kind != KindImport {
		t.Errorf("got (%+v, %v), want (42/import, true)", entry, ok)
	}

	if _, ok, err := q.Pop(); err != nil || ok {
		t.Errorf("expected empty queue, got ok=%v err=%v", ok, err)
	}
}

func TestPendingSurvivesAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.db")

	q1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	q1.Push(1, KindImport)
	q1.Push(2, KindExport)
	q1.Close()

	q2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q2.Close()

	pending, err := q2.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("got %v, want 2 pending jobs recovered across restart", pending)
	}
}

func TestRemoveDeletesEntry(t *testing.T) {
	q := openTestQueue(t)
	q.Push(7, KindImport)
	if err := q.Remove(7); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	pending, _ := q.Pending()
	if len(pending) != 0 {
		t.Errorf("got %v, want empty after Remove", pending)
	}
}
