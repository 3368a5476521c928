// Package queue persists pending job submissions in a bbolt file, the
// cross-process dispatch channel spec.md §5 describes: the import/export
// commands push a job before running it, the worker command pops and
// dispatches it, and a crashed worker can recover its backlog on restart
// via Pending — independent of the Store's own batched-commit resumption
// story for in-flight file records.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var pendingBucket = []byte("pending_jobs")

// Kind distinguishes which Scheduler method a worker should call for a
// queued entry, since a Job row's own JobType only ever reflects its
// creation as an import and export reuses the same job id.
type Kind string

const (
	KindImport Kind = "import"
	KindExport Kind = "export"
)

// Entry is one not-yet-dispatched job submission.
type Entry struct {
	JobID      int64     `json:"job_id"`
	Kind       Kind      `json:"kind"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue wraps a bbolt database file (queue.db per spec.md §6's filesystem
// layout).
type Queue struct {
	db *bbolt.DB
}

// Open opens or creates the queue file at path.
func Open(path string) (*Queue, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pendingBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: init bucket: %w", err)
	}
	return &Queue{db: db}, nil
}

// Close releases the underlying file handle.
func (q *Queue) Close() error { return q.db.Close() }

// Push records a job as pending dispatch. Idempotent: pushing the same
// jobID twice overwrites the entry rather than duplicating it.
func (q *Queue) Push(jobID int64, kind Kind) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		entry := Entry{JobID: jobID, Kind: kind, EnqueuedAt: time.Now().UTC()}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(keyFor(jobID), data)
	})
}

// Pop removes and returns a pending Entry, arbitrary ordering (the dispatch
// order across restarts is not spec'd beyond "recover the backlog").
// Returns ok=false if the queue is empty.
func (q *Queue) Pop() (Entry, bool, error) {
	var entry Entry
	var found bool
	err := q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		c := b.Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		found = true
		return b.Delete(k)
	})
	return entry, found, err
}

// Remove deletes a specific job's pending entry (e.g. once its Scheduler
// goroutine has actually taken ownership of it).
func (q *Queue) Remove(jobID int64) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(pendingBucket).Delete(keyFor(jobID))
	})
}

// Pending returns every entry still awaiting dispatch, for crash-recovery
// on startup.
func (q *Queue) Pending() ([]Entry, error) {
	var out []Entry
	err := q.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pendingBucket)
		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	return out, err
}

func keyFor(jobID int64) []byte {
	return []byte(fmt.Sprintf("%020d", jobID))
}
