// Package scheduler implements the Job Scheduler (C7): the worker pool,
// batched commit protocol, pause/cancel/resume control, and error-threshold
// halt behavior that drive both import and export jobs.
package scheduler

import "context"

// ControlSignal is delivered over a per-job buffered channel and observed
// by the control loop at well-defined yield points (spec.md §9: "explicit
// ControlSignal channel" replacing a monkey-patched status column poll).
type ControlSignal int

const (
	SignalPause ControlSignal = iota
	SignalCancel
	SignalResume
)

// Scheduler is the interface HTTP/CLI code depends on. Its one production
// implementation, PoolScheduler, is dispatched two ways: inline by the
// import/export commands for a foreground run, or popped off the
// persistent task queue by the worker command for a background run in a
// separate process — the path a Signal sent from yet another process
// reaches via the durable *_REQUESTED statuses rather than this struct's
// in-memory control channel (see Store.SetStatus callers in cmd/mediaparser).
type Scheduler interface {
	// RunImport drives an import job to a terminal state (or to PAUSED),
	// blocking until it does.
	RunImport(ctx context.Context, jobID int64) error
	// RunExport drives an export job the same way.
	RunExport(ctx context.Context, jobID int64) error
	// Signal delivers a control signal to a running job. Returns false if
	// the job has no active control loop to receive it.
	Signal(jobID int64, signal ControlSignal) bool
}
