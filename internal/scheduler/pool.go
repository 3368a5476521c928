package scheduler

import (
	"context"
	"fmt"
	"sync"

	"mediaparser/internal/duplicates"
	"mediaparser/internal/export"
	"mediaparser/internal/extractor"
	"mediaparser/internal/model"
	"mediaparser/internal/store"
)

// Settings are the tunables spec.md's environment table lists as
// per-deployment configuration rather than constants.
type Settings struct {
	WorkerThreads   int
	BatchCommitSize int
	ErrorThreshold  float64 // e.g. 0.10 for the 10% cited in spec.md §4.7
}

// PoolScheduler is the in-process worker-pool Scheduler: one control
// goroutine per active job drives a fixed-size pool of extraction (or
// export) workers, exactly as spec.md §4.7/§5 describe.
type PoolScheduler struct {
	Store     *store.Store
	Extractor *extractor.Extractor
	Exporter  *export.Exporter
	Settings  Settings

	mu       sync.Mutex
	controls map[int64]chan ControlSignal
}

// New returns a PoolScheduler ready to drive import and export jobs.
func New(st *store.Store, ex *extractor.Extractor, exporter *export.Exporter, settings Settings) *PoolScheduler {
	if settings.WorkerThreads < 1 {
		settings.WorkerThreads = 1
	}
	if settings.BatchCommitSize < 1 {
		settings.BatchCommitSize = 10
	}
	if settings.ErrorThreshold <= 0 {
		settings.ErrorThreshold = 0.10
	}
	return &PoolScheduler{
		Store: st, Extractor: ex, Exporter: exporter, Settings: settings,
		controls: make(map[int64]chan ControlSignal),
	}
}

func (p *PoolScheduler) register(jobID int64) chan ControlSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan ControlSignal, 4)
	p.controls[jobID] = ch
	return ch
}

func (p *PoolScheduler) unregister(jobID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.controls, jobID)
}

// Signal implements Scheduler.
func (p *PoolScheduler) Signal(jobID int64, signal ControlSignal) bool {
	p.mu.Lock()
	ch, ok := p.controls[jobID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- signal:
		return true
	default:
		return false
	}
}

// drainSignal reads the oldest pending control signal without blocking, a
// yield-point read per spec.md §4.7.
func drainSignal(ch chan ControlSignal) (ControlSignal, bool) {
	select {
	case s := <-ch:
		return s, true
	default:
		return 0, false
	}
}

// fileTask is one unit of work submitted to the worker pool.
type fileTask struct {
	file model.File
}

// fileOutcome is what a worker reports back on the completion channel.
type fileOutcome struct {
	fileID   int64
	filename string
	result   model.ExtractionResult
	err      error
}

// RunImport implements the Import job algorithm, spec.md §4.7 steps 1-6.
func (p *PoolScheduler) RunImport(ctx context.Context, jobID int64) error {
	if err := p.Store.MarkStarted(ctx, jobID); err != nil {
		return fmt.Errorf("scheduler: mark started: %w", err)
	}

	ch := p.register(jobID)
	defer p.unregister(jobID)

	pending, err := p.Store.PendingFiles(ctx, jobID)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	total, err := p.Store.CountFiles(ctx, jobID)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	progressCurrent := total - len(pending)

	tasks := make(chan fileTask)
	outcomes := make(chan fileOutcome)
	var wg sync.WaitGroup
	for i := 0; i < p.Settings.WorkerThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				result := p.Extractor.Extract(ctx, t.file.StoragePath)
				outcomes <- fileOutcome{fileID: t.file.ID, filename: t.file.OriginalFilename, result: result}
			}
		}()
	}
	go func() {
		for _, f := range pending {
			tasks <- fileTask{file: f}
		}
		close(tasks)
	}()
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var buffer []fileOutcome
	errorCount := 0
	sinceCommit := 0
	resultsSeen := 0
	halted := false

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		tx, err := p.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		for _, o := range buffer {
			if err := store.ApplyExtraction(ctx, tx, o.fileID, o.result); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := store.UpdateProgressTx(ctx, tx, jobID, progressCurrent, errorCount, currentFilenameOf(buffer)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		buffer = buffer[:0]
		return nil
	}

	for o := range outcomes {
		progressCurrent++
		resultsSeen++
		if o.result.Status == model.ExtractionError {
			errorCount++
		}
		buffer = append(buffer, o)
		sinceCommit++

		earlyWindow := resultsSeen <= 20 && resultsSeen%1 == 0
		earlyCadence := resultsSeen > 20 && resultsSeen%5 == 0
		if earlyWindow || earlyCadence || sinceCommit >= p.Settings.BatchCommitSize {
			if err := flush(); err != nil {
				return p.fail(ctx, jobID, err)
			}
			sinceCommit = 0

			job, err := p.Store.GetJob(ctx, jobID)
			if err != nil {
				return p.fail(ctx, jobID, err)
			}
			// A control command running in a different process writes
			// *_REQUESTED rather than the terminal status directly, since it
			// has no access to this process's outcome channels to drain.
			switch job.Status {
			case model.JobPauseRequested:
				if err := p.Store.SetStatus(ctx, jobID, model.JobPaused); err != nil {
					return err
				}
				drainOutcomes(outcomes)
				return nil
			case model.JobCancelRequested:
				if err := p.Store.SetStatus(ctx, jobID, model.JobCancelled); err != nil {
					return err
				}
				drainOutcomes(outcomes)
				return nil
			}
		}

		if progressCurrent >= 10 && float64(errorCount)/float64(progressCurrent) > p.Settings.ErrorThreshold {
			halted = true
			break
		}

		if sig, ok := drainSignal(ch); ok {
			switch sig {
			case SignalPause:
				if err := flush(); err != nil {
					return p.fail(ctx, jobID, err)
				}
				if err := p.Store.SetStatus(ctx, jobID, model.JobPaused); err != nil {
					return err
				}
				drainOutcomes(outcomes)
				return nil
			case SignalCancel:
				if err := flush(); err != nil {
					return p.fail(ctx, jobID, err)
				}
				if err := p.Store.SetStatus(ctx, jobID, model.JobCancelled); err != nil {
					return err
				}
				drainOutcomes(outcomes)
				return nil
			}
		}
	}

	if halted {
		drainOutcomes(outcomes)
		if err := flush(); err != nil {
			return p.fail(ctx, jobID, err)
		}
		return p.Store.SetStatus(ctx, jobID, model.JobHalted)
	}

	if err := flush(); err != nil {
		return p.fail(ctx, jobID, err)
	}

	if err := p.runDuplicateDetection(ctx, jobID); err != nil {
		return p.fail(ctx, jobID, err)
	}

	tx, err := p.Store.BeginTx(ctx)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	if err := store.UpdateProgressTx(ctx, tx, jobID, progressCurrent, errorCount, ""); err != nil {
		tx.Rollback()
		return p.fail(ctx, jobID, err)
	}
	if err := store.SetStatusTx(ctx, tx, jobID, model.JobCompleted); err != nil {
		tx.Rollback()
		return p.fail(ctx, jobID, err)
	}
	return tx.Commit()
}

// RunExport implements the Export job algorithm, structurally identical to
// RunImport (spec.md §4.7) except workers copy files instead of extracting
// metadata, and the pending filter is output_path IS NULL.
func (p *PoolScheduler) RunExport(ctx context.Context, jobID int64) error {
	if err := p.Store.MarkStarted(ctx, jobID); err != nil {
		return fmt.Errorf("scheduler: mark started: %w", err)
	}

	ch := p.register(jobID)
	defer p.unregister(jobID)

	pending, err := p.Store.PendingExportFiles(ctx, jobID)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	pending = export.OrderPending(pending)
	total, err := p.Store.CountFiles(ctx, jobID)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	progressCurrent := total - len(pending)

	tasks := make(chan fileTask)
	outcomes := make(chan exportOutcome)
	var wg sync.WaitGroup
	for i := 0; i < p.Settings.WorkerThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if tags, err := p.Store.FileTags(ctx, t.file.ID); err == nil {
					names := make([]string, len(tags))
					for i, tag := range tags {
						names[i] = tag.Name
					}
					t.file.Tags = names
				}
				outputPath, err := p.Exporter.Export(ctx, t.file)
				outcomes <- exportOutcome{fileID: t.file.ID, filename: t.file.OriginalFilename, outputPath: outputPath, err: err}
			}
		}()
	}
	go func() {
		for _, f := range pending {
			tasks <- fileTask{file: f}
		}
		close(tasks)
	}()
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var buffer []exportOutcome
	errorCount := 0
	sinceCommit := 0
	resultsSeen := 0
	halted := false

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		tx, err := p.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		for _, o := range buffer {
			if o.err != nil {
				continue
			}
			if err := store.SetOutputPath(ctx, tx, o.fileID, o.outputPath); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := store.UpdateProgressTx(ctx, tx, jobID, progressCurrent, errorCount, exportFilenameOf(buffer)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		buffer = buffer[:0]
		return nil
	}

	for o := range outcomes {
		progressCurrent++
		resultsSeen++
		if o.err != nil {
			errorCount++
		}
		buffer = append(buffer, o)
		sinceCommit++

		earlyWindow := resultsSeen <= 20
		earlyCadence := resultsSeen > 20 && resultsSeen%5 == 0
		if earlyWindow || earlyCadence || sinceCommit >= p.Settings.BatchCommitSize {
			if err := flush(); err != nil {
				return p.fail(ctx, jobID, err)
			}
			sinceCommit = 0

			job, err := p.Store.GetJob(ctx, jobID)
			if err != nil {
				return p.fail(ctx, jobID, err)
			}
			switch job.Status {
			case model.JobPauseRequested:
				if err := p.Store.SetStatus(ctx, jobID, model.JobPaused); err != nil {
					return err
				}
				drainExportOutcomes(outcomes)
				return nil
			case model.JobCancelRequested:
				if err := p.Store.SetStatus(ctx, jobID, model.JobCancelled); err != nil {
					return err
				}
				drainExportOutcomes(outcomes)
				return nil
			}
		}

		if progressCurrent >= 10 && float64(errorCount)/float64(progressCurrent) > p.Settings.ErrorThreshold {
			halted = true
			break
		}

		if sig, ok := drainSignal(ch); ok {
			switch sig {
			case SignalPause:
				if err := flush(); err != nil {
					return p.fail(ctx, jobID, err)
				}
				if err := p.Store.SetStatus(ctx, jobID, model.JobPaused); err != nil {
					return err
				}
				drainExportOutcomes(outcomes)
				return nil
			case SignalCancel:
				if err := flush(); err != nil {
					return p.fail(ctx, jobID, err)
				}
				if err := p.Store.SetStatus(ctx, jobID, model.JobCancelled); err != nil {
					return err
				}
				drainExportOutcomes(outcomes)
				return nil
			}
		}
	}

	if halted {
		drainExportOutcomes(outcomes)
		if err := flush(); err != nil {
			return p.fail(ctx, jobID, err)
		}
		return p.Store.SetStatus(ctx, jobID, model.JobHalted)
	}

	if err := flush(); err != nil {
		return p.fail(ctx, jobID, err)
	}

	tx, err := p.Store.BeginTx(ctx)
	if err != nil {
		return p.fail(ctx, jobID, err)
	}
	if err := store.UpdateProgressTx(ctx, tx, jobID, progressCurrent, errorCount, ""); err != nil {
		tx.Rollback()
		return p.fail(ctx, jobID, err)
	}
	if err := store.SetStatusTx(ctx, tx, jobID, model.JobCompleted); err != nil {
		tx.Rollback()
		return p.fail(ctx, jobID, err)
	}
	return tx.Commit()
}

// exportOutcome is what an export worker reports back on the completion
// channel; unlike fileOutcome, a failed copy never writes an output_path.
type exportOutcome struct {
	fileID     int64
	filename   string
	outputPath string
	err        error
}

func exportFilenameOf(buffer []exportOutcome) string {
	if len(buffer) == 0 {
		return ""
	}
	return buffer[len(buffer)-1].filename
}

func drainExportOutcomes(outcomes <-chan exportOutcome) {
	for range outcomes {
	}
}

func currentFilenameOf(buffer []fileOutcome) string {
	if len(buffer) == 0 {
		return ""
	}
	return buffer[len(buffer)-1].filename
}

func drainOutcomes(outcomes <-chan fileOutcome) {
	for range outcomes {
	}
}

func (p *PoolScheduler) fail(ctx context.Context, jobID int64, err error) error {
	_ = p.Store.SetJobError(ctx, jobID, err.Error())
	return err
}

func (p *PoolScheduler) runDuplicateDetection(ctx context.Context, jobID int64) error {
	files, err := p.Store.FilesByJob(ctx, jobID)
	if err != nil {
		return err
	}
	assignments := duplicates.Cluster(files)

	tx, err := p.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		f := files[a.FileIndex]
		if a.ExactGroupID == "" && a.SimilarGroupID == "" {
			continue
		}
		if err := store.SetGroups(ctx, tx, f.ID,
			a.ExactGroupID, a.ExactGroupConfidence,
			a.SimilarGroupID, a.SimilarGroupConfidence, a.SimilarGroupType); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
