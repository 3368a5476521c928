package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediaparser/internal/core"
	"mediaparser/internal/diskspace"
	"mediaparser/internal/ingest"
	"mediaparser/internal/model"
	"mediaparser/internal/queue"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <source-dir>",
		Short: "Walk a directory, register its media files, and run extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()

			for _, tool := range []string{"ffprobe", "exiftool"} {
				if !checkExternalTool(tool) {
					color.New(color.FgYellow).Printf(
						"warning: %s not found in PATH; video timestamps and tag writing will be degraded\n", tool)
				}
			}

			if paths, _ := ingest.Walk(args[0]); len(paths) > 0 {
				warnIfLowOnSpace(c.Settings.OutputDir, ingest.TotalSize(paths))
			}

			jobID, walkErrs, err := ingest.CreateJob(ctx, c.Store, args[0])
			if err != nil {
				return err
			}
			for _, werr := range walkErrs {
				color.New(color.FgYellow).Printf("warning: %v\n", werr)
			}

			job, err := c.Store.GetJob(ctx, jobID)
			if err != nil {
				return err
			}
			if job.ProgressTotal == 0 {
				color.New(color.FgYellow).Println("no media files found; nothing to do")
				return nil
			}

			if err := c.Queue.Push(jobID, queue.KindImport); err != nil {
				return fmt.Errorf("enqueue job %d: %w", jobID, err)
			}

			return runJobWithProgress(ctx, c, jobID, fmt.Sprintf("importing job %d", jobID), c.Scheduler.RunImport)
		},
	}
}

// runJobWithProgress blocks on run while a background goroutine polls job
// progress onto a terminal progress bar, following the teacher's
// progressbar-driven CLI UX (backupbozo's progressbar.NewOptions loop).
// It removes jobID's queue entry first, the point at which this process
// takes ownership of dispatching it instead of leaving it for the worker
// command to pick up.
func runJobWithProgress(ctx context.Context, c *core.Core, jobID int64, description string, run func(context.Context, int64) error) error {
	if err := c.Queue.Remove(jobID); err != nil {
		return fmt.Errorf("dequeue job %d: %w", jobID, err)
	}

	job, err := c.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	bar := progressbar.NewOptions(job.ProgressTotal,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if j, err := c.Store.GetJob(ctx, jobID); err == nil {
					bar.Set(j.ProgressCurrent)
				}
			}
		}
	}()

	runErr := run(ctx, jobID)
	close(done)
	bar.Finish()

	job, err = c.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	printJobStatus(job.Status, job.ProgressCurrent, job.ProgressTotal, job.ErrorCount)
	return runErr
}

// warnIfLowOnSpace prints a warning (never fails the import) when the
// output directory's free space looks tight against the source collection's
// total size, the preflight check the teacher's backup tool ran before
// copying.
func warnIfLowOnSpace(outputDir string, totalSourceBytes int64) {
	free, err := diskspace.Available(outputDir)
	if err != nil {
		return
	}
	if int64(free) < totalSourceBytes {
		color.New(color.FgYellow).Printf(
			"warning: %s has less free space than the source collection's total size; export may run out of room\n",
			outputDir)
	}
}

func printJobStatus(status model.JobStatus, current, total, errors int) {
	line := fmt.Sprintf("job %s: %d/%d processed, %d error(s)", status, current, total, errors)
	switch status {
	case model.JobCompleted:
		color.New(color.FgGreen).Println(line)
	case model.JobHalted, model.JobFailed:
		color.New(color.FgRed).Println(line)
	default:
		color.New(color.FgYellow).Println(line)
	}
}
