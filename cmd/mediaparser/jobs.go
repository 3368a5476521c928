package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaparser/internal/core"
	"mediaparser/internal/model"
	"mediaparser/internal/queue"
	"mediaparser/internal/scheduler"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control background import/export jobs",
	}
	cmd.AddCommand(newJobsShowCmd(), newJobsSignalCmd())
	return cmd
}

func newJobsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print a job's current status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()

			job, err := c.Store.GetJob(cmd.Context(), jobID)
			if err != nil {
				return err
			}

			fmt.Printf("job %d (%s): %s\n", job.ID, job.Type, job.Status)
			fmt.Printf("  progress: %d/%d (%s processed)\n", job.ProgressCurrent, job.ProgressTotal,
				humanize.Comma(int64(job.ProgressCurrent)))
			fmt.Printf("  errors:   %d\n", job.ErrorCount)
			if job.CurrentFilename != "" {
				fmt.Printf("  current:  %s\n", job.CurrentFilename)
			}
			if job.ErrorMessage != "" {
				fmt.Printf("  message:  %s\n", job.ErrorMessage)
			}
			if job.StartedAt != nil {
				fmt.Printf("  started:  %s (%s ago)\n", job.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(*job.StartedAt))
			}
			if job.CompletedAt != nil {
				fmt.Printf("  finished: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newJobsSignalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal <job-id> <pause|resume|cancel>",
		Short: "Deliver a control signal to a job, from any terminal",
		Long: `signal writes the requested transition to the job's durable status
column, so it reaches a job driven by a worker (or by another foreground
CLI invocation) in a different process. If the job happens to be running
in-process it is also nudged over its in-memory control channel, which
lands the pause/cancel a little sooner; the durable write is what makes
the command actually work across processes.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			job, err := c.Store.GetJob(ctx, jobID)
			if err != nil {
				return err
			}

			switch args[1] {
			case "pause":
				if job.Status != model.JobRunning {
					return fmt.Errorf("job %d is %s, not RUNNING; nothing to pause", jobID, job.Status)
				}
				if err := c.Store.SetStatus(ctx, jobID, model.JobPauseRequested); err != nil {
					return err
				}
				c.Scheduler.Signal(jobID, scheduler.SignalPause)
				fmt.Printf("requested pause for job %d\n", jobID)
				return nil

			case "cancel":
				if job.Status != model.JobRunning && job.Status != model.JobPaused {
					return fmt.Errorf("job %d is %s; nothing to cancel", jobID, job.Status)
				}
				if job.Status == model.JobPaused {
					if err := c.Queue.Remove(jobID); err != nil {
						return fmt.Errorf("dequeue job %d: %w", jobID, err)
					}
					return c.Store.SetStatus(ctx, jobID, model.JobCancelled)
				}
				if err := c.Store.SetStatus(ctx, jobID, model.JobCancelRequested); err != nil {
					return err
				}
				c.Scheduler.Signal(jobID, scheduler.SignalCancel)
				fmt.Printf("requested cancel for job %d\n", jobID)
				return nil

			case "resume":
				if job.Status != model.JobPaused {
					return fmt.Errorf("job %d is %s, not PAUSED; nothing to resume", jobID, job.Status)
				}
				return resumeJob(ctx, c, jobID)

			default:
				return fmt.Errorf("unknown signal %q: want pause, resume, or cancel", args[1])
			}
		},
	}
}

// resumeJob re-dispatches a PAUSED job in the foreground. Which Scheduler
// method to call isn't recorded anywhere: a job's JobType always says
// "import", even for one paused mid-export, since export reuses the
// import job's row. The phase still in flight is inferred instead from
// which of the two pending-file queries is non-empty.
func resumeJob(ctx context.Context, c *core.Core, jobID int64) error {
	pendingImport, err := c.Store.PendingFiles(ctx, jobID)
	if err != nil {
		return err
	}
	if len(pendingImport) > 0 {
		if err := c.Queue.Push(jobID, queue.KindImport); err != nil {
			return fmt.Errorf("enqueue job %d: %w", jobID, err)
		}
		return runJobWithProgress(ctx, c, jobID, fmt.Sprintf("resuming import job %d", jobID), c.Scheduler.RunImport)
	}

	pendingExport, err := c.Store.PendingExportFiles(ctx, jobID)
	if err != nil {
		return err
	}
	if len(pendingExport) > 0 {
		if err := c.Queue.Push(jobID, queue.KindExport); err != nil {
			return fmt.Errorf("enqueue job %d: %w", jobID, err)
		}
		return runJobWithProgress(ctx, c, jobID, fmt.Sprintf("resuming export job %d", jobID), c.Scheduler.RunExport)
	}

	return fmt.Errorf("job %d has nothing pending to resume", jobID)
}
