package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mediaparser/internal/core"
	"mediaparser/internal/queue"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Pop queued import/export jobs off the durable queue and run them",
		Long: `worker is the cross-process half of job dispatch: import/export enqueue a
job before (optionally) running it inline themselves, and "jobs signal <id>
resume" enqueues a paused job and then runs it inline too. An inline run
removes its own queue entry first, so worker picks up only the entries no
foreground command took. Run one worker per queue.db and issue "jobs signal"
from any other terminal to control it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			color.New(color.FgGreen).Println("worker: waiting for queued jobs (ctrl-c to stop)")

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := dispatchNext(ctx, c); err != nil {
						color.New(color.FgRed).Printf("worker: %v\n", err)
					}
				}
			}
		},
	}
}

// dispatchNext pops at most one queued entry and drives it to a terminal
// (or paused) state.
func dispatchNext(ctx context.Context, c *core.Core) error {
	entry, ok, err := c.Queue.Pop()
	if err != nil || !ok {
		return err
	}

	var runErr error
	switch entry.Kind {
	case queue.KindExport:
		runErr = c.Scheduler.RunExport(ctx, entry.JobID)
	default:
		runErr = c.Scheduler.RunImport(ctx, entry.JobID)
	}

	status := "unknown"
	if j, jerr := c.Store.GetJob(ctx, entry.JobID); jerr == nil {
		status = string(j.Status)
	}
	color.New(color.FgGreen).Printf("worker: job %d finished as %s\n", entry.JobID, status)
	if runErr != nil {
		return fmt.Errorf("job %d: %w", entry.JobID, runErr)
	}
	return nil
}
