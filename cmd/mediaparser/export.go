package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediaparser/internal/queue"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <job-id>",
		Short: "Copy a job's reviewed files into the output tree, chronologically organized",
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

			if err := c.Queue.Push(jobID, queue.KindExport); err != nil {
				return fmt.Errorf("enqueue job %d: %w", jobID, err)
			}

			return runJobWithProgress(cmd.Context(), c, jobID, fmt.Sprintf("exporting job %d", jobID), c.Scheduler.RunExport)
		},
	}
}
