package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediaparser/internal/finalize"
)

func newFinalizeCmd() *cobra.Command {
	var deleteSources, clearDatabase bool
	cmd := &cobra.Command{
		Use:   "finalize <job-id>",
		Short: "Delete a completed job's working data, preserving its exported output tree",
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

			return finalize.Run(cmd.Context(), c.Store, jobID, finalize.Options{
				DeleteSources: deleteSources,
				ClearDatabase: clearDatabase,
			})
		},
	}
	cmd.Flags().BoolVar(&deleteSources, "delete-sources", false, "remove staged upload working copies (never a server-path import's original files)")
	cmd.Flags().BoolVar(&clearDatabase, "clear-database", false, "purge the job's File/Decision/Tag-association rows")
	return cmd
}
