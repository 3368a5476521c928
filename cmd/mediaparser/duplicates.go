package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaparser/internal/duplicates"
	"mediaparser/internal/model"
)

func newDuplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List and resolve exact and similar duplicate groups",
	}
	cmd.AddCommand(
		newDuplicatesListCmd(),
		newDuplicatesKeepAllCmd(),
		newDuplicatesResolveCmd(),
	)
	return cmd
}

func newDuplicatesListCmd() *cobra.Command {
	var similar bool
	c := &cobra.Command{
		Use:   "list <group-id>",
		Short: "List the members of a duplicate group, marking the recommended keep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore()
			if err != nil {
				return err
			}
			defer core.Close()

			var files []model.File
			if similar {
				files, err = core.Store.FilesBySimilarGroup(cmd.Context(), args[0])
			} else {
				files, err = core.Store.FilesByExactGroup(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("no members found for that group")
				return nil
			}

			recommended := -1
			if !similar {
				recommended = duplicates.RecommendedIndex(files)
			}
			for i, f := range files {
				marker := " "
				if i == recommended {
					marker = "*"
				}
				fmt.Printf("%s %d\t%s\t%s\t%dx%d\n", marker, f.ID, f.OriginalFilename,
					humanize.Bytes(uint64(f.SizeBytes)), f.Width, f.Height)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&similar, "similar", false, "list a similar-group instead of an exact-duplicate group")
	return c
}

func newDuplicatesKeepAllCmd() *cobra.Command {
	var similar bool
	c := &cobra.Command{
		Use:   "keep-all <group-id>",
		Short: "Clear a duplicate group's links on every member, keeping them all",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore()
			if err != nil {
				return err
			}
			defer core.Close()

			if similar {
				return core.Review.KeepAllSimilar(cmd.Context(), args[0])
			}
			return core.Review.KeepAllDuplicates(cmd.Context(), args[0])
		},
	}
	c.Flags().BoolVar(&similar, "similar", false, "operate on a similar-group instead of an exact-duplicate group")
	return c
}

func newDuplicatesResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <group-id> <keep-file-id> [keep-file-id...]",
		Short: "Resolve a similar-group, discarding every member not listed to keep",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keepIDs := make([]int64, 0, len(args)-1)
			for _, a := range args[1:] {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid file id %q: %w", a, err)
				}
				keepIDs = append(keepIDs, id)
			}

			core, err := openCore()
			if err != nil {
				return err
			}
			defer core.Close()

			return core.Review.ResolveSimilarGroup(cmd.Context(), args[0], keepIDs)
		},
	}
}
