package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mediaparser/internal/model"
	"mediaparser/internal/review"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Confirm timestamps, discard duplicates, and tag files",
	}
	cmd.AddCommand(
		newReviewConfirmCmd(),
		newReviewUnreviewCmd(),
		newReviewDiscardCmd(),
		newReviewUndiscardCmd(),
		newReviewBulkDiscardCmd(),
		newReviewTagCmd(),
		newReviewUntagCmd(),
		newReviewAutoConfirmCmd(),
		newReviewBulkReviewCmd(),
	)
	return cmd
}

func parseFileID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file id %q: %w", s, err)
	}
	return id, nil
}

func newReviewConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <file-id> <RFC3339-timestamp> <source>",
		Short: "Confirm a file's final timestamp",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			instant, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return fmt.Errorf("invalid timestamp %q: %w", args[1], err)
			}

			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Review.ConfirmTimestamp(cmd.Context(), fileID, instant, args[2]); err != nil {
				return err
			}
			fmt.Printf("file %d confirmed at %s (%s)\n", fileID, instant.Format(time.RFC3339), args[2])
			return nil
		},
	}
}

func newReviewUnreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unreview <file-id>",
		Short: "Clear a file's reviewed/final-timestamp state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Review.Unreview(cmd.Context(), fileID)
		},
	}
}

func newReviewDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <file-id>",
		Short: "Discard a file, dissolving any now-singleton duplicate groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Review.Discard(cmd.Context(), fileID)
		},
	}
}

func newReviewUndiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undiscard <file-id>",
		Short: "Restore a discarded file, rejoining any sha256-sharing siblings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Review.Undiscard(cmd.Context(), fileID)
		},
	}
}

func newReviewBulkDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-discard <file-id> [file-id...]",
		Short: "Discard multiple files at once, accumulating their timestamp candidates into kept siblings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseFileIDs(args)
			if err != nil {
				return err
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Review.BulkDiscard(cmd.Context(), ids)
		},
	}
}

func parseFileIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseFileID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newReviewTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <file-id> <tag> [tag...]",
		Short: "Attach one or more tags to a file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Review.AddTags(cmd.Context(), fileID, args[1:])
		},
	}
}

func newReviewUntagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untag <file-id> <tag>",
		Short: "Detach a tag from a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Review.RemoveTag(cmd.Context(), fileID, args[1])
		},
	}
}

func newReviewAutoConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-confirm <job-id>",
		Short: "Confirm every HIGH-confidence, unreviewed file in a job",
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
			return c.Review.AutoConfirmHigh(cmd.Context(), jobID)
		},
	}
}

// newReviewBulkReviewCmd supports the "selection" and "confidence" scopes of
// BulkReviewOptions; the "filtered" scope takes an arbitrary Go predicate
// and has no CLI-expressible equivalent, so it's left to direct package
// callers.
func newReviewBulkReviewCmd() *cobra.Command {
	var confirm, discard bool
	var confidence string
	cmd := &cobra.Command{
		Use:   "bulk-review <job-id> [file-id...]",
		Short: "Confirm or discard many files at once, by explicit id list or confidence tier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			if confirm == discard {
				return fmt.Errorf("exactly one of --confirm or --discard is required")
			}

			opts := review.BulkReviewOptions{}
			switch {
			case confidence != "":
				level := model.ConfidenceLevel(confidence)
				if !level.Valid() {
					return fmt.Errorf("invalid confidence level %q", confidence)
				}
				opts.Scope = review.ScopeConfidence
				opts.Confidence = level
			case len(args) > 1:
				ids, err := parseFileIDs(args[1:])
				if err != nil {
					return err
				}
				opts.Scope = review.ScopeSelection
				opts.FileIDs = ids
			default:
				return fmt.Errorf("provide either --confidence or a list of file ids")
			}

			c, err := openCore()
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Review.BulkReview(cmd.Context(), jobID, opts, review.BulkReviewAction{
				Confirm: confirm,
				Discard: discard,
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm each selected file's detected timestamp")
	cmd.Flags().BoolVar(&discard, "discard", false, "discard each selected file")
	cmd.Flags().StringVar(&confidence, "confidence", "", "select by confidence tier (HIGH, MEDIUM, LOW, NONE) instead of an id list")
	return cmd
}
