// mediaparser: ingests photo/video collections, derives trustworthy creation
// timestamps, detects duplicates, and exports a deduplicated chronologically
// organized tree with corrected metadata.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mediaparser/internal/core"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediaparser",
		Short: "Import, review, and export deduplicated photo/video collections",
		Long: `mediaparser ingests large collections of photo and video files, derives the
single most trustworthy creation timestamp for each file, detects exact and
near-duplicate copies, and — after human review — emits a deduplicated,
chronologically organized output tree with corrected embedded metadata.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (optional; settings also read from the environment)")

	rootCmd.AddCommand(
		newImportCmd(),
		newExportCmd(),
		newJobsCmd(),
		newReviewCmd(),
		newDuplicatesCmd(),
		newFinalizeCmd(),
		newWorkerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openCore() (*core.Core, error) {
	c, err := core.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("open core: %w", err)
	}
	return c, nil
}

// checkExternalTool reports whether tool is reachable on PATH, the same
// ffprobe/exiftool preflight check the teacher's backup tool ran before
// starting work.
func checkExternalTool(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}
