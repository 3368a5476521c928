// Package ingest walks a source directory and registers its media files as
// an import Job, the server-path counterpart to spec.md's browser-upload
// ingestion path (original_path and storage_path coincide).
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediaparser/internal/model"
	"mediaparser/internal/store"
)

// AllowedExtensions mirrors the teacher's backup tool: still images and
// common video containers spec.md's scenarios exercise.
var AllowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".heic": true, ".heif": true,
	".png": true, ".gif": true, ".bmp": true, ".tiff": true, ".tif": true,
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

// Walk collects every regular file under root whose extension is in
// AllowedExtensions. Errors walking individual entries are collected, not
// fatal — matching the teacher's getAllFiles tolerance for partial scans.
func Walk(root string) ([]string, []error) {
	var files []string
	var walkErrs []error
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			walkErrs = append(walkErrs, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if AllowedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		walkErrs = append(walkErrs, err)
	}
	return files, walkErrs
}

// CreateJob walks root, creates an import Job sized to the discovered file
// count, and registers one File row per discovered path with
// original_path == storage_path (the CLI never stages a separate upload
// working copy). Returns the new job id and any per-entry walk errors.
func CreateJob(ctx context.Context, st *store.Store, root string) (int64, []error, error) {
	paths, walkErrs := Walk(root)

	jobID, err := st.CreateJob(ctx, model.JobTypeImport, len(paths))
	if err != nil {
		return 0, walkErrs, fmt.Errorf("ingest: create job: %w", err)
	}

	for _, path := range paths {
		name := filepath.Base(path)
		if _, err := st.CreateFile(ctx, jobID, name, path, path); err != nil {
			return 0, walkErrs, fmt.Errorf("ingest: register %s: %w", path, err)
		}
	}

	return jobID, walkErrs, nil
}

// TotalSize sums the on-disk size of every path, for the free-space
// preflight check the CLI runs before starting an import.
func TotalSize(paths []string) int64 {
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	return total
}
