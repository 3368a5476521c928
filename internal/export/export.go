// Package export implements the Export Pipeline (C10): computes each
// file's output path, atomically copies it with metadata preservation, and
// writes corrected embedded metadata to the copy only.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediaparser/internal/hashutil"
	"mediaparser/internal/metadataprobe"
	"mediaparser/internal/model"
)

// exifTimestampLayout is the "YYYY:MM:DD HH:MM:SS" form exiftool's
// -DateTimeOriginal/-ModifyDate arguments expect; RFC3339 is rejected.
const exifTimestampLayout = "2006:01:02 15:04:05"

const maxCollisionSuffix = 999

// EventSink receives non-fatal warnings, mirroring extractor.EventSink so
// both pipelines log through the same telemetry path.
type EventSink interface {
	Warn(msg string, fields map[string]any)
}

type noopSink struct{}

func (noopSink) Warn(string, map[string]any) {}

// Exporter computes output paths and copies files for C10.
type Exporter struct {
	Probe      metadataprobe.Probe
	OutputRoot string
	Events     EventSink
}

// New returns an Exporter rooted at outputRoot.
func New(probe metadataprobe.Probe, outputRoot string, sink EventSink) *Exporter {
	if sink == nil {
		sink = noopSink{}
	}
	return &Exporter{Probe: probe, OutputRoot: outputRoot, Events: sink}
}

// Export computes f's final output path (applying collision resolution),
// copies its storage file there atomically, and writes corrected metadata
// to the copy. It returns the output path recorded by the caller, or an
// error if the copy or collision resolution failed; a WriteTags failure is
// logged but never fails the export, matching spec.md §4.10 step 4's
// "metadata write failures do not fail the export."
func (e *Exporter) Export(ctx context.Context, f model.File) (string, error) {
	target := e.TargetPath(f)
	dst, ok := ResolveCollision(target)
	if !ok {
		return "", fmt.Errorf("export: too many collisions for %s", target)
	}

	if err := CopyWithVerification(f.StoragePath, dst, f.SHA256); err != nil {
		return "", err
	}

	if e.Probe != nil {
		tags := metadataprobe.Tags{Tags: f.Tags}
		if instant, ok := effectiveInstant(f); ok {
			formatted := instant.UTC().Format(exifTimestampLayout)
			tags.Timestamp = &formatted
		}
		if err := e.Probe.WriteTags(ctx, dst, tags); err != nil {
			e.Events.Warn("export: write tags failed", map[string]any{"path": dst, "error": err.Error()})
		}
	}

	return dst, nil
}

// OrderPending sorts a job's pending files by
// coalesce(final_timestamp, detected_timestamp, NULL) ascending, then
// original_filename, the export ordering spec.md §4.10 step 0 specifies.
func OrderPending(files []model.File) []model.File {
	out := make([]model.File, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		ti, oki := effectiveInstant(out[i])
		tj, okj := effectiveInstant(out[j])
		switch {
		case oki && okj && !ti.Equal(tj):
			return ti.Before(tj)
		case oki != okj:
			return oki // files with a known instant sort before unknowns
		default:
			return out[i].OriginalFilename < out[j].OriginalFilename
		}
	})
	return out
}

func effectiveInstant(f model.File) (time.Time, bool) {
	if f.FinalTimestamp != nil {
		return *f.FinalTimestamp, true
	}
	if f.DetectedTimestamp != nil {
		return *f.DetectedTimestamp, true
	}
	return time.Time{}, false
}

// TargetPath computes the output path for f under e.OutputRoot, before collision
// resolution: a dated path under <OUTPUT_ROOT>/<YYYY>/ when a timestamp
// exists, else a sanitized original name under <OUTPUT_ROOT>/unknown/.
func (e *Exporter) TargetPath(f model.File) string {
	ext := strings.ToLower(filepath.Ext(f.OriginalFilename))
	if instant, ok := effectiveInstant(f); ok {
		name := instant.UTC().Format("20060102_150405") + ext
		return filepath.Join(e.OutputRoot, instant.UTC().Format("2006"), name)
	}
	return filepath.Join(e.OutputRoot, "unknown", sanitizeFilename(f.OriginalFilename))
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ResolveCollision returns the first available path among target,
// target_001, target_002, ... target_999, or ok=false if all are taken
// (spec.md §4.10 step 2's hard-error overflow).
func ResolveCollision(target string) (string, bool) {
	if !exists(target) {
		return target, true
	}
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	for i := 1; i <= maxCollisionSuffix; i++ {
		candidate := fmt.Sprintf("%s_%03d%s", base, i, ext)
		if !exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CopyWithVerification copies src to dst atomically (via a .tmp sibling and
// rename), preserving mtime, then verifies the destination's size and (when
// expectedSHA256 is non-empty) content hash against the source — the same
// copy-then-verify pattern the teacher's copyFileWithHash uses, checked
// against the sha256 C4 already recorded at import time instead of
// rehashing the source here.
func CopyWithVerification(src, dst, expectedSHA256 string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("export: mkdir %s: %w", filepath.Dir(dst), err)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("export: stat source %s: %w", src, err)
	}

	tmp := dst + ".tmp"
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("export: open source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("export: copy %s -> %s: %w", src, tmp, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("export: sync %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export: close %s: %w", tmp, err)
	}

	if err := os.Chtimes(tmp, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		// Timestamp preservation is best-effort, matching the teacher's policy.
		_ = err
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export: rename %s -> %s: %w", tmp, dst, err)
	}

	dstInfo, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("export: stat destination %s: %w", dst, err)
	}
	if dstInfo.Size() != srcInfo.Size() {
		return fmt.Errorf("export: size mismatch for %s: got %d, want %d", dst, dstInfo.Size(), srcInfo.Size())
	}

	if expectedSHA256 != "" {
		f, err := os.Open(dst)
		if err != nil {
			return fmt.Errorf("export: reopen %s for verification: %w", dst, err)
		}
		got, err := hashutil.Sha256Reader(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("export: hash %s: %w", dst, err)
		}
		if got != expectedSHA256 {
			return fmt.Errorf("export: content hash mismatch for %s: got %s, want %s", dst, got, expectedSHA256)
		}
	}
	return nil
}
