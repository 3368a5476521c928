// Package extractor implements the Per-File Extractor (C4): a pure
// path -> ExtractionResult function with no Store access, safe to run
// concurrently across many files.
package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaparser/internal/confidence"
	"mediaparser/internal/hashutil"
	"mediaparser/internal/metadataprobe"
	"mediaparser/internal/model"
	"mediaparser/internal/timestamp"
)

// metadataSourceTags is the fixed priority list C4 pulls candidate instants
// from, each mapped to the confidence.SourceWeights key it scores under.
var metadataSourceTags = []struct {
	exifKey string
	weight  string
}{
	{"DateTimeOriginal", "EXIF:DateTimeOriginal"},
	{"CreateDate", "EXIF:CreateDate"},
	{"QuickTime:CreateDate", "QuickTime:CreateDate"},
	{"ModifyDate", "EXIF:ModifyDate"},
}

// mimeToExt normalizes detect_mime's result to the extension-family it
// should match, folding jpeg -> jpg per spec.md §4.4.
var mimeToExt = map[string]string{
	"image/jpeg":       "jpg",
	"image/png":        "png",
	"image/heic":       "heic",
	"image/heif":       "heif",
	"image/gif":        "gif",
	"image/bmp":        "bmp",
	"image/tiff":       "tiff",
	"video/mp4":        "mp4",
	"video/quicktime":  "mov",
	"video/x-matroska": "mkv",
	"video/webm":       "webm",
	"video/x-msvideo":  "avi",
}

// EventSink receives diagnostic events C4 needs to log but that are never
// fatal to extraction (a MIME/extension mismatch, a probe failure).
type EventSink interface {
	Warn(msg string, fields map[string]any)
}

type noopSink struct{}

func (noopSink) Warn(string, map[string]any) {}

// Extractor runs C4's algorithm against a metadataprobe.Probe and a
// default timezone for ambiguous metadata strings.
type Extractor struct {
	Probe     metadataprobe.Probe
	DefaultTZ *time.Location
	Events    EventSink
}

// New returns an Extractor with a discarding EventSink if sink is nil.
func New(probe metadataprobe.Probe, defaultTZ *time.Location, sink EventSink) *Extractor {
	if sink == nil {
		sink = noopSink{}
	}
	if defaultTZ == nil {
		defaultTZ = time.UTC
	}
	return &Extractor{Probe: probe, DefaultTZ: defaultTZ, Events: sink}
}

// Extract runs the full C4 algorithm against a single file.
func (e *Extractor) Extract(ctx context.Context, path string) model.ExtractionResult {
	info, err := os.Stat(path)
	if err != nil {
		return model.ExtractionResult{
			Status:       model.ExtractionError,
			ErrorMessage: fmt.Sprintf("stat %s: %v", path, err),
		}
	}

	result := model.ExtractionResult{Status: model.ExtractionSuccess, SizeBytes: info.Size()}

	mime, err := e.Probe.DetectMime(ctx, path)
	if err == nil {
		result.MimeType = mime
		e.checkExtensionMismatch(path, mime)
	}

	sha, err := hashutil.Sha256File(path)
	if err != nil {
		return model.ExtractionResult{
			Status:       model.ExtractionError,
			ErrorMessage: fmt.Sprintf("sha256 %s: %v", path, err),
		}
	}
	result.SHA256 = sha

	if ph, ok := hashutil.PHash(path); ok {
		result.PerceptualHash = ph
	} else {
		e.Events.Warn("phash unavailable", map[string]any{"path": path})
	}

	if w, h, ok, derr := e.Probe.Dimensions(ctx, path); derr == nil && ok {
		result.Width, result.Height, result.HasDimensions = w, h, true
	}

	candidates := e.gatherCandidates(ctx, path, info)
	result.Candidates = candidates

	instant, source, level, ok := confidence.Score(candidates)
	if ok {
		t := instant
		result.ChosenInstant = &t
		result.ChosenSource = source
	}
	result.Confidence = level

	return result
}

func (e *Extractor) checkExtensionMismatch(path, mime string) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	want, known := mimeToExt[mime]
	if !known || want == ext {
		return
	}
	e.Events.Warn("mime/extension mismatch", map[string]any{
		"path": path, "detected_mime": mime, "extension": ext,
	})
}

func (e *Extractor) gatherCandidates(ctx context.Context, path string, info os.FileInfo) []model.TimestampCandidate {
	var candidates []model.TimestampCandidate

	if tags, err := e.Probe.GetAll(ctx, path); err == nil {
		for _, src := range metadataSourceTags {
			raw, present := tags[src.exifKey]
			if !present || raw == "" {
				continue
			}
			var instant time.Time
			var parsedOK bool
			if src.weight == "QuickTime:CreateDate" {
				instant, parsedOK = timestamp.ParseQuickTime(raw)
			} else {
				instant, parsedOK = timestamp.ParseString(raw, e.DefaultTZ)
			}
			if parsedOK {
				candidates = append(candidates, model.TimestampCandidate{Instant: instant, Source: src.weight})
			}
		}
	} else {
		e.Events.Warn("probe failure", map[string]any{"path": path, "error": err.Error()})
	}

	candidates = append(candidates, model.TimestampCandidate{
		Instant: info.ModTime().UTC(),
		Source:  "File:FileModifyDate",
	})

	base := filepath.Base(path)
	if filenameInstant, ok := timestamp.ParseFilename(base, e.DefaultTZ); ok {
		source := "filename_date"
		if timestamp.HasTimeComponent(base) {
			source = "filename_datetime"
		}
		candidates = append(candidates, model.TimestampCandidate{Instant: filenameInstant, Source: source})
	}

	return candidates
}
