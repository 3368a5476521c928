package metadataprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func decodeConfig(f *os.File) (image.Config, string, error) {
	return image.DecodeConfig(f)
}

var extMimeFallback = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".heic": "image/heic", ".heif": "image/heif", ".gif": "image/gif",
	".bmp": "image/bmp", ".tiff": "image/tiff", ".tif": "image/tiff",
	".mp4": "video/mp4", ".mov": "video/quicktime", ".mkv": "video/x-matroska",
	".webm": "video/webm", ".avi": "video/x-msvideo",
}

var stillImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".heic": true, ".heif": true,
}

var videoExt = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

// ExecProbe is the default Probe, wrapping goexif for still images and
// shelling out to ffprobe for containers and to exiftool for tag writing,
// the same external-tool pattern the teacher already uses for video
// metadata. GetAll, Dimensions and WriteTags are bounded by a counting
// semaphore sized to MAX_CONCURRENT_PROBES; DetectMime is not.
type ExecProbe struct {
	sem chan struct{}
}

// NewExecProbe returns an ExecProbe that allows at most maxConcurrent probes
// (EXIF and image-header decodes, ffprobe/exiftool subprocesses) in flight
// at once.
func NewExecProbe(maxConcurrent int) *ExecProbe {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ExecProbe{sem: make(chan struct{}, maxConcurrent)}
}

func (p *ExecProbe) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ExecProbe) release() { <-p.sem }

// GetAll returns every metadata key/value pair goexif (stills) or ffprobe
// (video) can read from path.
func (p *ExecProbe) GetAll(ctx context.Context, path string) (map[string]string, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case stillImageExt[ext]:
		return exifTags(path)
	case videoExt[ext]:
		return ffprobeTags(ctx, path)
	default:
		return map[string]string{}, nil
	}
}

func exifTags(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadataprobe: open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF data is a normal outcome for many formats, not a probe
		// failure; return an empty map.
		return map[string]string{}, nil
	}

	out := map[string]string{}
	x.Walk(tagWalker(out))
	return out, nil
}

type tagWalker map[string]string

func (w tagWalker) Walk(name exif.FieldName, tag *exif.Tag) error {
	if s, err := tag.StringVal(); err == nil {
		w[string(name)] = s
	} else {
		w[string(name)] = tag.String()
	}
	return nil
}

func ffprobeTags(ctx context.Context, path string) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("metadataprobe: ffprobe %s: %w", path, err)
	}

	var data struct {
		Format struct {
			Tags map[string]string `json:"tags"`
		} `json:"format"`
		Streams []struct {
			Tags map[string]string `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("metadataprobe: parse ffprobe output for %s: %w", path, err)
	}

	merged := map[string]string{}
	for k, v := range data.Format.Tags {
		merged[k] = v
	}
	for _, stream := range data.Streams {
		for k, v := range stream.Tags {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

// DetectMime sniffs the file's content header via net/http.DetectContentType
// and falls back to an extension table when sniffing is inconclusive,
// avoiding a libmagic cgo dependency.
func (p *ExecProbe) DetectMime(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("metadataprobe: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	sniffed := http.DetectContentType(buf[:n])
	if sniffed != "" && sniffed != "application/octet-stream" {
		return sniffed, nil
	}
	if fallback, ok := extMimeFallback[strings.ToLower(filepath.Ext(path))]; ok {
		return fallback, nil
	}
	return sniffed, nil
}

// Dimensions returns pixel width/height by decoding the image header for
// still images or via ffprobe's video stream dimensions for containers.
func (p *ExecProbe) Dimensions(ctx context.Context, path string) (int, int, bool, error) {
	if err := p.acquire(ctx); err != nil {
		return 0, 0, false, err
	}
	defer p.release()

	ext := strings.ToLower(filepath.Ext(path))
	if stillImageExt[ext] || ext == ".png" {
		return imageDimensions(path)
	}
	if videoExt[ext] {
		return ffprobeDimensions(ctx, path)
	}
	return 0, 0, false, nil
}

func imageDimensions(path string) (int, int, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false, fmt.Errorf("metadataprobe: open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := decodeConfig(f)
	if err != nil {
		return 0, 0, false, nil
	}
	return cfg.Width, cfg.Height, true, nil
}

func ffprobeDimensions(ctx context.Context, path string) (int, int, bool, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "quiet", "-print_format", "json", "-show_streams", path)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, false, fmt.Errorf("metadataprobe: ffprobe %s: %w", path, err)
	}
	var data struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, 0, false, fmt.Errorf("metadataprobe: parse ffprobe output for %s: %w", path, err)
	}
	for _, s := range data.Streams {
		if s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height, true, nil
		}
	}
	return 0, 0, false, nil
}

// WriteTags shells out to exiftool, the same tool the original
// implementation uses, to overwrite embedded metadata on the already-copied
// output file in place.
func (p *ExecProbe) WriteTags(ctx context.Context, path string, tags Tags) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	args := []string{"-overwrite_original", "-q", "-q"}
	if tags.Timestamp != nil {
		args = append(args,
			fmt.Sprintf("-DateTimeOriginal=%s", *tags.Timestamp),
			fmt.Sprintf("-ModifyDate=%s", *tags.Timestamp),
		)
	}
	if len(tags.Tags) > 0 {
		joined := strings.Join(tags.Tags, ",")
		args = append(args, fmt.Sprintf("-Subject=%s", joined), fmt.Sprintf("-Keywords=%s", joined))
	}
	if len(args) == 3 {
		return nil // nothing to write
	}
	args = append(args, path)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "exiftool", args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("metadataprobe: exiftool write %s: %w: %s", path, err, stderr.String())
	}
	return nil
}
