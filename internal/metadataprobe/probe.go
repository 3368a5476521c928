// Package metadataprobe wraps the native tooling (EXIF, ffprobe/ffmpeg, MIME
// sniffing) the rest of mediaparser uses to read and write file metadata,
// behind a single swappable interface.
package metadataprobe

import "context"

// Tags is the subset of metadata C10 can write back to an exported copy.
type Tags struct {
	Timestamp *string
	Tags      []string
}

// Probe is the contract the Core depends on. Any implementation (native
// library, subprocess pool, in-process decoder) must be interchangeable
// behind this interface without the rest of the system noticing.
type Probe interface {
	// GetAll returns every metadata key/value pair the underlying tooling
	// can extract from path.
	GetAll(ctx context.Context, path string) (map[string]string, error)
	// DetectMime sniffs the MIME type of the file at path.
	DetectMime(ctx context.Context, path string) (string, error)
	// Dimensions returns the pixel width and height, or ok=false if the
	// file carries none (e.g. audio, unreadable container).
	Dimensions(ctx context.Context, path string) (width, height int, ok bool, err error)
	// WriteTags overwrites path's embedded metadata in place, preserving
	// byte-for-byte copy semantics otherwise. Used only by the Export
	// Pipeline (C10), and only on the already-copied output file.
	WriteTags(ctx context.Context, path string, tags Tags) error
}
