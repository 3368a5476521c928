package metadataprobe

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestDetectMimeSniffsPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	writeTestPNG(t, path, 10, 10)

	p := NewExecProbe(2)
	mime, err := p.DetectMime(context.Background(), path)
	if err != nil {
		t.Fatalf("DetectMime: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("got %q, want image/png", mime)
	}
}

func TestDetectMimeFallsBackToExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte{0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewExecProbe(2)
	mime, err := p.DetectMime(context.Background(), path)
	if err != nil {
		t.Fatalf("DetectMime: %v", err)
	}
	if mime != "video/mp4" {
		t.Errorf("got %q, want video/mp4 (extension fallback)", mime)
	}
}

func TestDimensionsFromPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	writeTestPNG(t, path, 64, 48)

	p := NewExecProbe(2)
	w, h, ok, err := p.Dimensions(context.Background(), path)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if w != 64 || h != 48 {
		t.Errorf("got %dx%d, want 64x48", w, h)
	}
}

func TestGetAllUnsupportedExtensionReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewExecProbe(2)
	tags, err := p.GetAll(context.Background(), path)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("got %v, want empty map", tags)
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	p := NewExecProbe(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the one semaphore slot first so acquire would otherwise block.
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	if err := p.acquire(ctx); err == nil {
		t.Error("expected context cancellation error")
	}
}
