package hashutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeSolidPNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
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

func TestPHashSolidImagesMatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeSolidPNG(t, a, color.Gray{Y: 128})
	writeSolidPNG(t, b, color.Gray{Y: 128})

	ha, ok := PHash(a)
	if !ok {
		t.Fatal("expected PHash success for a")
	}
	hb, ok := PHash(b)
	if !ok {
		t.Fatal("expected PHash success for b")
	}
	if ha != hb {
		t.Errorf("identical solid images hashed differently: %s vs %s", ha, hb)
	}
}

func TestPHashUnsupportedFileReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-an-image.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := PHash(path); ok {
		t.Error("expected PHash to fail on non-image content")
	}
}

func TestPHashMissingFileReturnsFalse(t *testing.T) {
	if _, ok := PHash("/nonexistent/path/to/file.jpg"); ok {
		t.Error("expected PHash to fail on missing file")
	}
}

func TestHammingDistance64(t *testing.T) {
	if d := HammingDistance64(0, 0); d != 0 {
		t.Errorf("got %d, want 0", d)
	}
	if d := HammingDistance64(0, 0xFF); d != 8 {
		t.Errorf("got %d, want 8", d)
	}
}

func TestHammingHexSentinelOnMalformed(t *testing.T) {
	if d := HammingHex("", "abcd"); d != DistanceSentinel {
		t.Errorf("got %d, want sentinel", d)
	}
	if d := HammingHex("zz", "00000000000000ff"); d != DistanceSentinel {
		t.Errorf("got %d, want sentinel", d)
	}
}

func TestFormatHash64RoundTrip(t *testing.T) {
	s := FormatHash64(0x0123456789abcdef)
	v, err := parseHex64(s)
	if err != nil {
		t.Fatalf("parseHex64: %v", err)
	}
	if v != 0x0123456789abcdef {
		t.Errorf("got %x, want 0x0123456789abcdef", v)
	}
}
