package export

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaparser/internal/model"
)

func TestTargetPathUsesYearFromFinalTimestamp(t *testing.T) {
	ts := time.Date(2023, 6, 15, 10, 30, 0, 0, time.UTC)
	e := &Exporter{OutputRoot: "/out"}
	f := model.File{OriginalFilename: "IMG_0001.jpg", FinalTimestamp: &ts}
	got := e.TargetPath(f)
	want := filepath.Join("/out", "2023", "20230615_103000.jpg")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTargetPathFallsBackToUnknownBucket(t *testing.T) {
	e := &Exporter{OutputRoot: "/out"}
	f := model.File{OriginalFilename: "weird name?.jpg"}
	got := e.TargetPath(f)
	want := filepath.Join("/out", "unknown", "weird_name_.jpg")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveCollisionAddsSuffix(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "20230101_000000.jpg")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok := ResolveCollision(target)
	if !ok {
		t.Fatal("expected a resolvable path")
	}
	want := filepath.Join(dir, "20230101_000000_001.jpg")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveCollisionReturnsFalseWhenExhausted(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.jpg")
	os.WriteFile(target, []byte("x"), 0o644)
	for i := 1; i <= maxCollisionSuffix; i++ {
		p := filepath.Join(dir, "a_"+padded(i)+".jpg")
		os.WriteFile(p, []byte("x"), 0o644)
	}
	_, ok := ResolveCollision(target)
	if ok {
		t.Error("expected collision resolution to fail once all 999 suffixes are taken")
	}
}

func padded(i int) string {
	s := "000"
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return s[:3-len(digits)] + string(digits)
}

func TestCopyWithVerificationPreservesContentAndMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out", "dst.jpg")
	sum := sha256.Sum256([]byte("hello world"))
	expected := hex.EncodeToString(sum[:])

	if err := CopyWithVerification(src, dst, expected); err != nil {
		t.Fatalf("CopyWithVerification() error = %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Errorf("got content %q, want %q", got, "hello world")
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !dstInfo.ModTime().Equal(srcInfo.ModTime()) {
		t.Errorf("got mtime %v, want source mtime %v", dstInfo.ModTime(), srcInfo.ModTime())
	}
}

func TestCopyWithVerificationRejectsHashMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "dst.jpg")

	err := CopyWithVerification(src, dst, strings.Repeat("0", 64))
	if err == nil {
		t.Fatal("expected a content hash mismatch error")
	}
}

func TestCopyWithVerificationFailsOnMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyWithVerification(filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "dst.jpg"), "")
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}

func TestOrderPendingSortsByEffectiveTimestampThenName(t *testing.T) {
	t1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []model.File{
		{OriginalFilename: "b.jpg", DetectedTimestamp: &t1},
		{OriginalFilename: "a.jpg", DetectedTimestamp: &t2},
		{OriginalFilename: "z.jpg"},
		{OriginalFilename: "y.jpg"},
	}
	ordered := OrderPending(files)
	want := []string{"a.jpg", "b.jpg", "y.jpg", "z.jpg"}
	for i, name := range want {
		if ordered[i].OriginalFilename != name {
			t.Errorf("position %d: got %q, want %q", i, ordered[i].OriginalFilename, name)
		}
	}
}
