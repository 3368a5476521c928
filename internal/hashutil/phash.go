package hashutil

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

const (
	// dctSize is the side of the downsampled grayscale image fed to the DCT.
	dctSize = 32
	// hashSize is the side of the low-frequency coefficient block kept. The
	// DC term is skipped, so 63 of the 64 hash bits carry data and the top
	// bit is always 0.
	hashSize = 8
	// videoFrameOffsetSeconds is the deterministic offset into a video used
	// to extract a representative frame for perceptual hashing.
	videoFrameOffsetSeconds = 1
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

// PHash computes a 64-bit perceptual hash of the image or video at path,
// rendered as 16 hex chars. Returns false (not an error) when the format
// cannot be decoded, matching spec.md §4.2/§7: a missing pHash is a normal
// result.
func PHash(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	var img image.Image
	var err error

	if videoExtensions[ext] {
		img, err = decodeVideoFrame(path)
	} else {
		img, err = decodeImageFile(path)
	}
	if err != nil || img == nil {
		return "", false
	}

	hash := phashImage(img)
	return FormatHash64(hash), true
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err == nil {
		return img, nil
	}
	// image.Decode only tries registered stdlib decoders by default content
	// sniffing; bmp isn't self-registering against image.Decode's format
	// list in every build, so fall back to it explicitly.
	if _, serr := f.Seek(0, 0); serr == nil {
		if bimg, berr := bmp.Decode(f); berr == nil {
			return bimg, nil
		}
	}
	_ = format
	return nil, err
}

// decodeVideoFrame extracts a single representative frame at a fixed
// offset using ffmpeg, the same external-tool pattern the teacher already
// uses for ffprobe metadata extraction.
func decodeVideoFrame(path string) (image.Image, error) {
	tmp, err := os.CreateTemp("", "mediaparser-frame-*.bmp")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.Command("ffmpeg",
		"-y",
		"-ss", secondsArg(videoFrameOffsetSeconds),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		tmpPath,
	)
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bmp.Decode(f)
}

func secondsArg(n int) string {
	if n < 10 {
		return "00:00:0" + string(rune('0'+n))
	}
	return "00:00:" + string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// phashImage runs the standard DCT perceptual-hash recipe: downsample to a
// dctSize x dctSize grayscale image, take the 2-D DCT, keep the top-left
// hashSize x hashSize low-frequency block (excluding the DC term), and
// threshold each coefficient against the block's median.
func phashImage(img image.Image) uint64 {
	gray := toGrayFloat(img, dctSize, dctSize)
	coeffs := dct2D(gray, dctSize)

	vals := make([]float64, 0, hashSize*hashSize-1)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			if x == 0 && y == 0 {
				continue // skip the DC term, which only encodes average brightness
			}
			vals = append(vals, coeffs[y][x])
		}
	}
	median := medianOf(vals)

	var hash uint64
	bit := uint(0)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			if coeffs[y][x] > median {
				hash |= 1 << bit
			}
			bit++
		}
	}
	return hash
}

func toGrayFloat(img image.Image, w, h int) [][]float64 {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			out[y][x] = float64(dst.GrayAt(x, y).Y)
		}
	}
	return out
}

// dct2D computes the 2-D DCT-II of an n x n matrix via separable 1-D DCTs.
func dct2D(m [][]float64, n int) [][]float64 {
	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = dct1D(m[y], n)
	}
	cols := make([][]float64, n)
	for x := 0; x < n; x++ {
		col := make([]float64, n)
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		cols[x] = dct1D(col, n)
	}
	out := make([][]float64, n)
	for y := 0; y < n; y++ {
		out[y] = make([]float64, n)
		for x := 0; x < n; x++ {
			out[y][x] = cols[x][y]
		}
	}
	return out
}

func dct1D(in []float64, n int) []float64 {
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		alpha := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			alpha = math.Sqrt(1.0 / float64(n))
		}
		out[k] = alpha * sum
	}
	return out
}

func medianOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
