package duplicates

import (
	"path/filepath"
	"strings"

	"mediaparser/internal/model"
)

// formatMultipliers folds in a format-quality signal on top of resolution
// and file size, supplementing spec.md's S4 rule ("the 12-megapixel
// version is the recommended keep") with the original implementation's
// recommend_best_duplicate scoring (original_source/app/lib/duplicates.py):
// RAW beats lossless beats baseline JPEG beats modern lossy-compressed.
var formatMultipliers = map[string]float64{
	".raw": 1.3, ".cr2": 1.3, ".nef": 1.3, ".arw": 1.3, ".dng": 1.3,
	".png": 1.1, ".tiff": 1.1, ".tif": 1.1, ".bmp": 1.1,
	".jpg": 1.0, ".jpeg": 1.0,
	".heic": 0.9, ".heif": 0.9, ".webp": 0.9,
}

func formatMultiplier(path string) float64 {
	if m, ok := formatMultipliers[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return 1.0
}

// RecommendedIndex scores every file in an exact-duplicate group by
// resolution first, file size second, each scaled by a format-quality
// multiplier, and returns the index (within members) of the best keep.
// Ties fall back to the first member in input order, for determinism.
func RecommendedIndex(members []model.File) int {
	if len(members) == 0 {
		return -1
	}
	best := 0
	bestScore := recommendScore(members[0])
	for i := 1; i < len(members); i++ {
		score := recommendScore(members[i])
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func recommendScore(f model.File) float64 {
	resolution := float64(f.Width) * float64(f.Height)
	// Resolution is scaled up by 1,000,000 and file size added as the
	// tiebreaker; a size difference above 1,000,000 bytes can still outweigh
	// a resolution difference of a single pixel.
	base := resolution*1_000_000 + float64(f.SizeBytes)
	return base * formatMultiplier(f.OriginalFilename)
}
