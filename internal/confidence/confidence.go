// Package confidence scores and curates the timestamp candidates the
// Per-File Extractor gathers for a file, per the fixed source-weight table.
package confidence

import (
	"sort"
	"time"

	"mediaparser/internal/model"
)

// SourceWeights is the fixed priority table used both to pick the chosen
// timestamp and to score options() buckets. Higher is more trustworthy.
var SourceWeights = map[string]int{
	"EXIF:DateTimeOriginal":  10,
	"EXIF:CreateDate":        8,
	"QuickTime:CreateDate":   7,
	"EXIF:ModifyDate":        5,
	"filename_datetime":      3,
	"filename_date":          2,
	"File:FileModifyDate":    1,
}

// tolerance is the ±30s window within which two candidate instants are
// considered in agreement, both for scoring and for options() bucketing.
const tolerance = 30 * time.Second

const minValidYear = 2000

func weightOf(source string) int {
	if w, ok := SourceWeights[source]; ok {
		return w
	}
	return 0
}

// dropInvalid removes candidates whose year predates minValidYear.
func dropInvalid(candidates []model.TimestampCandidate) []model.TimestampCandidate {
	out := make([]model.TimestampCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Instant.Year() >= minValidYear {
			out = append(out, c)
		}
	}
	return out
}

// sortedByInstant orders candidates by instant, tie-broken
// lexicographically by source for determinism.
func sortedByInstant(candidates []model.TimestampCandidate) []model.TimestampCandidate {
	out := make([]model.TimestampCandidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Instant.Equal(out[j].Instant) {
			return out[i].Instant.Before(out[j].Instant)
		}
		return out[i].Source < out[j].Source
	})
	return out
}

func withinTolerance(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// tier applies the fixed HIGH/MEDIUM/LOW rule to a chosen source weight and
// an agreement-cluster size.
func tier(w, k int) model.ConfidenceLevel {
	switch {
	case w >= 8 && k > 1:
		return model.ConfidenceHigh
	case w >= 5 || k > 1:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// Score implements C5's score(candidates): drops invalid candidates, picks
// the earliest remaining instant (tie-broken by source), and returns it
// with its confidence tier. Returns ok=false if no candidate survives.
func Score(candidates []model.TimestampCandidate) (instant time.Time, source string, level model.ConfidenceLevel, ok bool) {
	valid := dropInvalid(candidates)
	if len(valid) == 0 {
		return time.Time{}, "", model.ConfidenceNone, false
	}
	sorted := sortedByInstant(valid)
	chosen := sorted[0]

	k := 0
	for _, c := range valid {
		if withinTolerance(c.Instant, chosen.Instant) {
			k++
		}
	}

	w := weightOf(chosen.Source)
	return chosen.Instant, chosen.Source, tier(w, k), true
}

// Option is one curated alternative timestamp surfaced to the review UI.
type Option struct {
	Instant    time.Time
	Score      int
	Confidence model.ConfidenceLevel
	Selected   bool
	Sources    []string
}

// Options implements C5's options(candidates): buckets candidates into
// ±30s equivalence classes, scores each bucket by the sum of its source
// weights, and returns the earliest bucket (selected), the highest-scoring
// bucket if different, and up to two further buckets scoring >= 3.
func Options(candidates []model.TimestampCandidate) []Option {
	valid := dropInvalid(candidates)
	if len(valid) == 0 {
		return nil
	}
	sorted := sortedByInstant(valid)

	var buckets [][]model.TimestampCandidate
	for _, c := range sorted {
		placed := false
		for i, b := range buckets {
			if withinTolerance(c.Instant, b[0].Instant) {
				buckets[i] = append(buckets[i], c)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, []model.TimestampCandidate{c})
		}
	}

	toOption := func(b []model.TimestampCandidate) Option {
		score := 0
		sources := make([]string, 0, len(b))
		for _, c := range b {
			score += weightOf(c.Source)
			sources = append(sources, c.Source)
		}
		k := len(b)
		w := weightOf(b[0].Source)
		for _, c := range b {
			if w2 := weightOf(c.Source); w2 > w {
				w = w2
			}
		}
		return Option{
			Instant:    b[0].Instant,
			Score:      score,
			Confidence: tier(w, k),
			Sources:    sources,
		}
	}

	earliest := toOption(buckets[0])
	earliest.Selected = true

	byScore := make([]int, len(buckets))
	for i := range buckets {
		byScore[i] = i
	}
	sort.SliceStable(byScore, func(i, j int) bool {
		return toOption(buckets[byScore[i]]).Score > toOption(buckets[byScore[j]]).Score
	})
	best := byScore[0]

	result := []Option{earliest}
	if best != 0 {
		result = append(result, toOption(buckets[best]))
	}

	deviants := 0
	for _, idx := range byScore {
		if idx == 0 || idx == best {
			continue
		}
		opt := toOption(buckets[idx])
		if opt.Score >= 3 && deviants < 2 {
			result = append(result, opt)
			deviants++
		}
		if deviants == 2 {
			break
		}
	}

	return result
}
