package confidence

import (
	"testing"
	"time"

	"mediaparser/internal/model"
)

func cand(source string, t time.Time) model.TimestampCandidate {
	return model.TimestampCandidate{Instant: t, Source: source}
}

func TestScoreNoCandidatesReturnsNone(t *testing.T) {
	_, _, level, ok := Score(nil)
	if ok {
		t.Fatal("expected ok=false")
	}
	if level != model.ConfidenceNone {
		t.Errorf("got %v, want NONE", level)
	}
}

func TestScoreDropsPreEpochYears(t *testing.T) {
	old := cand("EXIF:DateTimeOriginal", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	_, _, _, ok := Score([]model.TimestampCandidate{old})
	if ok {
		t.Fatal("expected candidate before year 2000 to be dropped")
	}
}

func TestScoreHighConfidenceRequiresWeightAndAgreement(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("EXIF:DateTimeOriginal", base),
		cand("EXIF:CreateDate", base.Add(5*time.Second)),
	}
	instant, source, level, ok := Score(candidates)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if source != "EXIF:DateTimeOriginal" {
		t.Errorf("got source %q, want EXIF:DateTimeOriginal", source)
	}
	if !instant.Equal(base) {
		t.Errorf("got instant %v, want %v", instant, base)
	}
	if level != model.ConfidenceHigh {
		t.Errorf("got %v, want HIGH", level)
	}
}

func TestScoreMediumWhenWeightHighButLonely(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("EXIF:DateTimeOriginal", base),
	}
	_, _, level, ok := Score(candidates)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if level != model.ConfidenceMedium {
		t.Errorf("got %v, want MEDIUM (w>=8 but k=1)", level)
	}
}

func TestScoreMediumWhenAgreementButLowWeight(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("filename_date", base),
		cand("filename_datetime", base.Add(10*time.Second)),
	}
	_, _, level, ok := Score(candidates)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if level != model.ConfidenceMedium {
		t.Errorf("got %v, want MEDIUM (k>1 even though w<5)", level)
	}
}

func TestScoreLowWhenAloneAndWeak(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("File:FileModifyDate", base),
	}
	_, _, level, ok := Score(candidates)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if level != model.ConfidenceLow {
		t.Errorf("got %v, want LOW", level)
	}
}

func TestScorePicksEarliestTieBrokenBySource(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("filename_datetime", base),
		cand("EXIF:DateTimeOriginal", base), // same instant, lexicographically earlier source
	}
	_, source, _, ok := Score(candidates)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if source != "EXIF:DateTimeOriginal" {
		t.Errorf("got %q, want EXIF:DateTimeOriginal (tie-break by source)", source)
	}
}

func TestOptionsEmptyForNoCandidates(t *testing.T) {
	if opts := Options(nil); opts != nil {
		t.Errorf("got %v, want nil", opts)
	}
}

func TestOptionsMarksEarliestSelected(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("EXIF:DateTimeOriginal", base),
		cand("filename_date", base.Add(2*time.Hour)),
	}
	opts := Options(candidates)
	if len(opts) == 0 {
		t.Fatal("expected at least one option")
	}
	if !opts[0].Selected {
		t.Error("expected earliest bucket to be selected")
	}
	if !opts[0].Instant.Equal(base) {
		t.Errorf("earliest option instant = %v, want %v", opts[0].Instant, base)
	}
}

func TestOptionsIncludesHighestScoringBucketIfDifferent(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	later := base.Add(2 * time.Hour)
	candidates := []model.TimestampCandidate{
		cand("filename_date", base), // earliest, weight 2
		cand("EXIF:DateTimeOriginal", later),
		cand("EXIF:CreateDate", later.Add(1*time.Second)), // agrees with EXIF:DateTimeOriginal
	}
	opts := Options(candidates)
	foundHighScore := false
	for _, o := range opts {
		if o.Instant.Equal(later) {
			foundHighScore = true
		}
	}
	if !foundHighScore {
		t.Error("expected the higher-scoring later bucket to be included")
	}
}

func TestOptionsCapsDeviantsAtTwo(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	candidates := []model.TimestampCandidate{
		cand("EXIF:DateTimeOriginal", base),
		cand("EXIF:CreateDate", base.Add(1*time.Hour)),
		cand("EXIF:ModifyDate", base.Add(2*time.Hour)),
		cand("QuickTime:CreateDate", base.Add(3*time.Hour)),
		cand("filename_datetime", base.Add(4*time.Hour)),
	}
	opts := Options(candidates)
	if len(opts) > 4 {
		t.Errorf("got %d options, want at most 4 (selected + best + 2 deviants)", len(opts))
	}
}
