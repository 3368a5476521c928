package duplicates

import (
	"testing"
	"time"

	"mediaparser/internal/model"
)

func TestClusterExactGroupBySHA256(t *testing.T) {
	files := []model.File{
		{SHA256: "aaa", Width: 100, Height: 100},
		{SHA256: "aaa", Width: 4000, Height: 3000},
		{SHA256: "bbb"},
	}
	assignments := Cluster(files)

	if assignments[0].ExactGroupID == "" || assignments[0].ExactGroupID != assignments[1].ExactGroupID {
		t.Fatalf("expected files 0 and 1 in the same exact group, got %+v", assignments)
	}
	if assignments[0].ExactGroupConfidence != model.ConfidenceHigh {
		t.Errorf("got %v, want HIGH for a pure sha256 group with no phash distances", assignments[0].ExactGroupConfidence)
	}
	if assignments[2].ExactGroupID != "" {
		t.Errorf("expected file 2 to have no group, got %q", assignments[2].ExactGroupID)
	}
}

func hashAt(distance int) (string, string) {
	// Two hashes differing in exactly `distance` low bits.
	a := uint64(0)
	b := uint64(0)
	for i := 0; i < distance; i++ {
		b |= 1 << uint(i)
	}
	return fmtHash(a), fmtHash(b)
}

func fmtHash(v uint64) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hex[v&0xF]
		v >>= 4
	}
	return string(buf)
}

func TestClusterDistanceBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		distance   int
		wantExact  bool
		wantSimilar bool
	}{
		{"distance 5 is exact", 5, true, false},
		{"distance 6 is similar", 6, false, true},
		{"distance 16 is similar", 16, false, true},
		{"distance 17 is unrelated", 17, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, hb := hashAt(tt.distance)
			files := []model.File{
				{SHA256: "x1", PerceptualHash: ha},
				{SHA256: "x2", PerceptualHash: hb},
			}
			assignments := Cluster(files)
			gotExact := assignments[0].ExactGroupID != "" && assignments[0].ExactGroupID == assignments[1].ExactGroupID
			gotSimilar := assignments[0].SimilarGroupID != "" && assignments[0].SimilarGroupID == assignments[1].SimilarGroupID
			if gotExact != tt.wantExact {
				t.Errorf("exact grouping = %v, want %v", gotExact, tt.wantExact)
			}
			if gotSimilar != tt.wantSimilar {
				t.Errorf("similar grouping = %v, want %v", gotSimilar, tt.wantSimilar)
			}
		})
	}
}

func TestClusterBurstRelationshipType(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	t1, t2, t3 := base, base.Add(1*time.Second), base.Add(2*time.Second)

	h1, h2 := hashAt(7)
	_, h3 := hashAt(9) // distance from h1's all-zero baseline; approximate burst-like spread

	files := []model.File{
		{SHA256: "a", PerceptualHash: h1, DetectedTimestamp: &t1},
		{SHA256: "b", PerceptualHash: h2, DetectedTimestamp: &t2},
		{SHA256: "c", PerceptualHash: h3, DetectedTimestamp: &t3},
	}
	assignments := Cluster(files)

	if assignments[0].SimilarGroupID == "" {
		t.Fatal("expected a similar group to form")
	}
	if assignments[0].SimilarGroupType != model.GroupBurst {
		t.Errorf("got %v, want BURST (timestamps within 2s of each other)", assignments[0].SimilarGroupType)
	}
}

func TestRecommendedIndexPrefersHigherResolution(t *testing.T) {
	members := []model.File{
		{OriginalFilename: "a.jpg", Width: 1000, Height: 1000, SizeBytes: 500_000},
		{OriginalFilename: "b.jpg", Width: 4000, Height: 3000, SizeBytes: 2_000_000},
	}
	idx := RecommendedIndex(members)
	if idx != 1 {
		t.Errorf("got index %d, want 1 (the higher-resolution file)", idx)
	}
}

func TestRecommendedIndexEmptyReturnsNegativeOne(t *testing.T) {
	if idx := RecommendedIndex(nil); idx != -1 {
		t.Errorf("got %d, want -1", idx)
	}
}
