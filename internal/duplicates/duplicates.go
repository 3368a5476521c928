// Package duplicates implements the Duplicate Engine (C8): exact and
// near-duplicate clustering over a job's extracted files, plus the
// keep-recommendation scoring used by the review UI.
package duplicates

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaparser/internal/hashutil"
	"mediaparser/internal/model"
)

const (
	exactMaxDistance      = 5
	similarMinDistance     = 6
	similarMaxDistance     = 16
	burstMaxDeltaSeconds   = 2
	panoramaMaxDeltaSeconds = 30
)

// NewGroupID mints a stable 16-hex-char group identifier, matching
// spec.md §4.8's "stable short random identifier (16 hex chars)".
func NewGroupID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// unionFind is a union-find over arbitrary string ids (file sha256 doesn't
// apply here; we union over file indices and carry along any pre-existing
// group id either side already has).
type unionFind struct {
	parent []int
	gid    []string // non-empty if this root carries a pre-existing group id
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), gid: make([]string, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	// Prefer keeping an existing group id over minting a new one.
	if uf.gid[ra] == "" {
		uf.gid[ra] = uf.gid[rb]
	}
	uf.parent[rb] = ra
}

func (uf *unionFind) groupID(x int) string {
	return uf.gid[uf.find(x)]
}

func (uf *unionFind) setGroupID(x, id string) {
	uf.gid[uf.find(x)] = id
}

// Assignment is C8's output for one file: its exact/similar group
// membership and per-group confidence/type, ready to persist via
// store.SetGroups.
type Assignment struct {
	FileIndex int

	ExactGroupID         string
	ExactGroupConfidence model.ConfidenceLevel

	SimilarGroupID         string
	SimilarGroupConfidence model.ConfidenceLevel
	SimilarGroupType       model.GroupType
}

// Cluster runs C8's full algorithm over a job's files and returns one
// Assignment per input file (same order, same length).
func Cluster(files []model.File) []Assignment {
	n := len(files)
	exact := newUnionFind(n)
	similar := newUnionFind(n)
	for i, f := range files {
		exact.gid[i] = f.ExactGroupID
		similar.gid[i] = f.SimilarGroupID
	}

	// Exact grouping by sha256: any class with >= 2 members unions.
	bySHA := map[string][]int{}
	for i, f := range files {
		if f.SHA256 == "" {
			continue
		}
		bySHA[f.SHA256] = append(bySHA[f.SHA256], i)
	}
	for _, idxs := range bySHA {
		if len(idxs) < 2 {
			continue
		}
		for _, i := range idxs[1:] {
			exact.union(idxs[0], i)
		}
	}

	type pairDistance struct {
		i, j int
		dist int
	}
	var pairs []pairDistance

	for i := 0; i < n; i++ {
		if files[i].PerceptualHash == "" {
			continue
		}
		for j := i + 1; j < n; j++ {
			if files[j].PerceptualHash == "" {
				continue
			}
			d := hashutil.HammingHex(files[i].PerceptualHash, files[j].PerceptualHash)
			if d == hashutil.DistanceSentinel {
				continue
			}
			pairs = append(pairs, pairDistance{i, j, d})
			switch {
			case d <= exactMaxDistance:
				exact.union(i, j)
			case d >= similarMinDistance && d <= similarMaxDistance:
				similar.union(i, j)
			}
		}
	}

	// Mint ids for exact-group roots that don't carry a pre-existing one.
	exactMembers := groupMembers(exact, n)
	for root, members := range exactMembers {
		if len(members) < 2 {
			continue
		}
		if exact.groupID(root) == "" {
			exact.setGroupID(root, NewGroupID())
		}
	}

	similarMembers := groupMembers(similar, n)
	for root, members := range similarMembers {
		if len(members) < 2 {
			continue
		}
		if similar.groupID(root) == "" {
			similar.setGroupID(root, NewGroupID())
		}
	}

	distanceIndex := map[[2]int]int{}
	for _, p := range pairs {
		distanceIndex[[2]int{p.i, p.j}] = p.dist
	}
	lookupDistance := func(a, b int) (int, bool) {
		if a > b {
			a, b = b, a
		}
		d, ok := distanceIndex[[2]int{a, b}]
		return d, ok
	}

	assignments := make([]Assignment, n)
	for i := range assignments {
		assignments[i].FileIndex = i
	}

	for root, members := range exactMembers {
		if len(members) < 2 {
			continue
		}
		gid := exact.groupID(root)
		conf := exactGroupConfidence(members, lookupDistance)
		for _, m := range members {
			assignments[m].ExactGroupID = gid
			assignments[m].ExactGroupConfidence = conf
		}
	}

	for root, members := range similarMembers {
		if len(members) < 2 {
			continue
		}
		gid := similar.groupID(root)
		conf := similarGroupConfidence(members, lookupDistance)
		gtype := relationshipType(members, files, lookupDistance)
		for _, m := range members {
			assignments[m].SimilarGroupID = gid
			assignments[m].SimilarGroupConfidence = conf
			assignments[m].SimilarGroupType = gtype
		}
	}

	return assignments
}

func groupMembers(uf *unionFind, n int) map[int][]int {
	out := map[int][]int{}
	for i := 0; i < n; i++ {
		root := uf.find(i)
		out[root] = append(out[root], i)
	}
	return out
}

func intraGroupDistances(members []int, lookup func(a, b int) (int, bool)) []int {
	var out []int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if d, ok := lookup(members[i], members[j]); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func exactGroupConfidence(members []int, lookup func(a, b int) (int, bool)) model.ConfidenceLevel {
	distances := intraGroupDistances(members, lookup)
	if len(distances) == 0 {
		return model.ConfidenceHigh
	}
	m := mean(distances)
	switch {
	case m <= 1:
		return model.ConfidenceHigh
	case m <= 3:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func similarGroupConfidence(members []int, lookup func(a, b int) (int, bool)) model.ConfidenceLevel {
	distances := intraGroupDistances(members, lookup)
	m := mean(distances)
	switch {
	case m <= 8:
		return model.ConfidenceHigh
	case m <= 13:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func relationshipType(members []int, files []model.File, lookup func(a, b int) (int, bool)) model.GroupType {
	counts := map[model.GroupType]int{}
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if _, ok := lookup(members[i], members[j]); !ok {
				continue
			}
			counts[pairType(files[members[i]], files[members[j]])]++
		}
	}
	best := model.GroupSimilar
	bestCount := -1
	tie := false
	for _, t := range []model.GroupType{model.GroupBurst, model.GroupPanorama, model.GroupSimilar} {
		c := counts[t]
		if c > bestCount {
			best, bestCount, tie = t, c, false
		} else if c == bestCount {
			tie = true
		}
	}
	if tie {
		return model.GroupSimilar
	}
	return best
}

func pairType(a, b model.File) model.GroupType {
	ta, oka := bestInstant(a)
	tb, okb := bestInstant(b)
	if !oka || !okb {
		return model.GroupSimilar
	}
	delta := ta.Sub(tb)
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta < burstMaxDeltaSeconds*time.Second:
		return model.GroupBurst
	case delta < panoramaMaxDeltaSeconds*time.Second:
		return model.GroupPanorama
	default:
		return model.GroupSimilar
	}
}

// bestInstant is the timestamp C8 uses for relationship-type timing: the
// user-confirmed final_timestamp if present, else the detected one.
func bestInstant(f model.File) (time.Time, bool) {
	if f.FinalTimestamp != nil {
		return *f.FinalTimestamp, true
	}
	if f.DetectedTimestamp != nil {
		return *f.DetectedTimestamp, true
	}
	return time.Time{}, false
}
