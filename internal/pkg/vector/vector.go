package vector

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Mismatched lengths and zero-norm vectors score 0 rather than
// erroring; dimension compatibility is the caller's concern.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

type Scored struct {
	Index int
	Score float32
}

// TopK sorts descending by score and keeps at most k entries. Ties
// keep the lower index first so ranking stays deterministic.
func TopK(items []Scored, k int) []Scored {
	if k < 0 {
		k = 0
	}
	sorted := make([]Scored, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Index < sorted[j].Index
	})
	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}
