package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/hyperjump/tanya/internal/models"
)

// InnerProduct returns the inner product of two vectors.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// Zero vectors and mismatched lengths score 0.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}

// topMatches sorts matches by descending score, keeping insertion order for ties, and keeps k.
func topMatches(matches []models.Match, k int) []models.Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func dimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, got, want)
}
