// Package cluster implements deterministic k-means clustering of historical
// market-state vectors: farthest-point seeding, Lloyd iterations and
// per-cluster regime summaries. Identical input always produces identical
// output; there is no randomness anywhere in the package.
package cluster

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"analog-engine/internal/signal"
	"analog-engine/internal/vectormath"
)

// FarthestPointSeeds selects k initial centroid indices from points using
// greedy farthest-point (k-center) seeding:
//
//  1. The point with the maximum Euclidean norm is chosen first.
//  2. Each subsequent pick is the point whose minimum cosine distance to all
//     already-chosen centroids is largest.
//
// Ties always break to the first occurrence, so the result is reproducible.
// k is clamped to the number of distinct point values. Returns an error
// wrapping signal.ErrInvalidInput when points is empty or k <= 0.
func FarthestPointSeeds(points [][]float64, k int) ([]int, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: point set is empty", signal.ErrInvalidInput)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", signal.ErrInvalidInput, k)
	}

	distinct := make(map[string]struct{}, len(points))
	for _, p := range points {
		distinct[vectorKey(p)] = struct{}{}
	}
	if k > len(distinct) {
		k = len(distinct)
	}

	// First seed: maximum Euclidean norm, first occurrence on ties.
	first := 0
	bestNorm := vectormath.Norm(points[0])
	for i := 1; i < len(points); i++ {
		if n := vectormath.Norm(points[i]); n > bestNorm {
			bestNorm = n
			first = i
		}
	}

	seeds := []int{first}
	chosen := map[string]struct{}{vectorKey(points[first]): {}}

	// minDist[i] tracks the minimum cosine distance from point i to any
	// already-chosen centroid, updated incrementally after each pick.
	minDist := make([]float64, len(points))
	for i := range points {
		d, err := vectormath.CosineDistance(points[i], points[first])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", signal.ErrInvalidInput, err)
		}
		minDist[i] = d
	}

	for len(seeds) < k {
		next := -1
		bestDist := math.Inf(-1)
		for i := range points {
			if _, dup := chosen[vectorKey(points[i])]; dup {
				continue
			}
			if minDist[i] > bestDist {
				bestDist = minDist[i]
				next = i
			}
		}
		if next < 0 {
			break
		}
		seeds = append(seeds, next)
		chosen[vectorKey(points[next])] = struct{}{}
		for i := range points {
			d, _ := vectormath.CosineDistance(points[i], points[next])
			if d < minDist[i] {
				minDist[i] = d
			}
		}
	}

	return seeds, nil
}

// vectorKey builds an exact value key for a vector so duplicate points can
// be excluded from seeding.
func vectorKey(v []float64) string {
	var b strings.Builder
	for _, x := range v {
		b.WriteString(strconv.FormatUint(math.Float64bits(x), 16))
		b.WriteByte(':')
	}
	return b.String()
}
