// Package vectormath provides the pure numeric kernel shared by the
// clustering and analog-matching components. All functions are side-effect
// free. Degenerate-but-well-typed inputs (zero-norm vectors, empty slices)
// resolve to documented sentinel values rather than NaN; only structural
// violations (mismatched lengths) return errors.
package vectormath

import (
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned by pair operations when the two vectors
// do not share the same length.
var ErrDimensionMismatch = errors.New("vectors have mismatched dimensions")

// Dot returns the dot product of a and b.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Norm returns the Euclidean norm of a.
func Norm(a []float64) float64 {
	sum := 0.0
	for _, v := range a {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// When either vector has zero norm the similarity is 0, never NaN.
func CosineSimilarity(a, b []float64) (float64, error) {
	dot, err := Dot(a, b)
	if err != nil {
		return 0, err
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (na * nb), nil
}

// CosineDistance returns 1 - CosineSimilarity(a, b), bounded to [0, 2].
func CosineDistance(a, b []float64) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	d := 1 - sim
	if d < 0 {
		d = 0
	} else if d > 2 {
		d = 2
	}
	return d, nil
}

// EuclideanDistance returns the L2 distance between a and b.
func EuclideanDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// MeanVector returns the component-wise mean of the given vectors.
// Vectors shorter than dims contribute only to the dimensions they cover.
// Returns a zero vector of length dims when the input is empty.
func MeanVector(vectors [][]float64, dims int) []float64 {
	mean := make([]float64, dims)
	if len(vectors) == 0 {
		return mean
	}
	for _, v := range vectors {
		for i := 0; i < dims && i < len(v); i++ {
			mean[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// CentroidShift returns the L1 distance between a and b, used as the
// k-means convergence measure.
func CentroidShift(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum, nil
}

// Percentile returns the nearest-rank percentile of values for p in [0, 1],
// computed on an ascending sorted copy at index floor(p*(n-1)).
// Returns 0 on empty input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	return sorted[idx]
}

// MaxDrawdown returns the maximum peak-to-trough decline over a price or
// cumulative-return path, as a positive fraction of the peak. Returns 0 for
// paths shorter than two points or with a non-positive peak.
func MaxDrawdown(path []float64) float64 {
	if len(path) < 2 {
		return 0
	}
	peak := path[0]
	maxDD := 0.0
	for _, v := range path[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Mean returns the arithmetic mean of values, 0 on empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values, 0 for fewer
// than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)))
}
