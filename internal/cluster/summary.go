package cluster

import (
	"math"
	"sort"

	"analog-engine/internal/signal"
	"analog-engine/internal/vectormath"
)

// Summary condenses one cluster of a run into the stats the persistence and
// presentation collaborators care about.
type Summary struct {
	ClusterID    int           `json:"cluster_id"`
	Size         int           `json:"size"`
	MeanDistance float64       `json:"mean_distance"`
	P90Distance  float64       `json:"p90_distance"`
	Centroid     []float64     `json:"centroid"`
	DominantDims []int         `json:"dominant_dims"`
	Regime       signal.Regime `json:"regime"`
}

// RegimeHints tells the summarizer which centroid dimensions carry the mean
// return and volatility of the underlying state snapshots, and the thresholds
// that separate the regime taxonomy. The dimensions depend on how the
// upstream normalizer lays out its feature vectors, so they are configuration
// rather than constants.
type RegimeHints struct {
	ReturnDim      int     `json:"return_dim"`
	VolatilityDim  int     `json:"volatility_dim"`
	BullReturn     float64 `json:"bull_return"`
	BearReturn     float64 `json:"bear_return"`
	CrashReturn    float64 `json:"crash_return"`
	BubbleReturn   float64 `json:"bubble_return"`
	HighVolatility float64 `json:"high_volatility"`
}

// DefaultRegimeHints assumes dim 0 holds the window return and dim 1 the
// window volatility, both as fractions.
func DefaultRegimeHints() RegimeHints {
	return RegimeHints{
		ReturnDim:      0,
		VolatilityDim:  1,
		BullReturn:     0.05,
		BearReturn:     -0.05,
		CrashReturn:    -0.20,
		BubbleReturn:   0.35,
		HighVolatility: 0.04,
	}
}

// dominantDimCount is how many of the largest-magnitude centroid dimensions
// are reported per cluster.
const dominantDimCount = 3

// Summarize computes per-cluster stats for a finished run: member count,
// mean and 90th-percentile assignment distance, the dominant centroid
// dimensions and a named regime.
func Summarize(res *Result, hints RegimeHints) []Summary {
	summaries := make([]Summary, len(res.Centroids))
	distances := make([][]float64, len(res.Centroids))
	for _, a := range res.Assignments {
		distances[a.ClusterID] = append(distances[a.ClusterID], a.Distance)
	}

	for c := range res.Centroids {
		summaries[c] = Summary{
			ClusterID:    c,
			Size:         len(distances[c]),
			MeanDistance: vectormath.Mean(distances[c]),
			P90Distance:  vectormath.Percentile(distances[c], 0.9),
			Centroid:     res.Centroids[c],
			DominantDims: dominantDims(res.Centroids[c]),
			Regime:       nameRegime(res.Centroids[c], hints),
		}
	}
	return summaries
}

// dominantDims returns the indices of the largest-magnitude centroid
// dimensions, largest first, index order on ties.
func dominantDims(centroid []float64) []int {
	idx := make([]int, len(centroid))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(centroid[idx[a]]) > math.Abs(centroid[idx[b]])
	})
	n := dominantDimCount
	if n > len(idx) {
		n = len(idx)
	}
	return idx[:n]
}

// nameRegime maps a centroid onto the fixed regime taxonomy using its return
// and volatility dimensions.
func nameRegime(centroid []float64, hints RegimeHints) signal.Regime {
	ret, vol := 0.0, 0.0
	if hints.ReturnDim >= 0 && hints.ReturnDim < len(centroid) {
		ret = centroid[hints.ReturnDim]
	}
	if hints.VolatilityDim >= 0 && hints.VolatilityDim < len(centroid) {
		vol = centroid[hints.VolatilityDim]
	}

	switch {
	case ret <= hints.CrashReturn:
		return signal.RegimeCrash
	case ret >= hints.BubbleReturn && vol >= hints.HighVolatility:
		return signal.RegimeBubble
	case ret >= hints.BullReturn:
		return signal.RegimeBull
	case ret <= hints.BearReturn:
		return signal.RegimeBear
	default:
		return signal.RegimeSide
	}
}
