package cluster

import (
	"fmt"

	"analog-engine/internal/signal"
	"analog-engine/internal/vectormath"
)

// Metric selects the distance function used for assignment and classification
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// Default iteration parameters when the caller leaves them zero
const (
	defaultMaxIterations = 100
	defaultTolerance     = 1e-4
)

// Config holds the parameters for one k-means run
type Config struct {
	K             int     `json:"k"`
	Metric        Metric  `json:"metric"`
	MaxIterations int     `json:"max_iterations"`
	Tolerance     float64 `json:"tolerance"` // total L1 centroid shift below which the run converges
}

// Assignment maps one input point to its nearest centroid
type Assignment struct {
	PointIndex int     `json:"point_index"`
	ClusterID  int     `json:"cluster_id"`
	Distance   float64 `json:"distance"`
}

// Result is the output of one k-means run
type Result struct {
	Centroids   [][]float64  `json:"centroids"`
	Assignments []Assignment `json:"assignments"`
	Iterations  int          `json:"iterations"`
	Inertia     float64      `json:"inertia"` // sum of squared assigned distances
	AvgDistance float64      `json:"avg_distance"`
	Converged   bool         `json:"converged"`
}

// Run clusters points with Lloyd's algorithm. Seeding is deterministic
// (farthest-point) and assignment ties break to the lowest cluster index, so
// two runs on identical input produce bit-identical results.
//
// Empty clusters keep their previous centroid. The run stops when the total
// L1 centroid shift drops below cfg.Tolerance or the iteration cap is hit.
func Run(points [][]float64, cfg Config) (*Result, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: point set is empty", signal.ErrInvalidInput)
	}
	if cfg.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", signal.ErrInvalidInput, cfg.K)
	}
	dims := len(points[0])
	for i, p := range points {
		if len(p) != dims {
			return nil, fmt.Errorf("%w: point %d has %d dims, expected %d", signal.ErrInvalidInput, i, len(p), dims)
		}
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	if cfg.Metric != MetricCosine && cfg.Metric != MetricEuclidean {
		return nil, fmt.Errorf("%w: unknown metric %q", signal.ErrInvalidInput, cfg.Metric)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultTolerance
	}

	seeds, err := FarthestPointSeeds(points, cfg.K)
	if err != nil {
		return nil, err
	}

	centroids := make([][]float64, len(seeds))
	for i, idx := range seeds {
		c := make([]float64, dims)
		copy(c, points[idx])
		centroids[i] = c
	}

	assignments := make([]Assignment, len(points))
	iterations := 0
	converged := false

	for iterations < cfg.MaxIterations {
		iterations++

		// Assignment step: nearest centroid, lowest index wins ties.
		for i, p := range points {
			bestID := 0
			bestDist, derr := distance(cfg.Metric, p, centroids[0])
			if derr != nil {
				return nil, fmt.Errorf("%w: %v", signal.ErrInvalidInput, derr)
			}
			for c := 1; c < len(centroids); c++ {
				d, _ := distance(cfg.Metric, p, centroids[c])
				if d < bestDist {
					bestDist = d
					bestID = c
				}
			}
			assignments[i] = Assignment{PointIndex: i, ClusterID: bestID, Distance: bestDist}
		}

		// Update step: centroid becomes the mean of its members; empty
		// clusters keep their previous centroid.
		members := make([][][]float64, len(centroids))
		for i, a := range assignments {
			members[a.ClusterID] = append(members[a.ClusterID], points[i])
		}

		totalShift := 0.0
		for c := range centroids {
			if len(members[c]) == 0 {
				continue
			}
			next := vectormath.MeanVector(members[c], dims)
			shift, _ := vectormath.CentroidShift(centroids[c], next)
			totalShift += shift
			centroids[c] = next
		}

		if totalShift < cfg.Tolerance {
			converged = true
			break
		}
	}

	// Final assignment against the converged centroids.
	inertia := 0.0
	totalDist := 0.0
	for i, p := range points {
		bestID := 0
		bestDist, _ := distance(cfg.Metric, p, centroids[0])
		for c := 1; c < len(centroids); c++ {
			d, _ := distance(cfg.Metric, p, centroids[c])
			if d < bestDist {
				bestDist = d
				bestID = c
			}
		}
		assignments[i] = Assignment{PointIndex: i, ClusterID: bestID, Distance: bestDist}
		inertia += bestDist * bestDist
		totalDist += bestDist
	}

	return &Result{
		Centroids:   centroids,
		Assignments: assignments,
		Iterations:  iterations,
		Inertia:     inertia,
		AvgDistance: totalDist / float64(len(points)),
		Converged:   converged,
	}, nil
}

// Classify returns the nearest centroid for a new point using the same
// metric as the run that produced the centroids.
func Classify(point []float64, centroids [][]float64, metric Metric) (int, float64, error) {
	if len(centroids) == 0 {
		return 0, 0, fmt.Errorf("%w: no centroids", signal.ErrInvalidInput)
	}
	if metric == "" {
		metric = MetricCosine
	}
	bestID := 0
	bestDist, err := distance(metric, point, centroids[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", signal.ErrInvalidInput, err)
	}
	for c := 1; c < len(centroids); c++ {
		d, derr := distance(metric, point, centroids[c])
		if derr != nil {
			return 0, 0, fmt.Errorf("%w: %v", signal.ErrInvalidInput, derr)
		}
		if d < bestDist {
			bestDist = d
			bestID = c
		}
	}
	return bestID, bestDist, nil
}

func distance(metric Metric, a, b []float64) (float64, error) {
	if metric == MetricEuclidean {
		return vectormath.EuclideanDistance(a, b)
	}
	return vectormath.CosineDistance(a, b)
}
