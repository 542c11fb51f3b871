// Package matching finds and filters historical analog windows: candidates
// are ranked by cosine similarity to the query window, then narrowed by a
// dynamic similarity floor and a temporal-dispersion cap so no single
// historical episode dominates the forward-return sample.
package matching

import "time"

// Window is a historical candidate window as seen by the matcher: an
// identifier, its time span and its normalized feature vector.
type Window struct {
	ID       string
	Start    time.Time
	End      time.Time
	Features []float64
}

// Candidate is one ranked analog match. Candidates are ephemeral and
// recomputed per invocation.
type Candidate struct {
	WindowID   string    `json:"window_id"`
	Similarity float64   `json:"similarity"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	RegimeKey  string    `json:"regime_key,omitempty"`
}

// FilterConfig controls the two filter stages.
type FilterConfig struct {
	// StaticFloor is the minimum similarity a candidate must reach
	// regardless of the dynamic quantile.
	StaticFloor float64 `json:"static_floor"`
	// DynamicQuantile selects the similarity at this top-quantile rank of
	// the descending-sorted candidates as an adaptive floor. 0 disables it.
	DynamicQuantile float64 `json:"dynamic_quantile"`
	// MaxPerYear caps how many candidates a single UTC calendar year may
	// contribute, bucketed by match end date. 0 disables the cap.
	MaxPerYear int `json:"max_per_year"`
}

// DefaultFilterConfig returns the filter parameters used when the caller
// provides none.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		StaticFloor:     0.40,
		DynamicQuantile: 0.15,
		MaxPerYear:      3,
	}
}

// FilterStats reports what each stage did, plus concentration diagnostics.
type FilterStats struct {
	InputCount        int         `json:"input_count"`
	PassedFloor       int         `json:"passed_floor"`
	OutputCount       int         `json:"output_count"`
	EffectiveFloor    float64     `json:"effective_floor"`
	DroppedByYear     map[int]int `json:"dropped_by_year,omitempty"`
	YearConcentration float64     `json:"year_concentration"` // normalized Herfindahl over per-year counts
	DominantYear      int         `json:"dominant_year"`
	DominantYearShare float64     `json:"dominant_year_share"`
}
