package matching

import (
	"fmt"
	"math"
	"sort"

	"analog-engine/internal/signal"
	"analog-engine/internal/vectormath"
)

// RankAnalogs scores every historical window against the query vector by
// cosine similarity and returns candidates in descending similarity order,
// earliest start first on ties. Windows producing a non-finite similarity are
// skipped. limit <= 0 means no limit.
func RankAnalogs(query []float64, windows []Window, limit int) ([]Candidate, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", signal.ErrInvalidInput)
	}

	candidates := make([]Candidate, 0, len(windows))
	for _, w := range windows {
		sim, err := vectormath.CosineSimilarity(query, w.Features)
		if err != nil {
			return nil, fmt.Errorf("%w: window %s: %v", signal.ErrInvalidInput, w.ID, err)
		}
		if math.IsNaN(sim) || math.IsInf(sim, 0) {
			continue
		}
		candidates = append(candidates, Candidate{
			WindowID:   w.ID,
			Similarity: sim,
			Start:      w.Start,
			End:        w.End,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
