package matching

import (
	"sort"
	"time"

	"analog-engine/internal/vectormath"
)

// Filter narrows a ranked candidate list in two stages.
//
// Stage A (dynamic similarity floor): the effective floor is the larger of
// the static floor and the similarity found at the configured top-quantile
// rank of the descending-sorted similarities. A fixed floor is too strict in
// calm regimes and too lax in volatile ones; the quantile adapts per query.
//
// Stage B (temporal dispersion): walking the admitted candidates in
// descending-similarity order, each UTC calendar year (bucketed by the match
// end date) may contribute at most MaxPerYear candidates. Excess candidates
// are dropped, never substituted.
//
// Empty input yields an empty slice and zero-valued stats; Filter never
// returns an error.
func Filter(candidates []Candidate, cfg FilterConfig) ([]Candidate, FilterStats) {
	stats := FilterStats{InputCount: len(candidates)}
	if len(candidates) == 0 {
		return []Candidate{}, stats
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].Start.Before(ranked[j].Start)
	})

	// Stage A: dynamic similarity floor. The quantile is taken over the
	// candidate similarities, so raising DynamicQuantile can only raise the
	// effective floor.
	floor := cfg.StaticFloor
	if cfg.DynamicQuantile > 0 {
		sims := make([]float64, len(ranked))
		for i, c := range ranked {
			sims[i] = c.Similarity
		}
		if q := vectormath.Percentile(sims, cfg.DynamicQuantile); q > floor {
			floor = q
		}
	}
	stats.EffectiveFloor = floor

	admitted := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if c.Similarity >= floor {
			admitted = append(admitted, c)
		}
	}
	stats.PassedFloor = len(admitted)

	// Stage B: temporal dispersion cap.
	out := admitted
	if cfg.MaxPerYear > 0 {
		out = make([]Candidate, 0, len(admitted))
		perYear := make(map[int]int)
		dropped := make(map[int]int)
		for _, c := range admitted {
			year := c.End.In(time.UTC).Year()
			if perYear[year] >= cfg.MaxPerYear {
				dropped[year]++
				continue
			}
			perYear[year]++
			out = append(out, c)
		}
		if len(dropped) > 0 {
			stats.DroppedByYear = dropped
		}
	}
	stats.OutputCount = len(out)

	fillConcentration(&stats, out)
	return out, stats
}

// fillConcentration computes the normalized Herfindahl index over per-year
// output counts and the dominant year's share. Diagnostics only; nothing
// downstream branches on them.
func fillConcentration(stats *FilterStats, out []Candidate) {
	if len(out) == 0 {
		return
	}
	perYear := make(map[int]int)
	for _, c := range out {
		perYear[c.End.In(time.UTC).Year()]++
	}

	n := float64(len(perYear))
	total := float64(len(out))
	hhi := 0.0
	dominantYear, dominantCount := 0, 0
	for year, count := range perYear {
		share := float64(count) / total
		hhi += share * share
		if count > dominantCount || (count == dominantCount && year < dominantYear) {
			dominantYear, dominantCount = year, count
		}
	}

	if n > 1 {
		stats.YearConcentration = (hhi - 1/n) / (1 - 1/n)
	} else {
		stats.YearConcentration = 1
	}
	stats.DominantYear = dominantYear
	stats.DominantYearShare = float64(dominantCount) / total
}
