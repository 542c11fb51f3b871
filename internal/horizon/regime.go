package horizon

import (
	"sort"

	"analog-engine/internal/dataset"
	"analog-engine/internal/signal"
)

// RegimeThresholds separates the regime taxonomy on the structural stats of
// the current window. Thresholds are configuration, not constants, because
// they are not volatility-normalized (see Config docs).
type RegimeThresholds struct {
	CrashReturn    float64 `json:"crash_return"`    // at or below -> CRASH
	CrashDrawdown  float64 `json:"crash_drawdown"`  // at or above -> CRASH
	BubbleReturn   float64 `json:"bubble_return"`   // at or above, with high volatility -> BUBBLE
	HighVolatility float64 `json:"high_volatility"` // daily-return stddev marking a heated market
	BullReturn     float64 `json:"bull_return"`     // at or above -> BULL
	BearReturn     float64 `json:"bear_return"`     // at or below -> BEAR
}

// DefaultRegimeThresholds returns the production thresholds for a ~90 day
// structural window.
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{
		CrashReturn:    -0.20,
		CrashDrawdown:  0.30,
		BubbleReturn:   0.35,
		HighVolatility: 0.04,
		BullReturn:     0.05,
		BearReturn:     -0.05,
	}
}

// classifyRegime maps structural stats onto the fixed taxonomy.
func classifyRegime(st dataset.StructuralStats, th RegimeThresholds) signal.Regime {
	switch {
	case st.Return <= th.CrashReturn || st.MaxDrawdown >= th.CrashDrawdown:
		return signal.RegimeCrash
	case st.Return >= th.BubbleReturn && st.Volatility >= th.HighVolatility:
		return signal.RegimeBubble
	case st.Return >= th.BullReturn:
		return signal.RegimeBull
	case st.Return <= th.BearReturn:
		return signal.RegimeBear
	default:
		return signal.RegimeSide
	}
}

// allowedHorizons returns which of the configured horizon lengths are
// trusted in the given regime. Fast-moving regimes trust only the shortest
// horizons; a steady bull trend trusts the longest. The table is closed over
// the taxonomy; SIDE trusts everything.
func allowedHorizons(regime signal.Regime, horizons []int) map[int]bool {
	sorted := make([]int, len(horizons))
	copy(sorted, horizons)
	sort.Ints(sorted)

	take := func(hs []int) map[int]bool {
		out := make(map[int]bool, len(hs))
		for _, h := range hs {
			out[h] = true
		}
		return out
	}
	shortest := func(n int) map[int]bool {
		if n > len(sorted) {
			n = len(sorted)
		}
		return take(sorted[:n])
	}
	longest := func(n int) map[int]bool {
		if n > len(sorted) {
			n = len(sorted)
		}
		return take(sorted[len(sorted)-n:])
	}

	switch regime {
	case signal.RegimeCrash:
		return shortest(2)
	case signal.RegimeBubble:
		return shortest(2)
	case signal.RegimeBear:
		return shortest(3)
	case signal.RegimeBull:
		return longest(3)
	default: // SIDE
		return take(sorted)
	}
}
