// Package entropy converts per-horizon directional votes into a three-class
// probability distribution and a risk-scaling factor. When the horizons
// disagree, normalized Shannon entropy rises and the exposure scale shrinks,
// throttling position size instead of vetoing the trade outright.
package entropy

import (
	"math"

	"analog-engine/internal/signal"
)

// Reason codes for the computed scale
const (
	ReasonOK        = "OK"
	ReasonWarn      = "WARN"
	ReasonHard      = "HARD"
	ReasonDominance = "DOMINANCE"
)

// epsilon keeps logs and divisions away from zero
const epsilon = 1e-9

// Config holds the guard parameters. Alpha weights fuse strength and
// confidence into one vote weight and should sum to 1.
type Config struct {
	AlphaStrength   float64 `json:"alpha_strength"`
	AlphaConfidence float64 `json:"alpha_confidence"`
	WarnEntropy     float64 `json:"warn_entropy"`
	HardEntropy     float64 `json:"hard_entropy"`
	MinScale        float64 `json:"min_scale"`
	DominanceHard   float64 `json:"dominance_hard"` // 0 disables the dominance penalty
}

// DefaultConfig returns the production guard parameters.
func DefaultConfig() Config {
	return Config{
		AlphaStrength:   0.55,
		AlphaConfidence: 0.45,
		WarnEntropy:     0.55,
		HardEntropy:     0.75,
		MinScale:        0.25,
		DominanceHard:   0.70,
	}
}

// Vote is one horizon's directional contribution to the guard.
type Vote struct {
	Direction  signal.Direction
	Strength   float64
	Confidence float64
}

// Result is the guard verdict: a risk scale in [MinScale, 1], the bucket
// probability triple and the reason the scale was (or was not) reduced.
type Result struct {
	Scale    float64 `json:"scale"`
	PLong    float64 `json:"p_long"`
	PShort   float64 `json:"p_short"`
	PNeutral float64 `json:"p_neutral"`
	Entropy  float64 `json:"entropy"`
	Reason   string  `json:"reason"`
}

// Evaluate fuses each vote into a bucket weight, converts the three bucket
// totals into probabilities with a numerically stable softmax, and maps the
// normalized entropy of that distribution onto an exposure scale:
// 1.0 at or below WarnEntropy, linearly down to MinScale at HardEntropy,
// MinScale beyond. If any bucket probability exceeds DominanceHard the scale
// is additionally reduced and the reason becomes DOMINANCE. Pure function.
func Evaluate(votes []Vote, cfg Config) Result {
	var long, short, neutral float64
	for _, v := range votes {
		w := cfg.AlphaStrength*v.Strength + cfg.AlphaConfidence*v.Confidence
		switch v.Direction {
		case signal.DirectionLong:
			long += w
		case signal.DirectionShort:
			short += w
		default:
			neutral += w
		}
	}

	pLong, pShort, pNeutral := softmax3(long, short, neutral)
	h := entropyNorm3(pLong, pShort, pNeutral)

	scale := 1.0
	reason := ReasonOK
	switch {
	case h >= cfg.HardEntropy:
		scale = cfg.MinScale
		reason = ReasonHard
	case h > cfg.WarnEntropy:
		span := cfg.HardEntropy - cfg.WarnEntropy
		if span <= 0 {
			span = epsilon
		}
		frac := (h - cfg.WarnEntropy) / span
		scale = 1 - frac*(1-cfg.MinScale)
		reason = ReasonWarn
	}

	if cfg.DominanceHard > 0 {
		if maxP := math.Max(pLong, math.Max(pShort, pNeutral)); maxP > cfg.DominanceHard {
			// Penalize in proportion to how far past the dominance ceiling
			// the leading bucket is.
			penalty := 1 - (maxP - cfg.DominanceHard)
			scale *= penalty
			reason = ReasonDominance
		}
	}

	if scale < cfg.MinScale {
		scale = cfg.MinScale
	} else if scale > 1 {
		scale = 1
	}

	return Result{
		Scale:    scale,
		PLong:    pLong,
		PShort:   pShort,
		PNeutral: pNeutral,
		Entropy:  h,
		Reason:   reason,
	}
}

// softmax3 converts three bucket totals into a probability triple. The max
// is subtracted before exponentiating so large totals cannot overflow.
func softmax3(a, b, c float64) (float64, float64, float64) {
	m := math.Max(a, math.Max(b, c))
	ea := math.Exp(a - m)
	eb := math.Exp(b - m)
	ec := math.Exp(c - m)
	sum := ea + eb + ec
	return ea / sum, eb / sum, ec / sum
}

// entropyNorm3 returns the Shannon entropy of a 3-class distribution
// normalized by ln(3) into [0, 1].
func entropyNorm3(ps ...float64) float64 {
	h := 0.0
	for _, p := range ps {
		if p > 0 {
			h -= p * math.Log(p+epsilon)
		}
	}
	h /= math.Log(3)
	if h < 0 {
		h = 0
	} else if h > 1 {
		h = 1
	}
	return h
}
