package entropy

import (
	"math"
	"testing"

	"analog-engine/internal/signal"
)

func TestEntropyNorm3Bounds(t *testing.T) {
	cases := [][]float64{
		{1, 0, 0},
		{0.5, 0.5, 0},
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.7, 0.2, 0.1},
	}
	for _, ps := range cases {
		h := entropyNorm3(ps...)
		if h < 0 || h > 1 {
			t.Errorf("entropyNorm3(%v) = %v, out of [0,1]", ps, h)
		}
	}

	if h := entropyNorm3(1, 0, 0); h > 1e-6 {
		t.Errorf("degenerate distribution entropy = %v, want ~0", h)
	}
	if h := entropyNorm3(1.0/3, 1.0/3, 1.0/3); h < 0.999 {
		t.Errorf("uniform distribution entropy = %v, want ~1", h)
	}
}

func TestSoftmax3(t *testing.T) {
	a, b, c := softmax3(1, 2, 3)
	sum := a + b + c
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}
	if !(c > b && b > a) {
		t.Errorf("softmax ordering wrong: %v %v %v", a, b, c)
	}

	// Large totals must not overflow.
	a, b, c = softmax3(1000, 1001, 999)
	for _, p := range []float64{a, b, c} {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("softmax produced non-finite probability: %v %v %v", a, b, c)
		}
	}
}

func TestEvaluateProbabilitiesSumToOne(t *testing.T) {
	votes := []Vote{
		{Direction: signal.DirectionLong, Strength: 0.8, Confidence: 0.7},
		{Direction: signal.DirectionShort, Strength: 0.4, Confidence: 0.5},
		{Direction: signal.DirectionNeutral, Strength: 0, Confidence: 0.5},
	}
	res := Evaluate(votes, DefaultConfig())
	sum := res.PLong + res.PShort + res.PNeutral
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("probability triple sums to %v, want 1", sum)
	}
	for _, p := range []float64{res.PLong, res.PShort, res.PNeutral} {
		if p < 0 || p > 1 {
			t.Errorf("probability %v out of [0,1]", p)
		}
	}
}

func TestEvaluateScaleMonotonicInEntropy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DominanceHard = 0 // isolate the entropy ramp

	// Sweeping from strong agreement to full disagreement increases entropy;
	// the scale must never increase along the way.
	prevScale := 2.0
	prevEntropy := -1.0
	for _, shortW := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		votes := []Vote{
			{Direction: signal.DirectionLong, Strength: 1, Confidence: 1},
			{Direction: signal.DirectionShort, Strength: shortW, Confidence: shortW},
			{Direction: signal.DirectionNeutral, Strength: shortW, Confidence: shortW},
		}
		res := Evaluate(votes, cfg)
		if res.Entropy < prevEntropy-1e-9 {
			t.Fatalf("entropy not increasing along sweep: %v after %v", res.Entropy, prevEntropy)
		}
		if res.Scale > prevScale+1e-9 {
			t.Errorf("scale increased from %v to %v as entropy rose", prevScale, res.Scale)
		}
		prevScale = res.Scale
		prevEntropy = res.Entropy
	}
}

func TestEvaluateScaleBoundsAndReasons(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DominanceHard = 0

	// Perfect 3-way disagreement: entropy ~1 >= hard threshold.
	split := []Vote{
		{Direction: signal.DirectionLong, Strength: 1, Confidence: 1},
		{Direction: signal.DirectionShort, Strength: 1, Confidence: 1},
		{Direction: signal.DirectionNeutral, Strength: 1, Confidence: 1},
	}
	res := Evaluate(split, cfg)
	if res.Scale != cfg.MinScale {
		t.Errorf("hard-entropy scale = %v, want %v", res.Scale, cfg.MinScale)
	}
	if res.Reason != ReasonHard {
		t.Errorf("reason = %s, want HARD", res.Reason)
	}

	// No votes at all: buckets are equal, entropy ~1, still MinScale.
	res = Evaluate(nil, cfg)
	if res.Scale != cfg.MinScale {
		t.Errorf("empty-vote scale = %v, want %v", res.Scale, cfg.MinScale)
	}
}

func TestEvaluateDominancePenalty(t *testing.T) {
	cfg := DefaultConfig()
	// One overwhelming bucket: low entropy, but dominance above the ceiling.
	votes := []Vote{
		{Direction: signal.DirectionLong, Strength: 10, Confidence: 10},
	}
	withPenalty := Evaluate(votes, cfg)

	cfg.DominanceHard = 0
	withoutPenalty := Evaluate(votes, cfg)

	if withPenalty.Reason != ReasonDominance {
		t.Errorf("reason = %s, want DOMINANCE", withPenalty.Reason)
	}
	if withPenalty.Scale >= withoutPenalty.Scale {
		t.Errorf("dominance penalty did not reduce scale: %v vs %v",
			withPenalty.Scale, withoutPenalty.Scale)
	}
	if withPenalty.Scale < cfg.MinScale {
		t.Errorf("scale %v fell below MinScale", withPenalty.Scale)
	}
}
