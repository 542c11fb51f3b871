package horizon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"analog-engine/internal/dataset"
	"analog-engine/internal/signal"
)

// stubSource is a canned DataSource for engine tests.
type stubSource struct {
	query      []float64
	windows    []dataset.AnalogWindow
	structural dataset.StructuralStats
	queryErr   error
	windowsErr error
	structErr  error
}

func (s *stubSource) QueryVector(symbol string, lookback int) ([]float64, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.query, nil
}

func (s *stubSource) AnalogWindows(symbol string, lookback, forward int) ([]dataset.AnalogWindow, error) {
	if s.windowsErr != nil {
		return nil, s.windowsErr
	}
	return s.windows, nil
}

func (s *stubSource) Structural(symbol string, lookback int) (dataset.StructuralStats, error) {
	if s.structErr != nil {
		return dataset.StructuralStats{}, s.structErr
	}
	return s.structural, nil
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

// analogAt builds a window whose features exactly match the query vector and
// whose forward path ends at finalReturn.
func analogAt(id string, year int, features []float64, finalReturn float64) dataset.AnalogWindow {
	start := time.Date(year, time.Month(1+len(id)%6), 10, 0, 0, 0, 0, time.UTC)
	return dataset.AnalogWindow{
		ID:       id,
		Start:    start,
		End:      start.AddDate(0, 0, len(features)),
		Features: features,
		Forward:  []float64{finalReturn / 3, finalReturn / 2, finalReturn},
	}
}

func TestNewValidation(t *testing.T) {
	src := &stubSource{query: []float64{0.01}}

	cases := []struct {
		name   string
		cfg    Config
		source DataSource
	}{
		{"empty horizons", Config{}, src},
		{"non-positive horizon", Config{Horizons: []int{7, 0}}, src},
		{"nil source", Config{Horizons: []int{7}}, nil},
	}
	for _, tc := range cases {
		_, err := New(tc.cfg, tc.source, nil, nil)
		if !errors.Is(err, signal.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestComputeEmptySymbol(t *testing.T) {
	e, err := New(DefaultConfig(), &stubSource{query: []float64{0.01}}, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := e.Compute(context.Background(), ""); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty symbol, got %v", err)
	}
}

func TestComputeUnknownSymbol(t *testing.T) {
	src := &stubSource{queryErr: fmt.Errorf("%w: unknown symbol", signal.ErrInvalidInput)}
	e, err := New(DefaultConfig(), src, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := e.Compute(context.Background(), "NOPE"); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("expected unknown symbol error to propagate, got %v", err)
	}
}

func TestComputeBullishAnalogs(t *testing.T) {
	query := []float64{0.01, 0.02, 0.04, 0.05}

	// Three matches per year across three years so the per-year cap keeps
	// all nine; forward paths cluster tightly around +5%.
	var windows []dataset.AnalogWindow
	finals := []float64{0.048, 0.050, 0.052}
	for _, year := range []int{2017, 2018, 2019} {
		for j, f := range finals {
			id := fmt.Sprintf("BTC:%d-%02d", year, j+1)
			windows = append(windows, analogAt(id, year, query, f))
		}
	}

	src := &stubSource{
		query:      query,
		windows:    windows,
		structural: dataset.StructuralStats{Return: 0.01, Volatility: 0.01, MaxDrawdown: 0.05},
	}
	e, err := New(DefaultConfig(), src, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := e.Compute(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if out.Regime != signal.RegimeSide {
		t.Errorf("expected SIDE regime, got %s", out.Regime)
	}
	if out.Direction != signal.DirectionLong {
		t.Errorf("expected LONG assembled direction, got %s", out.Direction)
	}
	if out.ConsensusScore != 1.0 {
		t.Errorf("expected unanimous consensus 1.0, got %.2f", out.ConsensusScore)
	}
	if len(out.Horizons) != 4 {
		t.Fatalf("expected 4 horizon signals, got %d", len(out.Horizons))
	}
	for _, h := range out.Horizons {
		if h.Reason != signal.ReasonOK {
			t.Errorf("horizon %d: expected reason %s, got %s", h.HorizonDays, signal.ReasonOK, h.Reason)
		}
		if h.Direction != signal.DirectionLong {
			t.Errorf("horizon %d: expected LONG, got %s", h.HorizonDays, h.Direction)
		}
		if h.MatchCount != 9 {
			t.Errorf("horizon %d: expected 9 matches, got %d", h.HorizonDays, h.MatchCount)
		}
	}
	if len(out.SurvivingHorizons) != 4 {
		t.Errorf("SIDE regime should trust all horizons, got %v", out.SurvivingHorizons)
	}
	if out.Risk.Scale <= 0 || out.Risk.Scale > 1 {
		t.Errorf("risk scale out of range: %.3f", out.Risk.Scale)
	}
	if out.Confidence <= 0 || out.Confidence > 1 {
		t.Errorf("confidence out of range: %.3f", out.Confidence)
	}
	if !out.GeneratedAt.Equal(fixedClock()) {
		t.Errorf("expected injected clock timestamp, got %v", out.GeneratedAt)
	}
}

func TestComputeThinDataDegradesToNeutral(t *testing.T) {
	query := []float64{0.01, 0.02}
	src := &stubSource{
		query: query,
		windows: []dataset.AnalogWindow{
			analogAt("BTC:2019-01", 2019, query, 0.05),
			analogAt("BTC:2020-01", 2020, query, 0.04),
		},
		structural: dataset.StructuralStats{Return: 0.0, Volatility: 0.01},
	}
	e, err := New(DefaultConfig(), src, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := e.Compute(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("thin data must degrade, not error: %v", err)
	}
	if out.Direction != signal.DirectionNeutral {
		t.Errorf("expected NEUTRAL, got %s", out.Direction)
	}
	if out.Confidence != 0 {
		t.Errorf("expected zero confidence, got %.3f", out.Confidence)
	}
	for _, h := range out.Horizons {
		if h.Reason != signal.ReasonInsufficientMatches {
			t.Errorf("horizon %d: expected reason %s, got %s", h.HorizonDays, signal.ReasonInsufficientMatches, h.Reason)
		}
	}
}

func TestComputeCancelledContext(t *testing.T) {
	query := []float64{0.01, 0.02}
	src := &stubSource{
		query:      query,
		windows:    []dataset.AnalogWindow{analogAt("BTC:2019-01", 2019, query, 0.05)},
		structural: dataset.StructuralStats{},
	}
	e, err := New(DefaultConfig(), src, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := e.Compute(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("cancellation must degrade, not error: %v", err)
	}
	if out.Direction != signal.DirectionNeutral {
		t.Errorf("expected NEUTRAL on cancellation, got %s", out.Direction)
	}
	for _, h := range out.Horizons {
		if h.Reason != signal.ReasonCancelled {
			t.Errorf("horizon %d: expected reason %s, got %s", h.HorizonDays, signal.ReasonCancelled, h.Reason)
		}
	}
}

func TestAssembleWeightedScore(t *testing.T) {
	e, err := New(DefaultConfig(), &stubSource{query: []float64{0.01}}, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	signals := []signal.HorizonSignal{
		{HorizonDays: 7, Direction: signal.DirectionLong, Strength: 0.8, Confidence: 0.7, Reason: signal.ReasonOK},
		{HorizonDays: 14, Direction: signal.DirectionLong, Strength: 0.6, Confidence: 0.6, Reason: signal.ReasonOK},
		{HorizonDays: 30, Direction: signal.DirectionShort, Strength: 0.3, Confidence: 0.4, Reason: signal.ReasonOK},
		{HorizonDays: 60, Direction: signal.DirectionNeutral, Strength: 0.0, Confidence: 0.5, Reason: signal.ReasonOK},
	}

	out := e.assemble("BTCUSDT", signal.RegimeSide, signals)

	// Weights are 1.0*0.7, 1.5*0.6, 2.0*0.4, 2.5*0.5; the neutral vote
	// contributes nothing to the numerator but stays in the denominator.
	wantScore := (0.7 + 0.9 - 0.8) / (0.7 + 0.9 + 0.8 + 1.25)
	if math.Abs(out.WeightedScore-wantScore) > 1e-9 {
		t.Errorf("weighted score = %.6f, want %.6f", out.WeightedScore, wantScore)
	}
	if out.Direction != signal.DirectionLong {
		t.Errorf("score %.3f above threshold should yield LONG, got %s", out.WeightedScore, out.Direction)
	}
	if out.ConsensusScore != 0.5 {
		t.Errorf("consensus = %.2f, want 0.50 (2 of 4 long)", out.ConsensusScore)
	}
	if out.Counts.Long != 2 || out.Counts.Short != 1 || out.Counts.Neutral != 1 {
		t.Errorf("unexpected counts: %+v", out.Counts)
	}
}

func TestAssembleRegimeFilter(t *testing.T) {
	e, err := New(DefaultConfig(), &stubSource{query: []float64{0.01}}, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	signals := []signal.HorizonSignal{
		{HorizonDays: 7, Direction: signal.DirectionShort, Strength: 0.9, Confidence: 0.8, Reason: signal.ReasonOK},
		{HorizonDays: 14, Direction: signal.DirectionShort, Strength: 0.7, Confidence: 0.7, Reason: signal.ReasonOK},
		{HorizonDays: 30, Direction: signal.DirectionLong, Strength: 0.9, Confidence: 0.9, Reason: signal.ReasonOK},
		{HorizonDays: 60, Direction: signal.DirectionLong, Strength: 0.9, Confidence: 0.9, Reason: signal.ReasonOK},
	}

	out := e.assemble("BTCUSDT", signal.RegimeCrash, signals)

	if len(out.SurvivingHorizons) != 2 || out.SurvivingHorizons[0] != 7 || out.SurvivingHorizons[1] != 14 {
		t.Fatalf("CRASH should trust the two shortest horizons, got %v", out.SurvivingHorizons)
	}
	if out.Direction != signal.DirectionShort {
		t.Errorf("filtered assembly should be SHORT, got %s", out.Direction)
	}
	for _, h := range out.Horizons {
		switch h.HorizonDays {
		case 30, 60:
			if h.Reason != signal.ReasonRegimeFiltered {
				t.Errorf("horizon %d: expected reason %s, got %s", h.HorizonDays, signal.ReasonRegimeFiltered, h.Reason)
			}
		default:
			if h.Reason != signal.ReasonOK {
				t.Errorf("horizon %d: expected reason %s, got %s", h.HorizonDays, signal.ReasonOK, h.Reason)
			}
		}
	}
}

func TestAllowedHorizonsTable(t *testing.T) {
	horizons := []int{7, 14, 30, 60}
	cases := []struct {
		regime signal.Regime
		want   []int
	}{
		{signal.RegimeCrash, []int{7, 14}},
		{signal.RegimeBubble, []int{7, 14}},
		{signal.RegimeBear, []int{7, 14, 30}},
		{signal.RegimeBull, []int{14, 30, 60}},
		{signal.RegimeSide, []int{7, 14, 30, 60}},
	}
	for _, tc := range cases {
		got := allowedHorizons(tc.regime, horizons)
		if len(got) != len(tc.want) {
			t.Errorf("%s: got %v, want %v", tc.regime, got, tc.want)
			continue
		}
		for _, h := range tc.want {
			if !got[h] {
				t.Errorf("%s: horizon %d should be allowed", tc.regime, h)
			}
		}
	}
}

func TestClassifyRegimeStructuralFailure(t *testing.T) {
	src := &stubSource{query: []float64{0.01}, structErr: errors.New("series too short")}
	e, err := New(DefaultConfig(), src, nil, fixedClock)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := e.classify("BTCUSDT"); got != signal.RegimeSide {
		t.Errorf("structural failure should default to SIDE, got %s", got)
	}
}
