package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"analog-engine/internal/signal"
)

func dailyBars(start time.Time, closes []float64) []Bar {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{Time: start.AddDate(0, 0, i), Close: c}
	}
	return bars
}

func TestNewSeriesValidation(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := NewSeries("", dailyBars(base, []float64{1})); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("empty symbol: got %v", err)
	}
	if _, err := NewSeries("BTC", nil); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("no bars: got %v", err)
	}
	if _, err := NewSeries("BTC", dailyBars(base, []float64{100, -1})); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("negative close: got %v", err)
	}

	bars := dailyBars(base, []float64{100, 101})
	bars[1].Time = bars[0].Time // not ascending
	if _, err := NewSeries("BTC", bars); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("non-ascending bars: got %v", err)
	}
}

func TestQueryVector(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries("BTC", dailyBars(base, []float64{100, 110, 121}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, err := s.QueryVector(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q) != 2 {
		t.Fatalf("query length = %d, want 2", len(q))
	}
	if q[0] != 0 {
		t.Errorf("first feature = %v, want 0 (normalized to window start)", q[0])
	}
	if math.Abs(q[1]-0.1) > 1e-12 {
		t.Errorf("second feature = %v, want 0.1", q[1])
	}

	if _, err := s.QueryVector(10); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("oversized lookback: got %v", err)
	}
}

func TestAnalogWindows(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 102, 104, 106, 108, 110, 112, 114, 116, 118}
	s, err := NewSeries("BTC", dailyBars(base, closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lookback, forward := 3, 2
	windows, err := s.AnalogWindows(lookback, forward)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) == 0 {
		t.Fatal("no windows produced")
	}

	queryStartIdx := len(closes) - lookback
	for _, w := range windows {
		if len(w.Features) != lookback {
			t.Errorf("window %s features length %d, want %d", w.ID, len(w.Features), lookback)
		}
		if len(w.Forward) != forward {
			t.Errorf("window %s forward length %d, want %d", w.ID, len(w.Forward), forward)
		}
		if w.Features[0] != 0 {
			t.Errorf("window %s not normalized to its start", w.ID)
		}
		// No window may overlap the query tail.
		if !w.End.Before(base.AddDate(0, 0, queryStartIdx)) {
			t.Errorf("window %s (end %s) overlaps the query tail", w.ID, w.End)
		}
	}

	// First window ends at index lookback-1, forward path starts right after.
	first := windows[0]
	wantFwd := closes[lookback]/closes[lookback-1] - 1
	if math.Abs(first.Forward[0]-wantFwd) > 1e-12 {
		t.Errorf("first forward return = %v, want %v", first.Forward[0], wantFwd)
	}
}

func TestStructural(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSeries("BTC", dailyBars(base, []float64{100, 120, 90, 110}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := s.Structural(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(st.Return-0.1) > 1e-12 {
		t.Errorf("return = %v, want 0.1", st.Return)
	}
	if math.Abs(st.MaxDrawdown-0.25) > 1e-12 {
		t.Errorf("max drawdown = %v, want 0.25", st.MaxDrawdown)
	}
	if st.Volatility <= 0 {
		t.Errorf("volatility = %v, want > 0", st.Volatility)
	}
}

func TestStateVectors(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s, err := NewSeries("BTC", dailyBars(base, closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	points, stamps, err := s.StateVectors(10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != len(stamps) {
		t.Fatalf("points/stamps length mismatch: %d vs %d", len(points), len(stamps))
	}
	for i, p := range points {
		if len(p) != 4 {
			t.Errorf("point %d has %d dims, want 4", i, len(p))
		}
		if p[0] <= 0 {
			t.Errorf("rising series produced non-positive window return %v", p[0])
		}
	}
}

func TestSnapshotUnknownSymbol(t *testing.T) {
	sn := NewSnapshot()
	if _, err := sn.QueryVector("ETH", 5); !errors.Is(err, signal.ErrInvalidInput) {
		t.Errorf("unknown symbol: got %v", err)
	}
}
