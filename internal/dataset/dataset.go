// Package dataset supplies the engine with an immutable snapshot of
// historical price series and derives the windowed, normalized feature
// vectors the matcher consumes. Upstream ingestion is expected to have
// cleaned the data already: bars arrive time-ascending with finite closes.
package dataset

import (
	"fmt"
	"time"

	"analog-engine/internal/signal"
	"analog-engine/internal/vectormath"
)

// Bar is one daily observation of a series.
type Bar struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// Series is an immutable, time-ascending price history for one symbol.
type Series struct {
	symbol string
	bars   []Bar
}

// AnalogWindow is one historical candidate window: its normalized look-back
// shape plus the forward cumulative-return path that follows it.
type AnalogWindow struct {
	ID       string
	Start    time.Time
	End      time.Time
	Features []float64 // close[i]/close[0] - 1 over the look-back span
	Forward  []float64 // close[end+i]/close[end] - 1 over the forward span
}

// StructuralStats summarizes the recent structure of a series for regime
// classification.
type StructuralStats struct {
	Return      float64 `json:"return"`     // total return over the structural window
	Volatility  float64 `json:"volatility"` // stddev of daily simple returns
	MaxDrawdown float64 `json:"max_drawdown"`
}

// NewSeries validates and wraps a bar history. Bars must be non-empty and
// strictly time-ascending with positive closes.
func NewSeries(symbol string, bars []Bar) (*Series, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is empty", signal.ErrInvalidInput)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: series %s has no bars", signal.ErrInvalidInput, symbol)
	}
	for i, b := range bars {
		if b.Close <= 0 {
			return nil, fmt.Errorf("%w: series %s bar %d has non-positive close", signal.ErrInvalidInput, symbol, i)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("%w: series %s bars not strictly ascending at %d", signal.ErrInvalidInput, symbol, i)
		}
	}
	owned := make([]Bar, len(bars))
	copy(owned, bars)
	return &Series{symbol: symbol, bars: owned}, nil
}

// Symbol returns the series symbol.
func (s *Series) Symbol() string { return s.symbol }

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// QueryVector returns the normalized shape of the most recent lookback bars.
func (s *Series) QueryVector(lookback int) ([]float64, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("%w: lookback must be positive", signal.ErrInvalidInput)
	}
	if lookback > len(s.bars) {
		return nil, fmt.Errorf("%w: series %s has %d bars, need %d", signal.ErrInvalidInput, s.symbol, len(s.bars), lookback)
	}
	return normalize(s.bars[len(s.bars)-lookback:]), nil
}

// AnalogWindows enumerates every historical window of lookback bars that has
// forward bars of forward-path data after it and does not overlap the query
// tail (the most recent lookback bars). Windows come back oldest first.
func (s *Series) AnalogWindows(lookback, forward int) ([]AnalogWindow, error) {
	if lookback <= 0 || forward <= 0 {
		return nil, fmt.Errorf("%w: lookback and forward must be positive", signal.ErrInvalidInput)
	}

	var windows []AnalogWindow
	// end is the index of the last bar inside the look-back window.
	lastUsable := len(s.bars) - 1 - forward
	queryStart := len(s.bars) - lookback
	for end := lookback - 1; end <= lastUsable; end++ {
		if end >= queryStart {
			break
		}
		start := end - lookback + 1
		forwardPath := make([]float64, forward)
		base := s.bars[end].Close
		for i := 0; i < forward; i++ {
			forwardPath[i] = s.bars[end+1+i].Close/base - 1
		}
		windows = append(windows, AnalogWindow{
			ID:       fmt.Sprintf("%s:%s", s.symbol, s.bars[end].Time.UTC().Format("2006-01-02")),
			Start:    s.bars[start].Time,
			End:      s.bars[end].Time,
			Features: normalize(s.bars[start : end+1]),
			Forward:  forwardPath,
		})
	}
	return windows, nil
}

// Structural computes regime-classification stats over the most recent
// lookback bars.
func (s *Series) Structural(lookback int) (StructuralStats, error) {
	if lookback <= 0 {
		return StructuralStats{}, fmt.Errorf("%w: lookback must be positive", signal.ErrInvalidInput)
	}
	if lookback > len(s.bars) {
		lookback = len(s.bars)
	}
	window := s.bars[len(s.bars)-lookback:]
	if len(window) < 2 {
		return StructuralStats{}, nil
	}

	closes := make([]float64, len(window))
	returns := make([]float64, 0, len(window)-1)
	for i, b := range window {
		closes[i] = b.Close
		if i > 0 {
			returns = append(returns, b.Close/window[i-1].Close-1)
		}
	}

	return StructuralStats{
		Return:      window[len(window)-1].Close/window[0].Close - 1,
		Volatility:  vectormath.StdDev(returns),
		MaxDrawdown: vectormath.MaxDrawdown(closes),
	}, nil
}

// StateVectors derives one clustering feature vector per window of lookback
// bars, stepping stride bars at a time: [window return, volatility, max
// drawdown, final-vs-mean close]. Used to discover state regimes. Returns the
// vectors alongside each window's end timestamp.
func (s *Series) StateVectors(lookback, stride int) ([][]float64, []time.Time, error) {
	if lookback <= 1 {
		return nil, nil, fmt.Errorf("%w: lookback must exceed 1", signal.ErrInvalidInput)
	}
	if stride <= 0 {
		stride = 1
	}

	var points [][]float64
	var stamps []time.Time
	for end := lookback - 1; end < len(s.bars); end += stride {
		window := s.bars[end-lookback+1 : end+1]
		closes := make([]float64, len(window))
		returns := make([]float64, 0, len(window)-1)
		for i, b := range window {
			closes[i] = b.Close
			if i > 0 {
				returns = append(returns, b.Close/window[i-1].Close-1)
			}
		}
		mean := vectormath.Mean(closes)
		rel := 0.0
		if mean > 0 {
			rel = closes[len(closes)-1]/mean - 1
		}
		points = append(points, []float64{
			closes[len(closes)-1]/closes[0] - 1,
			vectormath.StdDev(returns),
			vectormath.MaxDrawdown(closes),
			rel,
		})
		stamps = append(stamps, window[len(window)-1].Time)
	}
	if len(points) == 0 {
		return nil, nil, fmt.Errorf("%w: series %s too short for lookback %d", signal.ErrInvalidInput, s.symbol, lookback)
	}
	return points, stamps, nil
}

// normalize maps a bar window onto its shape vector: each close relative to
// the first close of the window.
func normalize(window []Bar) []float64 {
	features := make([]float64, len(window))
	base := window[0].Close
	for i, b := range window {
		features[i] = b.Close/base - 1
	}
	return features
}

// Snapshot is an immutable set of series keyed by symbol, handed to the
// engine at construction. It is never mutated after Build.
type Snapshot struct {
	series map[string]*Series
}

// NewSnapshot builds a snapshot from the given series.
func NewSnapshot(series ...*Series) *Snapshot {
	m := make(map[string]*Series, len(series))
	for _, s := range series {
		m[s.symbol] = s
	}
	return &Snapshot{series: m}
}

// Series returns the series for symbol.
func (sn *Snapshot) Series(symbol string) (*Series, error) {
	s, ok := sn.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %s", signal.ErrInvalidInput, symbol)
	}
	return s, nil
}

// Symbols lists the snapshot's symbols.
func (sn *Snapshot) Symbols() []string {
	out := make([]string, 0, len(sn.series))
	for sym := range sn.series {
		out = append(out, sym)
	}
	return out
}

// QueryVector implements the engine data source for symbol.
func (sn *Snapshot) QueryVector(symbol string, lookback int) ([]float64, error) {
	s, err := sn.Series(symbol)
	if err != nil {
		return nil, err
	}
	return s.QueryVector(lookback)
}

// AnalogWindows implements the engine data source for symbol.
func (sn *Snapshot) AnalogWindows(symbol string, lookback, forward int) ([]AnalogWindow, error) {
	s, err := sn.Series(symbol)
	if err != nil {
		return nil, err
	}
	return s.AnalogWindows(lookback, forward)
}

// Structural implements the engine data source for symbol.
func (sn *Snapshot) Structural(symbol string, lookback int) (StructuralStats, error) {
	s, err := sn.Series(symbol)
	if err != nil {
		return StructuralStats{}, err
	}
	return s.Structural(lookback)
}

// StateVectors implements the clustering data source for symbol.
func (sn *Snapshot) StateVectors(symbol string, lookback, stride int) ([][]float64, []time.Time, error) {
	s, err := sn.Series(symbol)
	if err != nil {
		return nil, nil, err
	}
	return s.StateVectors(lookback, stride)
}
