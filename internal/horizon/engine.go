// Package horizon orchestrates the multi-horizon ensemble: per-horizon
// analog queries run in parallel, a regime-conditioned filter decides which
// horizons are trusted, and a weighted assembly plus entropy guard produce
// one risk-scaled directional verdict.
package horizon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"analog-engine/internal/dataset"
	"analog-engine/internal/entropy"
	"analog-engine/internal/logging"
	"analog-engine/internal/matching"
	"analog-engine/internal/signal"
	"analog-engine/internal/vectormath"

	"github.com/google/uuid"
)

// DataSource supplies the immutable historical snapshot the engine queries.
// Implementations must be safe for concurrent reads.
type DataSource interface {
	QueryVector(symbol string, lookback int) ([]float64, error)
	AnalogWindows(symbol string, lookback, forward int) ([]dataset.AnalogWindow, error)
	Structural(symbol string, lookback int) (dataset.StructuralStats, error)
}

// Config holds all assembly parameters. The direction thresholds
// (MeanReturnThreshold, P10Floor) are deliberately configuration rather than
// constants: they are absolute returns, not volatility-normalized, so callers
// trading very different instruments must tune them.
type Config struct {
	Horizons          []int           `json:"horizons"` // forecast spans in days; look-back length mirrors each span
	HorizonWeights    map[int]float64 `json:"horizon_weights"`
	AssemblyThreshold float64         `json:"assembly_threshold"`
	MinMatches        int             `json:"min_matches"`
	TopK              int             `json:"top_k"`

	MeanReturnThreshold float64 `json:"mean_return_threshold"`
	P10Floor            float64 `json:"p10_floor"`
	StrengthScale       float64 `json:"strength_scale"`   // |mean return| mapping to full strength
	DispersionScale     float64 `json:"dispersion_scale"` // forward-return stddev mapping to zero confidence

	StructuralLookback int                   `json:"structural_lookback"`
	Regime             RegimeThresholds      `json:"regime"`
	Filter             matching.FilterConfig `json:"filter"`
	Entropy            entropy.Config        `json:"entropy"`
}

// DefaultConfig returns the production assembly parameters.
func DefaultConfig() Config {
	return Config{
		Horizons:            []int{7, 14, 30, 60},
		HorizonWeights:      map[int]float64{7: 1.0, 14: 1.5, 30: 2.0, 60: 2.5},
		AssemblyThreshold:   0.15,
		MinMatches:          5,
		TopK:                25,
		MeanReturnThreshold: 0.02,
		P10Floor:            -0.05,
		StrengthScale:       0.08,
		DispersionScale:     0.12,
		StructuralLookback:  90,
		Regime:              DefaultRegimeThresholds(),
		Filter:              matching.DefaultFilterConfig(),
		Entropy:             entropy.DefaultConfig(),
	}
}

// Engine assembles multi-horizon analog signals. It holds no state between
// invocations beyond its configuration and injected collaborators.
type Engine struct {
	cfg    Config
	source DataSource
	logger *logging.Logger
	now    func() time.Time
}

// New validates the configuration and builds an engine. The clock is
// injectable for tests; pass nil for time.Now.
func New(cfg Config, source DataSource, logger *logging.Logger, now func() time.Time) (*Engine, error) {
	if len(cfg.Horizons) == 0 {
		return nil, fmt.Errorf("%w: horizon list is empty", signal.ErrInvalidInput)
	}
	for _, h := range cfg.Horizons {
		if h <= 0 {
			return nil, fmt.Errorf("%w: horizon %d must be positive", signal.ErrInvalidInput, h)
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%w: data source is nil", signal.ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 25
	}
	if cfg.StrengthScale <= 0 {
		cfg.StrengthScale = 0.08
	}
	if cfg.DispersionScale <= 0 {
		cfg.DispersionScale = 0.12
	}
	return &Engine{cfg: cfg, source: source, logger: logger.WithComponent("horizon"), now: now}, nil
}

// Compute runs the one-shot pipeline for symbol: parallel per-horizon analog
// queries, regime-conditioned filtering, weighted assembly and entropy-based
// risk scaling. A failed, thin or cancelled horizon degrades to NEUTRAL with
// zero confidence; only invalid configuration or an unknown symbol returns an
// error.
func (e *Engine) Compute(ctx context.Context, symbol string) (*signal.AssembledSignal, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is empty", signal.ErrInvalidInput)
	}
	if _, err := e.source.QueryVector(symbol, 1); err != nil {
		return nil, err
	}

	regime := e.classify(symbol)

	// Horizons share no mutable state; each result lands in its fixed slot
	// so completion order cannot affect the assembly.
	signals := make([]signal.HorizonSignal, len(e.cfg.Horizons))
	var wg sync.WaitGroup
	for i, h := range e.cfg.Horizons {
		wg.Add(1)
		go func(slot, horizonDays int) {
			defer wg.Done()
			signals[slot] = e.computeHorizon(ctx, symbol, horizonDays)
		}(i, h)
	}
	wg.Wait()

	assembled := e.assemble(symbol, regime, signals)

	e.logger.Info("Signal assembled",
		"symbol", symbol,
		"regime", string(regime),
		"direction", string(assembled.Direction),
		"weighted_score", fmt.Sprintf("%.3f", assembled.WeightedScore),
		"consensus", fmt.Sprintf("%.2f", assembled.ConsensusScore),
		"risk_scale", fmt.Sprintf("%.2f", assembled.Risk.Scale),
		"surviving", len(assembled.SurvivingHorizons))

	return assembled, nil
}

// classify runs the structural query for the current regime. Classification
// failure degrades to SIDE (all horizons trusted) rather than aborting.
func (e *Engine) classify(symbol string) signal.Regime {
	st, err := e.source.Structural(symbol, e.cfg.StructuralLookback)
	if err != nil {
		e.logger.Warn("Structural query failed, defaulting regime to SIDE",
			"symbol", symbol, "error", err)
		return signal.RegimeSide
	}
	return classifyRegime(st, e.cfg.Regime)
}

// neutralSignal is the degradation path shared by failed, thin and cancelled
// horizons.
func neutralSignal(horizonDays, matchCount int, reason string) signal.HorizonSignal {
	return signal.HorizonSignal{
		HorizonDays: horizonDays,
		Direction:   signal.DirectionNeutral,
		MatchCount:  matchCount,
		Reason:      reason,
	}
}

// computeHorizon runs one independent analog query: retrieve candidate
// windows for the horizon's look-back span, filter them, and derive a
// directional signal from the forward-return statistics of the survivors.
func (e *Engine) computeHorizon(ctx context.Context, symbol string, horizonDays int) signal.HorizonSignal {
	select {
	case <-ctx.Done():
		return neutralSignal(horizonDays, 0, signal.ReasonCancelled)
	default:
	}

	query, err := e.source.QueryVector(symbol, horizonDays)
	if err != nil {
		e.logger.Debug("Horizon query vector failed", "symbol", symbol, "horizon", horizonDays, "error", err)
		return neutralSignal(horizonDays, 0, signal.ReasonQueryFailed)
	}
	analogs, err := e.source.AnalogWindows(symbol, horizonDays, horizonDays)
	if err != nil {
		e.logger.Debug("Horizon window query failed", "symbol", symbol, "horizon", horizonDays, "error", err)
		return neutralSignal(horizonDays, 0, signal.ReasonQueryFailed)
	}

	windows := make([]matching.Window, len(analogs))
	forward := make(map[string][]float64, len(analogs))
	for i, a := range analogs {
		windows[i] = matching.Window{ID: a.ID, Start: a.Start, End: a.End, Features: a.Features}
		forward[a.ID] = a.Forward
	}

	ranked, err := matching.RankAnalogs(query, windows, 0)
	if err != nil {
		e.logger.Debug("Horizon ranking failed", "symbol", symbol, "horizon", horizonDays, "error", err)
		return neutralSignal(horizonDays, 0, signal.ReasonQueryFailed)
	}
	matches, stats := matching.Filter(ranked, e.cfg.Filter)
	if len(matches) > e.cfg.TopK {
		matches = matches[:e.cfg.TopK]
	}

	if len(matches) < e.cfg.MinMatches {
		e.logger.Debug("Horizon degraded to neutral",
			"symbol", symbol, "horizon", horizonDays,
			"matches", len(matches), "required", e.cfg.MinMatches,
			"effective_floor", fmt.Sprintf("%.3f", stats.EffectiveFloor))
		return neutralSignal(horizonDays, len(matches), signal.ReasonInsufficientMatches)
	}

	select {
	case <-ctx.Done():
		return neutralSignal(horizonDays, len(matches), signal.ReasonCancelled)
	default:
	}

	return e.classifyHorizon(horizonDays, matches, forward)
}

// classifyHorizon turns the forward paths of the filtered matches into a
// directional signal with strength and a dispersion-derived confidence.
func (e *Engine) classifyHorizon(horizonDays int, matches []matching.Candidate, forward map[string][]float64) signal.HorizonSignal {
	finals := make([]float64, 0, len(matches))
	drawdowns := make([]float64, 0, len(matches))
	for _, m := range matches {
		path, ok := forward[m.WindowID]
		if !ok || len(path) == 0 {
			continue
		}
		finals = append(finals, path[len(path)-1])
		// Level path (1+r) so the drawdown helper sees a price-like series.
		levels := make([]float64, len(path)+1)
		levels[0] = 1
		for i, r := range path {
			levels[i+1] = 1 + r
		}
		drawdowns = append(drawdowns, vectormath.MaxDrawdown(levels))
	}
	if len(finals) < e.cfg.MinMatches {
		return neutralSignal(horizonDays, len(finals), signal.ReasonInsufficientMatches)
	}

	mean := vectormath.Mean(finals)
	p10 := vectormath.Percentile(finals, 0.10)
	p90 := vectormath.Percentile(finals, 0.90)
	dd := vectormath.Mean(drawdowns)

	direction := signal.DirectionNeutral
	switch {
	case mean > e.cfg.MeanReturnThreshold && p10 > e.cfg.P10Floor:
		direction = signal.DirectionLong
	case mean < -e.cfg.MeanReturnThreshold && p90 < -e.cfg.P10Floor:
		direction = signal.DirectionShort
	}

	strength := clamp01(abs(mean) / e.cfg.StrengthScale)
	confidence := clamp01(1 - vectormath.StdDev(finals)/e.cfg.DispersionScale)
	if direction == signal.DirectionNeutral {
		strength = 0
	}

	return signal.HorizonSignal{
		HorizonDays: horizonDays,
		Direction:   direction,
		Strength:    strength,
		Confidence:  confidence,
		MatchCount:  len(finals),
		MeanReturn:  mean,
		P10Return:   p10,
		P90Return:   p90,
		MaxDrawdown: dd,
		Reason:      signal.ReasonOK,
	}
}

// assemble applies the regime filter, weights the surviving horizons into a
// score in [-1, 1], derives the consensus and runs the entropy guard.
func (e *Engine) assemble(symbol string, regime signal.Regime, signals []signal.HorizonSignal) *signal.AssembledSignal {
	allowed := allowedHorizons(regime, e.cfg.Horizons)

	surviving := make([]signal.HorizonSignal, 0, len(signals))
	survivingDays := make([]int, 0, len(signals))
	for i := range signals {
		if allowed[signals[i].HorizonDays] {
			surviving = append(surviving, signals[i])
			survivingDays = append(survivingDays, signals[i].HorizonDays)
		} else if signals[i].Reason == signal.ReasonOK {
			signals[i].Reason = signal.ReasonRegimeFiltered
		}
	}
	sort.Ints(survivingDays)

	var weightedSum, totalWeight float64
	counts := signal.DirectionCounts{}
	votes := make([]entropy.Vote, 0, len(surviving))
	for _, s := range surviving {
		importance := e.cfg.HorizonWeights[s.HorizonDays]
		if importance <= 0 {
			importance = 1
		}
		weight := importance * max(0.1, s.Confidence)
		weightedSum += s.Direction.Value() * weight
		totalWeight += weight

		switch s.Direction {
		case signal.DirectionLong:
			counts.Long++
		case signal.DirectionShort:
			counts.Short++
		default:
			counts.Neutral++
		}
		votes = append(votes, entropy.Vote{Direction: s.Direction, Strength: s.Strength, Confidence: s.Confidence})
	}

	score := 0.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	}

	direction := signal.DirectionNeutral
	if score >= e.cfg.AssemblyThreshold {
		direction = signal.DirectionLong
	} else if score <= -e.cfg.AssemblyThreshold {
		direction = signal.DirectionShort
	}

	consensus := 0.0
	if n := len(surviving); n > 0 {
		majority := counts.Long
		if counts.Short > majority {
			majority = counts.Short
		}
		if counts.Neutral > majority {
			majority = counts.Neutral
		}
		consensus = float64(majority) / float64(n)
	}

	risk := entropy.Evaluate(votes, e.cfg.Entropy)

	return &signal.AssembledSignal{
		ID:             uuid.New().String(),
		Symbol:         symbol,
		Direction:      direction,
		Confidence:     clamp01(abs(score)) * risk.Scale,
		WeightedScore:  clampScore(score),
		ConsensusScore: consensus,
		Counts:         counts,
		Regime:         regime,
		Risk: signal.RiskAssessment{
			Scale:    risk.Scale,
			PLong:    risk.PLong,
			PShort:   risk.PShort,
			PNeutral: risk.PNeutral,
			Entropy:  risk.Entropy,
			Reason:   risk.Reason,
		},
		Horizons:          signals,
		SurvivingHorizons: survivingDays,
		GeneratedAt:       e.now().UTC(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
