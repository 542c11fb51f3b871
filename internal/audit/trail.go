// Package audit keeps an append-only trail of every assembled signal and
// cluster run, for post-hoc review of what the engine decided and why.
package audit

import (
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"analog-engine/internal/database"
	"analog-engine/internal/signal"
)

// Trail records engine decisions. Every signal is written to the zerolog
// sink with its full scoring breakdown and kept in a bounded in-memory ring
// for the API's recent-signals view.
type Trail struct {
	mu     sync.RWMutex
	logger zerolog.Logger

	recent []*signal.AssembledSignal
	limit  int
}

// NewTrail creates a trail writing to the given zerolog logger
func NewTrail(logger zerolog.Logger, limit int) *Trail {
	if limit <= 0 {
		limit = 200
	}
	return &Trail{
		logger: logger.With().Str("component", "SignalTrail").Logger(),
		recent: make([]*signal.AssembledSignal, 0, limit),
		limit:  limit,
	}
}

// RecordSignal appends an assembled signal to the trail
func (t *Trail) RecordSignal(sig *signal.AssembledSignal) {
	if sig == nil {
		return
	}

	evt := t.logger.Info().
		Str("signal_id", sig.ID).
		Str("symbol", sig.Symbol).
		Str("direction", string(sig.Direction)).
		Str("regime", string(sig.Regime)).
		Float64("confidence", sig.Confidence).
		Float64("weighted_score", sig.WeightedScore).
		Float64("consensus", sig.ConsensusScore).
		Float64("risk_scale", sig.Risk.Scale).
		Float64("entropy", sig.Risk.Entropy).
		Str("risk_reason", sig.Risk.Reason).
		Time("generated_at", sig.GeneratedAt)
	for _, h := range sig.Horizons {
		evt = evt.Dict(horizonKey(h.HorizonDays), zerolog.Dict().
			Str("direction", string(h.Direction)).
			Float64("strength", h.Strength).
			Float64("confidence", h.Confidence).
			Int("matches", h.MatchCount).
			Str("reason", h.Reason))
	}
	evt.Msg("signal recorded")

	t.mu.Lock()
	defer t.mu.Unlock()
	t.recent = append(t.recent, sig)
	if len(t.recent) > t.limit {
		t.recent = t.recent[len(t.recent)-t.limit:]
	}
}

// RecordClusterRun appends a completed cluster run to the trail
func (t *Trail) RecordClusterRun(run *database.ClusterRun) {
	if run == nil {
		return
	}
	t.logger.Info().
		Str("run_id", run.RunID).
		Str("symbol", run.Symbol).
		Int("k", run.K).
		Str("metric", run.Metric).
		Int("iterations", run.Iterations).
		Float64("inertia", run.Inertia).
		Bool("converged", run.Converged).
		Msg("cluster run recorded")
}

// RecordError notes a failed engine operation
func (t *Trail) RecordError(operation, symbol string, err error) {
	t.logger.Error().
		Str("operation", operation).
		Str("symbol", symbol).
		Err(err).
		Msg("engine operation failed")
}

// Recent returns up to n of the most recent signals, newest last
func (t *Trail) Recent(n int) []*signal.AssembledSignal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 || n > len(t.recent) {
		n = len(t.recent)
	}
	out := make([]*signal.AssembledSignal, n)
	copy(out, t.recent[len(t.recent)-n:])
	return out
}

func horizonKey(days int) string {
	return "h" + strconv.Itoa(days)
}
