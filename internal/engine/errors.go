package engine

import (
	"time"

	"analog-engine/internal/signal"
)

// SafeSignal converts a failed computation into a flat NEUTRAL signal with
// zero confidence, returned alongside the original error. Callers that must
// always act on a signal (schedulers, batch scans) use this instead of
// branching on the error themselves.
func SafeSignal(symbol string, err error) (*signal.AssembledSignal, error) {
	return &signal.AssembledSignal{
		Symbol:      symbol,
		Direction:   signal.DirectionNeutral,
		Confidence:  0,
		Regime:      signal.RegimeSide,
		Risk:        signal.RiskAssessment{Scale: 0, Reason: signal.ReasonQueryFailed},
		GeneratedAt: time.Now().UTC(),
	}, err
}
