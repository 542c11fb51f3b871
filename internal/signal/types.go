// Package signal defines the directional signal types shared across the
// analog engine: per-horizon signals and the final assembled verdict.
package signal

import "time"

// Direction represents the directional call of a signal
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Value returns the numeric contribution of a direction (+1, -1 or 0)
func (d Direction) Value() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	default:
		return 0
	}
}

// Regime is a coarse market-state label used to condition which forecast
// horizons are trusted
type Regime string

const (
	RegimeCrash  Regime = "CRASH"
	RegimeBull   Regime = "BULL"
	RegimeBear   Regime = "BEAR"
	RegimeSide   Regime = "SIDE"
	RegimeBubble Regime = "BUBBLE"
)

// Reason codes attached to degraded or skipped horizon signals
const (
	ReasonOK                  = "OK"
	ReasonInsufficientMatches = "INSUFFICIENT_MATCHES"
	ReasonRegimeFiltered      = "REGIME_FILTERED"
	ReasonQueryFailed         = "QUERY_FAILED"
	ReasonCancelled           = "CANCELLED"
)

// HorizonSignal is the directional verdict computed independently for one
// look-back/look-forward horizon
type HorizonSignal struct {
	HorizonDays int       `json:"horizon_days"`
	Direction   Direction `json:"direction"`
	Strength    float64   `json:"strength"`   // 0..1
	Confidence  float64   `json:"confidence"` // 0..1
	MatchCount  int       `json:"match_count"`
	MeanReturn  float64   `json:"mean_return"`
	P10Return   float64   `json:"p10_return"`
	P90Return   float64   `json:"p90_return"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Reason      string    `json:"reason"`
}

// DirectionCounts tallies surviving horizon signals per direction
type DirectionCounts struct {
	Long    int `json:"long"`
	Short   int `json:"short"`
	Neutral int `json:"neutral"`
}

// RiskAssessment carries the entropy guard output attached to an assembled signal
type RiskAssessment struct {
	Scale    float64 `json:"scale"` // final exposure scale, MinScale..1
	PLong    float64 `json:"p_long"`
	PShort   float64 `json:"p_short"`
	PNeutral float64 `json:"p_neutral"`
	Entropy  float64 `json:"entropy"` // normalized, 0..1
	Reason   string  `json:"reason"`  // OK, WARN, HARD or DOMINANCE
}

// AssembledSignal is the final risk-scaled directional verdict for one symbol,
// with the full per-horizon breakdown for explainability
type AssembledSignal struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	Direction         Direction       `json:"direction"`
	Confidence        float64         `json:"confidence"`
	WeightedScore     float64         `json:"weighted_score"`  // -1..1
	ConsensusScore    float64         `json:"consensus_score"` // 0..1
	Counts            DirectionCounts `json:"counts"`
	Regime            Regime          `json:"regime"`
	Risk              RiskAssessment  `json:"risk"`
	Horizons          []HorizonSignal `json:"horizons"`
	SurvivingHorizons []int           `json:"surviving_horizons"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
