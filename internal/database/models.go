package database

import (
	"time"

	"analog-engine/internal/cluster"
)

// ClusterRun records one regime-clustering invocation. RunID is the
// caller-supplied idempotency key; replaying the same run overwrites the
// previous row.
type ClusterRun struct {
	RunID       string            `json:"run_id"`
	Symbol      string            `json:"symbol"`
	K           int               `json:"k"`
	Metric      string            `json:"metric"`
	Lookback    int               `json:"lookback"`
	Stride      int               `json:"stride"`
	Iterations  int               `json:"iterations"`
	Inertia     float64           `json:"inertia"`
	AvgDistance float64           `json:"avg_distance"`
	Converged   bool              `json:"converged"`
	Summaries   []cluster.Summary `json:"summaries"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ClusterAssignment maps one historical state-vector window to a cluster.
// Keyed by (run_id, point_time) so a replayed run upserts cleanly.
type ClusterAssignment struct {
	RunID     string    `json:"run_id"`
	PointTime time.Time `json:"point_time"`
	ClusterID int       `json:"cluster_id"`
	Distance  float64   `json:"distance"`
}

// SignalRecord is the persisted form of an assembled signal. The full
// per-horizon breakdown is stored as a JSON payload; the scalar columns exist
// for querying.
type SignalRecord struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	Confidence     float64   `json:"confidence"`
	WeightedScore  float64   `json:"weighted_score"`
	ConsensusScore float64   `json:"consensus_score"`
	Regime         string    `json:"regime"`
	RiskScale      float64   `json:"risk_scale"`
	Entropy        float64   `json:"entropy"`
	Payload        []byte    `json:"payload"` // full AssembledSignal JSON
	GeneratedAt    time.Time `json:"generated_at"`
	CreatedAt      time.Time `json:"created_at"`
}
