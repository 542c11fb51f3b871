package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"analog-engine/internal/signal"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// CLUSTER RUNS
// ============================================================================

// SaveClusterRun upserts a cluster run keyed by its run ID. Replaying the
// same run ID overwrites the previous result.
func (r *Repository) SaveClusterRun(ctx context.Context, run *ClusterRun) error {
	summariesJSON, err := json.Marshal(run.Summaries)
	if err != nil {
		summariesJSON = []byte("[]")
	}

	query := `
		INSERT INTO cluster_runs (run_id, symbol, k, metric, lookback, stride,
			iterations, inertia, avg_distance, converged, summaries, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			k = EXCLUDED.k,
			metric = EXCLUDED.metric,
			lookback = EXCLUDED.lookback,
			stride = EXCLUDED.stride,
			iterations = EXCLUDED.iterations,
			inertia = EXCLUDED.inertia,
			avg_distance = EXCLUDED.avg_distance,
			converged = EXCLUDED.converged,
			summaries = EXCLUDED.summaries,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Pool.Exec(ctx, query,
		run.RunID, run.Symbol, run.K, run.Metric, run.Lookback, run.Stride,
		run.Iterations, run.Inertia, run.AvgDistance, run.Converged,
		summariesJSON, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save cluster run: %w", err)
	}
	return nil
}

// SaveClusterAssignments upserts the per-window assignments of a run in one
// batch, keyed by (run_id, point_time).
func (r *Repository) SaveClusterAssignments(ctx context.Context, assignments []ClusterAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO cluster_assignments (run_id, point_time, cluster_id, distance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, point_time) DO UPDATE SET
			cluster_id = EXCLUDED.cluster_id,
			distance = EXCLUDED.distance
	`
	for _, a := range assignments {
		batch.Queue(query, a.RunID, a.PointTime, a.ClusterID, a.Distance)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range assignments {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save cluster assignments: %w", err)
		}
	}
	return nil
}

// GetClusterRun retrieves a cluster run by ID, or nil when it does not exist
func (r *Repository) GetClusterRun(ctx context.Context, runID string) (*ClusterRun, error) {
	query := `
		SELECT run_id, symbol, k, metric, lookback, stride, iterations,
		       inertia, avg_distance, converged, summaries, created_at, updated_at
		FROM cluster_runs
		WHERE run_id = $1
	`
	run := &ClusterRun{}
	var summariesJSON []byte
	err := r.db.Pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.Symbol, &run.K, &run.Metric, &run.Lookback, &run.Stride,
		&run.Iterations, &run.Inertia, &run.AvgDistance, &run.Converged,
		&summariesJSON, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster run: %w", err)
	}
	if len(summariesJSON) > 0 {
		if err := json.Unmarshal(summariesJSON, &run.Summaries); err != nil {
			return nil, fmt.Errorf("failed to decode cluster summaries: %w", err)
		}
	}
	return run, nil
}

// GetClusterAssignments retrieves the assignments of a run ordered by window time
func (r *Repository) GetClusterAssignments(ctx context.Context, runID string) ([]ClusterAssignment, error) {
	query := `
		SELECT run_id, point_time, cluster_id, distance
		FROM cluster_assignments
		WHERE run_id = $1
		ORDER BY point_time
	`
	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster assignments: %w", err)
	}
	defer rows.Close()

	var assignments []ClusterAssignment
	for rows.Next() {
		var a ClusterAssignment
		if err := rows.Scan(&a.RunID, &a.PointTime, &a.ClusterID, &a.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan cluster assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ============================================================================
// ASSEMBLED SIGNALS
// ============================================================================

// SaveSignal persists an assembled signal with its full breakdown as JSON
func (r *Repository) SaveSignal(ctx context.Context, sig *signal.AssembledSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to encode signal payload: %w", err)
	}

	query := `
		INSERT INTO assembled_signals (id, symbol, direction, confidence,
			weighted_score, consensus_score, regime, risk_scale, entropy,
			payload, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.Pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Direction), sig.Confidence,
		sig.WeightedScore, sig.ConsensusScore, string(sig.Regime),
		sig.Risk.Scale, sig.Risk.Entropy, payload, sig.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save signal: %w", err)
	}
	return nil
}

// GetSignalsBySymbol retrieves recent signals for a symbol, newest first
func (r *Repository) GetSignalsBySymbol(ctx context.Context, symbol string, limit int) ([]*SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, direction, confidence, weighted_score, consensus_score,
		       regime, risk_scale, entropy, payload, generated_at, created_at
		FROM assembled_signals
		WHERE symbol = $1
		ORDER BY generated_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var records []*SignalRecord
	for rows.Next() {
		rec := &SignalRecord{}
		err := rows.Scan(
			&rec.ID, &rec.Symbol, &rec.Direction, &rec.Confidence,
			&rec.WeightedScore, &rec.ConsensusScore, &rec.Regime,
			&rec.RiskScale, &rec.Entropy, &rec.Payload,
			&rec.GeneratedAt, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
