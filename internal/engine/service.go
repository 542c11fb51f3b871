// Package engine is the service layer tying the analog pipeline to its
// collaborators: persistence, caching, events and the audit trail. All
// collaborators except the data source are optional; a nil collaborator
// disables that concern.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"analog-engine/internal/audit"
	"analog-engine/internal/cluster"
	"analog-engine/internal/database"
	"analog-engine/internal/events"
	"analog-engine/internal/horizon"
	"analog-engine/internal/logging"
	"analog-engine/internal/signal"
)

// DataSource is the full data surface the service needs: the horizon
// engine's query methods plus state vectors for clustering.
type DataSource interface {
	horizon.DataSource
	StateVectors(symbol string, lookback, stride int) ([][]float64, []time.Time, error)
}

// Repository is the persistence surface the service writes to
type Repository interface {
	SaveClusterRun(ctx context.Context, run *database.ClusterRun) error
	SaveClusterAssignments(ctx context.Context, assignments []database.ClusterAssignment) error
	GetClusterRun(ctx context.Context, runID string) (*database.ClusterRun, error)
	GetClusterAssignments(ctx context.Context, runID string) ([]database.ClusterAssignment, error)
	SaveSignal(ctx context.Context, sig *signal.AssembledSignal) error
}

// SignalCache is the caching surface for assembled signals
type SignalCache interface {
	GetSignal(ctx context.Context, symbol string) *signal.AssembledSignal
	CacheSignal(ctx context.Context, sig *signal.AssembledSignal)
	Invalidate(ctx context.Context, symbol string)
}

// ClusterConfig holds the default clustering parameters; requests may
// override any of them.
type ClusterConfig struct {
	K        int                 `json:"k"`
	Metric   string              `json:"metric"`
	Lookback int                 `json:"lookback"`
	Stride   int                 `json:"stride"`
	Hints    cluster.RegimeHints `json:"hints"`
}

// DefaultClusterConfig returns the production clustering defaults
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		K:        5,
		Metric:   string(cluster.MetricCosine),
		Lookback: 30,
		Stride:   5,
		Hints:    cluster.DefaultRegimeHints(),
	}
}

// Config holds the service configuration
type Config struct {
	Horizon horizon.Config `json:"horizon"`
	Cluster ClusterConfig  `json:"cluster"`
}

// Service orchestrates signal computation and regime clustering
type Service struct {
	cfg    Config
	analog *horizon.Engine
	source DataSource
	repo   Repository
	cache  SignalCache
	bus    *events.EventBus
	trail  *audit.Trail
	logger *logging.Logger
}

// NewService builds the service and its inner horizon engine. repo, cache,
// bus and trail may be nil.
func NewService(cfg Config, source DataSource, repo Repository, cache SignalCache,
	bus *events.EventBus, trail *audit.Trail, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.Default()
	}
	analog, err := horizon.New(cfg.Horizon, source, logger, nil)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:    cfg,
		analog: analog,
		source: source,
		repo:   repo,
		cache:  cache,
		bus:    bus,
		trail:  trail,
		logger: logger.WithComponent("engine"),
	}, nil
}

// ComputeRequest asks for one assembled signal
type ComputeRequest struct {
	Symbol    string `json:"symbol"`
	SkipCache bool   `json:"skip_cache"`
}

// ComputeSignal returns the assembled multi-horizon signal for a symbol,
// serving from cache when allowed. The signal is persisted, cached and
// broadcast best-effort; only the computation itself can fail the call.
func (s *Service) ComputeSignal(ctx context.Context, req ComputeRequest) (*signal.AssembledSignal, error) {
	if req.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is empty", signal.ErrInvalidInput)
	}

	if s.cache != nil {
		if req.SkipCache {
			// Forced refresh: drop the stale entry now so a failed
			// recompute cannot leave it behind.
			s.cache.Invalidate(ctx, req.Symbol)
		} else if hit := s.cache.GetSignal(ctx, req.Symbol); hit != nil {
			s.logger.Debug("Signal served from cache", "symbol", req.Symbol)
			return hit, nil
		}
	}

	sig, err := s.analog.Compute(ctx, req.Symbol)
	if err != nil {
		if s.trail != nil {
			s.trail.RecordError("compute_signal", req.Symbol, err)
		}
		if s.bus != nil {
			s.bus.PublishEngineError("compute_signal", err.Error())
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.CacheSignal(ctx, sig)
	}
	if s.repo != nil {
		if err := s.repo.SaveSignal(ctx, sig); err != nil {
			s.logger.Warn("Failed to persist signal", "symbol", req.Symbol, "error", err)
		}
	}
	if s.trail != nil {
		s.trail.RecordSignal(sig)
	}
	if s.bus != nil {
		s.bus.PublishSignalGenerated(sig.ID, sig.Symbol, string(sig.Direction), sig.Confidence, sig.WeightedScore)
	}

	return sig, nil
}

// ClusterRequest asks for one regime-clustering run. Zero-valued fields fall
// back to the configured defaults; an empty RunID gets a generated UUID.
type ClusterRequest struct {
	RunID    string `json:"run_id"`
	Symbol   string `json:"symbol"`
	K        int    `json:"k"`
	Metric   string `json:"metric"`
	Lookback int    `json:"lookback"`
	Stride   int    `json:"stride"`
}

// RunClustering clusters the symbol's historical state vectors and persists
// the run and its assignments keyed by the run ID, so replaying a run ID
// overwrites rather than duplicates.
func (s *Service) RunClustering(ctx context.Context, req ClusterRequest) (*database.ClusterRun, []database.ClusterAssignment, error) {
	if req.Symbol == "" {
		return nil, nil, fmt.Errorf("%w: symbol is empty", signal.ErrInvalidInput)
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	if req.K <= 0 {
		req.K = s.cfg.Cluster.K
	}
	if req.Metric == "" {
		req.Metric = s.cfg.Cluster.Metric
	}
	if req.Lookback <= 0 {
		req.Lookback = s.cfg.Cluster.Lookback
	}
	if req.Stride <= 0 {
		req.Stride = s.cfg.Cluster.Stride
	}

	if s.bus != nil {
		s.bus.PublishClusterRunStarted(req.RunID, req.Symbol, req.K)
	}

	points, stamps, err := s.source.StateVectors(req.Symbol, req.Lookback, req.Stride)
	if err != nil {
		return nil, nil, err
	}

	res, err := cluster.Run(points, cluster.Config{K: req.K, Metric: cluster.Metric(req.Metric)})
	if err != nil {
		if s.trail != nil {
			s.trail.RecordError("run_clustering", req.Symbol, err)
		}
		return nil, nil, err
	}

	summaries := cluster.Summarize(res, s.cfg.Cluster.Hints)

	now := time.Now().UTC()
	run := &database.ClusterRun{
		RunID:       req.RunID,
		Symbol:      req.Symbol,
		K:           len(res.Centroids),
		Metric:      req.Metric,
		Lookback:    req.Lookback,
		Stride:      req.Stride,
		Iterations:  res.Iterations,
		Inertia:     res.Inertia,
		AvgDistance: res.AvgDistance,
		Converged:   res.Converged,
		Summaries:   summaries,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	assignments := make([]database.ClusterAssignment, len(res.Assignments))
	for i, a := range res.Assignments {
		assignments[i] = database.ClusterAssignment{
			RunID:     req.RunID,
			PointTime: stamps[a.PointIndex],
			ClusterID: a.ClusterID,
			Distance:  a.Distance,
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveClusterRun(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("failed to persist cluster run: %w", err)
		}
		if err := s.repo.SaveClusterAssignments(ctx, assignments); err != nil {
			return nil, nil, fmt.Errorf("failed to persist cluster assignments: %w", err)
		}
	}

	if s.trail != nil {
		s.trail.RecordClusterRun(run)
	}
	if s.bus != nil {
		s.bus.PublishClusterRunCompleted(run.RunID, run.Symbol, run.Iterations, run.Converged)
	}

	s.logger.Info("Cluster run completed",
		"run_id", run.RunID, "symbol", run.Symbol, "k", run.K,
		"iterations", run.Iterations, "converged", run.Converged,
		"points", len(points))

	return run, assignments, nil
}

// GetClusterRun retrieves a persisted run with its assignments. Returns
// (nil, nil, nil) when the run does not exist.
func (s *Service) GetClusterRun(ctx context.Context, runID string) (*database.ClusterRun, []database.ClusterAssignment, error) {
	if s.repo == nil {
		return nil, nil, fmt.Errorf("persistence is not configured")
	}
	run, err := s.repo.GetClusterRun(ctx, runID)
	if err != nil || run == nil {
		return nil, nil, err
	}
	assignments, err := s.repo.GetClusterAssignments(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, assignments, nil
}

// Symbols lists the symbols available in the underlying snapshot, when the
// source exposes them.
func (s *Service) Symbols() []string {
	type lister interface{ Symbols() []string }
	if l, ok := s.source.(lister); ok {
		return l.Symbols()
	}
	return nil
}
