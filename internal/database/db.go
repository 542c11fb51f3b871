// Package database provides PostgreSQL persistence for cluster runs and
// assembled signal history.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"analog-engine/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger *logging.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("database")
	logger.Info("Connected to PostgreSQL", "database", cfg.Database, "host", cfg.Host)

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info("Running database migrations")

	migrations := []string{
		// Cluster runs, one row per idempotency key
		`CREATE TABLE IF NOT EXISTS cluster_runs (
			run_id VARCHAR(64) PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			k INTEGER NOT NULL,
			metric VARCHAR(16) NOT NULL,
			lookback INTEGER NOT NULL,
			stride INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			inertia DOUBLE PRECISION NOT NULL,
			avg_distance DOUBLE PRECISION NOT NULL,
			converged BOOLEAN NOT NULL,
			summaries JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cluster_runs_symbol ON cluster_runs(symbol)`,

		// Per-window assignments for a run
		`CREATE TABLE IF NOT EXISTS cluster_assignments (
			run_id VARCHAR(64) NOT NULL REFERENCES cluster_runs(run_id) ON DELETE CASCADE,
			point_time TIMESTAMPTZ NOT NULL,
			cluster_id INTEGER NOT NULL,
			distance DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, point_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cluster_assignments_run ON cluster_assignments(run_id)`,

		// Assembled signal history
		`CREATE TABLE IF NOT EXISTS assembled_signals (
			id VARCHAR(64) PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			weighted_score DOUBLE PRECISION NOT NULL,
			consensus_score DOUBLE PRECISION NOT NULL,
			regime VARCHAR(8) NOT NULL,
			risk_scale DOUBLE PRECISION NOT NULL,
			entropy DOUBLE PRECISION NOT NULL,
			payload JSONB NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assembled_signals_symbol ON assembled_signals(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_assembled_signals_generated ON assembled_signals(generated_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}
