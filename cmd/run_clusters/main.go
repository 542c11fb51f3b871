package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"analog-engine/internal/cluster"
	"analog-engine/internal/database"
	"analog-engine/internal/dataset"
	"analog-engine/internal/engine"
	"analog-engine/internal/horizon"
	"analog-engine/internal/logging"
)

func main() {
	dir := flag.String("data", "data", "directory of CSV bar files")
	symbol := flag.String("symbol", "", "symbol to cluster (required)")
	k := flag.Int("k", 0, "number of clusters (0 uses the default)")
	metric := flag.String("metric", "", "distance metric: cosine or euclidean")
	lookback := flag.Int("lookback", 0, "window length in bars")
	stride := flag.Int("stride", 0, "bars between consecutive windows")
	runID := flag.String("run-id", "", "run ID for idempotent replays (empty generates one)")
	persist := flag.Bool("persist", false, "persist the run to PostgreSQL (uses DB_* env vars)")
	flag.Parse()

	if *symbol == "" {
		fmt.Println("Usage: run_clusters -symbol BTCUSDT [-data dir] [-k 5] [-metric cosine] [-persist]")
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{Level: "INFO", Component: "run_clusters"})
	ctx := context.Background()

	snapshot, err := dataset.LoadDir(*dir)
	if err != nil {
		fmt.Printf("Failed to load dataset from %s: %v\n", *dir, err)
		os.Exit(1)
	}

	var repo engine.Repository
	if *persist {
		db, err := database.NewDB(database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "analog_engine"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		}, logger)
		if err != nil {
			fmt.Printf("Failed to connect to database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			fmt.Printf("Failed to run migrations: %v\n", err)
			os.Exit(1)
		}
		repo = database.NewRepository(db)
	}

	svc, err := engine.NewService(engine.Config{
		Horizon: horizon.DefaultConfig(),
		Cluster: engine.DefaultClusterConfig(),
	}, snapshot, repo, nil, nil, nil, logger)
	if err != nil {
		fmt.Printf("Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}

	run, assignments, err := svc.RunClustering(ctx, engine.ClusterRequest{
		RunID:    *runID,
		Symbol:   *symbol,
		K:        *k,
		Metric:   *metric,
		Lookback: *lookback,
		Stride:   *stride,
	})
	if err != nil {
		fmt.Printf("Cluster run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s: %s k=%d metric=%s lookback=%d stride=%d\n",
		run.RunID, run.Symbol, run.K, run.Metric, run.Lookback, run.Stride)
	fmt.Printf("Converged=%v after %d iterations, inertia=%.4f, avg distance=%.4f\n",
		run.Converged, run.Iterations, run.Inertia, run.AvgDistance)
	fmt.Printf("%d windows assigned\n\n", len(assignments))

	printSummaries(run.Summaries)

	if *persist {
		fmt.Printf("\nPersisted run %s with %d assignments\n", run.RunID, len(assignments))
	}
}

func printSummaries(summaries []cluster.Summary) {
	fmt.Println("Cluster  Size  Regime  MeanDist  P90Dist")
	for _, s := range summaries {
		fmt.Printf("%7d  %4d  %-6s  %8.4f  %7.4f\n",
			s.ClusterID, s.Size, s.Regime, s.MeanDistance, s.P90Distance)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
