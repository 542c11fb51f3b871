package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"analog-engine/config"
	"analog-engine/internal/api"
	"analog-engine/internal/audit"
	"analog-engine/internal/auth"
	"analog-engine/internal/cache"
	"analog-engine/internal/database"
	"analog-engine/internal/dataset"
	"analog-engine/internal/engine"
	"analog-engine/internal/events"
	"analog-engine/internal/logging"
	"analog-engine/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)

	logger.Info("Starting analog engine",
		"port", cfg.ServerConfig.Port,
		"database_enabled", cfg.DatabaseConfig.Enabled,
		"redis_enabled", cfg.RedisConfig.Enabled,
		"auth_enabled", cfg.AuthConfig.Enabled)

	// Resolve secrets from Vault when configured. Vault values take
	// precedence over file and environment configuration.
	var vaultClient *vault.Client
	if cfg.VaultConfig.Enabled {
		vaultClient, err = vault.NewClient(vault.Config{
			Enabled:    cfg.VaultConfig.Enabled,
			Address:    cfg.VaultConfig.Address,
			Token:      cfg.VaultConfig.Token,
			MountPath:  cfg.VaultConfig.MountPath,
			SecretPath: cfg.VaultConfig.SecretPath,
			TLSEnabled: cfg.VaultConfig.TLSEnabled,
			CACert:     cfg.VaultConfig.CACert,
		})
		if err != nil {
			logger.Fatal("Failed to initialize Vault client", "error", err)
		}

		vaultCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if secret, err := vaultClient.GetSecret(vaultCtx, "db_password"); err != nil {
			logger.Warn("Failed to read db_password from Vault", "error", err)
		} else if secret != "" {
			cfg.DatabaseConfig.Password = secret
		}
		if secret, err := vaultClient.GetSecret(vaultCtx, "jwt_secret"); err != nil {
			logger.Warn("Failed to read jwt_secret from Vault", "error", err)
		} else if secret != "" {
			cfg.AuthConfig.JWTSecret = secret
		}
		if secret, err := vaultClient.GetSecret(vaultCtx, "redis_password"); err != nil {
			logger.Warn("Failed to read redis_password from Vault", "error", err)
		} else if secret != "" {
			cfg.RedisConfig.Password = secret
		}
		cancel()
	}

	// PostgreSQL persistence is optional; without it the engine runs
	// compute-only and history endpoints report unavailable.
	var repo *database.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		if err := db.RunMigrations(context.Background()); err != nil {
			logger.Fatal("Failed to run migrations", "error", err)
		}
		repo = database.NewRepository(db)
		logger.Info("Database connected", "host", cfg.DatabaseConfig.Host, "database", cfg.DatabaseConfig.Database)
	}

	// Redis signal cache is optional and degrades gracefully when the
	// server is unreachable.
	var signalCache *cache.SignalCacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err := cache.NewCacheService(cache.Config{
			Enabled:  cfg.RedisConfig.Enabled,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, logger)
		if err != nil {
			logger.Warn("Redis cache unavailable, continuing without caching", "error", err)
		} else {
			signalCache = cache.NewSignalCacheService(cacheService, logger.WithComponent("cache"))
			defer cacheService.Close()
		}
	}

	// Load the historical dataset the engine queries.
	snapshot, err := loadSnapshot(cfg.DatasetConfig)
	if err != nil {
		logger.Fatal("Failed to load dataset", "dir", cfg.DatasetConfig.Dir, "error", err)
	}
	logger.Info("Dataset loaded", "symbols", len(snapshot.Symbols()))

	trail := audit.NewTrail(auditLogger(cfg.AuditConfig), cfg.AuditConfig.Limit)
	eventBus := events.NewEventBus()

	svc, err := engine.NewService(cfg.EngineConfig, snapshot,
		serviceRepo(repo), serviceCache(signalCache), eventBus, trail, logger)
	if err != nil {
		logger.Fatal("Failed to initialize engine", "error", err)
	}

	// Auth managers are only wired when auth is enabled.
	var tokens *auth.TokenManager
	var apiKeys *auth.APIKeyManager
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" {
			logger.Fatal("AUTH_JWT_SECRET is required when auth is enabled")
		}
		tokens = auth.NewTokenManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.TokenDuration)
		if len(cfg.AuthConfig.APIKeys) > 0 {
			apiKeys = auth.NewAPIKeyManager(cfg.AuthConfig.APIKeys)
		}
	}

	server := api.NewServer(api.ServerConfig{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		RateLimit:      cfg.ServerConfig.RateLimit,
		ReadTimeout:    cfg.ServerConfig.ReadTimeout,
		WriteTimeout:   cfg.ServerConfig.WriteTimeout,
		TLSEnabled:     cfg.ServerConfig.TLSEnabled,
		TLSCertFile:    cfg.ServerConfig.TLSCertFile,
		TLSKeyFile:     cfg.ServerConfig.TLSKeyFile,
		ProductionMode: os.Getenv("GIN_MODE") == "release",
	}, svc, repo, eventBus, trail, vaultClient, tokens, apiKeys, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Server failed", "error", err)
		}
	}()

	eventBus.Publish(events.Event{
		Type: events.EventServerStarted,
		Data: map[string]interface{}{"port": cfg.ServerConfig.Port},
	})

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received")
	eventBus.Publish(events.Event{Type: events.EventServerStopping})

	shutdownTimeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	logger.Info("Shutdown complete")
}

// loadSnapshot loads the bar files from the dataset directory, keeping only
// the configured symbols when a filter is set.
func loadSnapshot(cfg config.DatasetConfig) (*dataset.Snapshot, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "data"
	}

	snapshot, err := dataset.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if len(cfg.Symbols) == 0 {
		return snapshot, nil
	}

	var kept []*dataset.Series
	for _, symbol := range cfg.Symbols {
		series, err := snapshot.Series(symbol)
		if err != nil {
			return nil, fmt.Errorf("configured symbol %s not found in %s: %w", symbol, dir, err)
		}
		kept = append(kept, series)
	}
	return dataset.NewSnapshot(kept...), nil
}

// auditLogger builds the zerolog writer the signal trail logs to.
func auditLogger(cfg config.AuditConfig) zerolog.Logger {
	var out *os.File
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Failed to open audit log %s, falling back to stdout: %v", cfg.Output, err)
			out = os.Stdout
		} else {
			out = f
		}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// serviceRepo converts a possibly-nil concrete repository into the engine's
// interface without producing a non-nil interface around a nil pointer.
func serviceRepo(repo *database.Repository) engine.Repository {
	if repo == nil {
		return nil
	}
	return repo
}

func serviceCache(c *cache.SignalCacheService) engine.SignalCache {
	if c == nil {
		return nil
	}
	return c
}
