// Package api exposes the engine over HTTP: signal computation, cluster
// runs and a websocket stream of engine events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"analog-engine/internal/audit"
	"analog-engine/internal/auth"
	"analog-engine/internal/database"
	"analog-engine/internal/engine"
	"analog-engine/internal/events"
	"analog-engine/internal/logging"
	"analog-engine/internal/vault"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins string
	RateLimit      int // requests per minute per client
	ReadTimeout    int // seconds, 0 uses the default
	WriteTimeout   int // seconds, 0 uses the default
	TLSEnabled     bool
	TLSCertFile    string
	TLSKeyFile     string
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	svc         *engine.Service
	repo        *database.Repository
	eventBus    *events.EventBus
	trail       *audit.Trail
	vault       *vault.Client
	hub         *WSHub
	config      ServerConfig
	tokens      *auth.TokenManager
	apiKeys     *auth.APIKeyManager
	authEnabled bool
	rateLimiter *RateLimiter
	logger      *logging.Logger
}

// NewServer creates a new API server. repo, eventBus, trail, vaultClient,
// tokens and apiKeys may be nil; nil auth managers disable authentication.
func NewServer(
	config ServerConfig,
	svc *engine.Service,
	repo *database.Repository,
	eventBus *events.EventBus,
	trail *audit.Trail,
	vaultClient *vault.Client,
	tokens *auth.TokenManager,
	apiKeys *auth.APIKeyManager,
	logger *logging.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if logger == nil {
		logger = logging.Default()
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-API-Key"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = 120
	}

	server := &Server{
		router:      router,
		svc:         svc,
		repo:        repo,
		eventBus:    eventBus,
		trail:       trail,
		vault:       vaultClient,
		hub:         NewWSHub(logger),
		config:      config,
		tokens:      tokens,
		apiKeys:     apiKeys,
		authEnabled: tokens != nil || apiKeys != nil,
		rateLimiter: NewRateLimiter(rateLimit, time.Minute),
		logger:      logger.WithComponent("api"),
	}

	// Registered before setupRoutes so every handler sees a traced context.
	router.Use(server.traceMiddleware())

	server.setupRoutes()

	go server.hub.Run()
	if eventBus != nil {
		eventBus.SubscribeAll(server.hub.BroadcastEvent)
	}

	return server
}

// traceMiddleware tags every request with a trace ID so all log lines for
// one request share a trace_id field. The ID is echoed in the X-Trace-ID
// response header for correlation.
func (s *Server) traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logging.NewContext(c.Request.Context(), s.logger)
		ctx, _ = logging.WithTraceContext(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", logging.TraceIDFromContext(ctx))
		c.Next()
	}
}

// rateLimitMiddleware rejects clients exceeding the per-minute request limit
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	apiGroup := s.router.Group("/api")
	apiGroup.Use(s.rateLimitMiddleware())
	if s.authEnabled {
		apiGroup.Use(auth.Middleware(s.tokens, s.apiKeys))
	}

	apiGroup.GET("/symbols", s.handleSymbols)
	apiGroup.POST("/signals/compute", s.handleComputeSignal)
	apiGroup.GET("/signals/recent", s.handleRecentSignals)
	apiGroup.GET("/signals/:symbol/history", s.handleSignalHistory)

	clusterGroup := apiGroup.Group("/clusters")
	if s.authEnabled {
		clusterGroup.Use(auth.RequireRole(auth.RoleOperator))
	}
	clusterGroup.POST("/run", s.handleRunClustering)
	clusterGroup.GET("/runs/:id", s.handleGetClusterRun)
}

// buildHTTPServer assembles the http.Server from the configured timeouts,
// falling back to 15s read/write when unset.
func (s *Server) buildHTTPServer() *http.Server {
	readTimeout := time.Duration(s.config.ReadTimeout) * time.Second
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := time.Duration(s.config.WriteTimeout) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// Start starts the HTTP server, serving TLS when a cert/key pair is configured
func (s *Server) Start() error {
	s.httpServer = s.buildHTTPServer()

	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr, "tls", s.config.TLSEnabled)

	var err error
	if s.config.TLSEnabled {
		err = s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}
