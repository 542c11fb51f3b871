package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"analog-engine/internal/engine"
	"analog-engine/internal/logging"
	"analog-engine/internal/signal"
)

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{
		"status":     "ok",
		"timestamp":  time.Now().UTC(),
		"ws_clients": s.hub.GetClientCount(),
	}

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.HealthCheck(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}

	if s.vault != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.vault.HealthCheck(ctx); err != nil {
			status["status"] = "degraded"
			status["vault"] = "unreachable"
		} else {
			status["vault"] = "ok"
		}
	}

	c.JSON(http.StatusOK, status)
}

// handleSymbols lists the symbols loaded in the snapshot
func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.svc.Symbols()})
}

// handleComputeSignal computes the assembled multi-horizon signal for a
// symbol. Invalid input maps to 400; thin evidence is not an error and comes
// back as a NEUTRAL low-confidence signal with 200.
func (s *Server) handleComputeSignal(c *gin.Context) {
	var req engine.ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sig, err := s.svc.ComputeSignal(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, signal.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.FromContext(c.Request.Context()).Error("Signal computation failed", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signal computation failed"})
		return
	}

	c.JSON(http.StatusOK, sig)
}

// handleRecentSignals returns the in-memory audit trail of recent signals
func (s *Server) handleRecentSignals(c *gin.Context) {
	if s.trail == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit trail is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	c.JSON(http.StatusOK, gin.H{"signals": s.trail.Recent(limit)})
}

// handleSignalHistory returns persisted signals for a symbol, newest first
func (s *Server) handleSignalHistory(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is not configured"})
		return
	}

	symbol := c.Param("symbol")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := s.repo.GetSignalsBySymbol(c.Request.Context(), symbol, limit)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("Signal history query failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query signal history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "signals": records})
}

// handleRunClustering triggers a regime-clustering run
func (s *Server) handleRunClustering(c *gin.Context) {
	var req engine.ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	run, assignments, err := s.svc.RunClustering(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, signal.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logging.FromContext(c.Request.Context()).Error("Cluster run failed", "symbol", req.Symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cluster run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":              run,
		"assignment_count": len(assignments),
	})
}

// handleGetClusterRun returns a persisted run with its assignments
func (s *Server) handleGetClusterRun(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence is not configured"})
		return
	}

	runID := c.Param("id")

	run, assignments, err := s.svc.GetClusterRun(c.Request.Context(), runID)
	if err != nil {
		logging.FromContext(c.Request.Context()).Error("Cluster run lookup failed", "run_id", runID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cluster run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cluster run not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"run": run, "assignments": assignments})
}
