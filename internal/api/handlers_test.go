package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"analog-engine/internal/dataset"
	"analog-engine/internal/engine"
	"analog-engine/internal/horizon"
	"analog-engine/internal/vault"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	bars := make([]dataset.Bar, 400)
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		price *= 1 + 0.002*math.Sin(float64(i)/9) + 0.0005
		bars[i] = dataset.Bar{Time: start.AddDate(0, 0, i), Close: price}
	}
	series, err := dataset.NewSeries("BTCUSDT", bars)
	if err != nil {
		t.Fatalf("NewSeries failed: %v", err)
	}

	svc, err := engine.NewService(engine.Config{
		Horizon: horizon.DefaultConfig(),
		Cluster: engine.DefaultClusterConfig(),
	}, dataset.NewSnapshot(series), nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	return NewServer(ServerConfig{ProductionMode: true}, svc, nil, nil, nil, nil, nil, nil, nil)
}

func TestHealthEndpoint(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", response["status"])
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/symbols", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(response.Symbols) != 1 || response.Symbols[0] != "BTCUSDT" {
		t.Errorf("Expected [BTCUSDT], got %v", response.Symbols)
	}
}

func TestComputeSignalEndpoint(t *testing.T) {
	server := testServer(t)

	body := strings.NewReader(`{"symbol":"BTCUSDT"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/signals/compute", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["symbol"] != "BTCUSDT" {
		t.Errorf("Expected symbol BTCUSDT, got %v", response["symbol"])
	}
	if response["direction"] == "" {
		t.Error("Expected a direction in the response")
	}
}

func TestComputeSignalUnknownSymbol(t *testing.T) {
	server := testServer(t)

	body := strings.NewReader(`{"symbol":"NOPE"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/signals/compute", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown symbol, got %d", w.Code)
	}
}

func TestRecentSignalsWithoutTrail(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/signals/recent", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without an audit trail, got %d", w.Code)
	}
}

func TestSignalHistoryWithoutRepo(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/signals/BTCUSDT/history", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without persistence, got %d", w.Code)
	}
}

func TestRunClusteringEndpoint(t *testing.T) {
	server := testServer(t)

	body := strings.NewReader(`{"symbol":"BTCUSDT","run_id":"run-api-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/clusters/run", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Run struct {
			RunID string `json:"run_id"`
		} `json:"run"`
		AssignmentCount int `json:"assignment_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Run.RunID != "run-api-1" {
		t.Errorf("Expected run_id run-api-1, got %s", response.Run.RunID)
	}
	if response.AssignmentCount == 0 {
		t.Error("Expected at least one assignment")
	}
}

func TestGetClusterRunWithoutRepo(t *testing.T) {
	server := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clusters/runs/run-001", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 without persistence, got %d", w.Code)
	}
}

func TestRequestTraceID(t *testing.T) {
	server := testServer(t)

	first := httptest.NewRecorder()
	server.router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	second := httptest.NewRecorder()
	server.router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))

	a := first.Header().Get("X-Trace-ID")
	b := second.Header().Get("X-Trace-ID")
	if a == "" || b == "" {
		t.Fatalf("expected X-Trace-ID on every response, got %q and %q", a, b)
	}
	if a == b {
		t.Errorf("trace IDs must be unique per request, both were %q", a)
	}
}

func TestHealthReportsVault(t *testing.T) {
	vaultClient, err := vault.NewClient(vault.Config{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	server := testServer(t)
	server.vault = vaultClient

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["vault"] != "ok" {
		t.Errorf("Expected vault 'ok', got '%v'", response["vault"])
	}
}

func TestBuildHTTPServerTimeouts(t *testing.T) {
	server := testServer(t)
	server.config.ReadTimeout = 45
	server.config.WriteTimeout = 90

	httpServer := server.buildHTTPServer()
	if httpServer.ReadTimeout != 45*time.Second {
		t.Errorf("expected 45s read timeout, got %v", httpServer.ReadTimeout)
	}
	if httpServer.WriteTimeout != 90*time.Second {
		t.Errorf("expected 90s write timeout, got %v", httpServer.WriteTimeout)
	}

	// Zero values fall back to the defaults.
	server.config.ReadTimeout = 0
	server.config.WriteTimeout = 0
	httpServer = server.buildHTTPServer()
	if httpServer.ReadTimeout != 15*time.Second || httpServer.WriteTimeout != 15*time.Second {
		t.Errorf("expected 15s defaults, got %v/%v", httpServer.ReadTimeout, httpServer.WriteTimeout)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("client") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("client") {
		t.Error("fourth request should be rejected")
	}
	if !limiter.Allow("other") {
		t.Error("unrelated client should not be limited")
	}
}
