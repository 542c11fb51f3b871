package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"analog-engine/internal/signal"
)

// Logger is the minimal logging surface the cache layer needs
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SignalCacheService caches the latest assembled signal per symbol so
// repeated API requests within the TTL skip the full analog query.
type SignalCacheService struct {
	cache  *CacheService
	logger Logger
}

// NewSignalCacheService creates a signal cache on top of the shared cache service
func NewSignalCacheService(cache *CacheService, logger Logger) *SignalCacheService {
	return &SignalCacheService{cache: cache, logger: logger}
}

// CacheSignal stores the signal under its symbol key. Failures are logged
// and swallowed; caching is best effort.
func (s *SignalCacheService) CacheSignal(ctx context.Context, sig *signal.AssembledSignal) {
	key := fmt.Sprintf(PrefixSignal, sig.Symbol)
	if err := s.cache.Set(ctx, key, sig, SignalTTL); err != nil {
		if !errors.Is(err, ErrCacheUnavailable) {
			s.logger.Warn("Failed to cache signal", "symbol", sig.Symbol, "error", err)
		}
	}
}

// GetSignal returns the cached signal for symbol, or nil on miss or a
// degraded cache.
func (s *SignalCacheService) GetSignal(ctx context.Context, symbol string) *signal.AssembledSignal {
	key := fmt.Sprintf(PrefixSignal, symbol)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheUnavailable) {
			s.logger.Debug("Signal cache read failed", "symbol", symbol, "error", err)
		}
		return nil
	}

	var sig signal.AssembledSignal
	if err := json.Unmarshal([]byte(raw), &sig); err != nil {
		s.logger.Debug("Failed to decode cached signal", "symbol", symbol, "error", err)
		return nil
	}
	return &sig
}

// Invalidate drops the cached signal for symbol
func (s *SignalCacheService) Invalidate(ctx context.Context, symbol string) {
	key := fmt.Sprintf(PrefixSignal, symbol)
	if err := s.cache.Delete(ctx, key); err != nil && !errors.Is(err, ErrCacheUnavailable) {
		s.logger.Debug("Failed to invalidate signal cache", "symbol", symbol, "error", err)
	}
}
