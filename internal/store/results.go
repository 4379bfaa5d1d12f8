package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// Results retains finished quote results for a short window so identical
// requests inside it are answered without a new acquisition.
type Results struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResults wraps s. A non-positive ttl disables retention.
func NewResults(s Store, ttl time.Duration, logger *zap.Logger) *Results {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Results{store: s, ttl: ttl, logger: logger}
}

// Get returns the retained result for req. Store errors are treated as a miss.
func (r *Results) Get(ctx context.Context, req model.QuoteRequest) (model.QuoteResult, bool) {
	if r.ttl <= 0 {
		return model.QuoteResult{}, false
	}
	var res model.QuoteResult
	err := r.store.GetJSON(ctx, req.CacheKey(), &res)
	switch {
	case err == nil:
		metrics.IncCacheAccess("hit")
		return res, true
	case errors.Is(err, ErrNotFound):
		metrics.IncCacheAccess("miss")
	default:
		metrics.IncCacheAccess("error")
		r.logger.Warn("results.get_failed", zap.Error(err))
	}
	return model.QuoteResult{}, false
}

// Put retains res for req. Failed results are not retained.
func (r *Results) Put(ctx context.Context, req model.QuoteRequest, res model.QuoteResult) {
	if r.ttl <= 0 || res.State() == model.QuoteStateError {
		return
	}
	if err := r.store.SetJSON(ctx, req.CacheKey(), res, r.ttl); err != nil {
		metrics.IncError("results", "set")
		r.logger.Warn("results.put_failed", zap.Error(err))
	}
}
