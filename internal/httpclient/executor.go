package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/rate"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// ErrorHandler turns a failed (>= 400) response into an upstream-specific error.
type ErrorHandler func(status int, body []byte) error

// StatusError is returned for failed responses when no ErrorHandler is configured.
type StatusError struct {
	Upstream string
	Status   int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d", e.Upstream, e.Status)
}

// Executor handles rate-limited, single-attempt HTTP execution with JSON decoding.
// Failed requests are never retried; callers decide how to recover.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	upstream     string
	errorHandler ErrorHandler
}

// New creates an Executor. errorHandler is called for failed (>= 400) responses.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	upstream string,
	errorHandler ErrorHandler,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		upstream:     upstream,
		errorHandler: errorHandler,
	}
}

// DoJSON executes req with rate limiting, then JSON-decodes the response into out.
// rateLimitKey scopes the rate limiter (see rate.ChainKey).
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	status, body, err := e.roundTrip(req.WithContext(ctx))
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Warn(e.upstream+".http_failed",
			zap.String("url", req.URL.String()),
			zap.Duration("latency", elapsed),
			zap.Error(err))
		return fmt.Errorf("%s request failed: %w", e.upstream, err)
	}

	if status >= 400 {
		e.logger.Debug(e.upstream+".http_error",
			zap.Int("status", status),
			zap.String("url", req.URL.String()),
			zap.Duration("latency", elapsed))
		if e.errorHandler != nil {
			return e.errorHandler(status, body)
		}
		return &StatusError{Upstream: e.upstream, Status: status, Body: body}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.upstream+".decode_failed",
				zap.Error(err),
				zap.String("url", req.URL.String()),
				zap.Int("body_len", len(body)))
			return fmt.Errorf("decode failed: %w", err)
		}
	}

	e.logger.Debug(e.upstream+".http_success",
		zap.String("url", req.URL.String()),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (e *Executor) roundTrip(req *http.Request) (int, []byte, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}
