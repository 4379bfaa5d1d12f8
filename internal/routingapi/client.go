package routingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/httpclient"
	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/internal/rate"
)

// ErrMissingBaseURL is returned when the client is built without a base URL.
var ErrMissingBaseURL = errors.New("routing api base url is required")

const rateLimitUpstream = "routing_api"

// Client submits quote requests to the routing API.
type Client struct {
	logger        *zap.Logger
	exec          *httpclient.Executor
	baseURL       string
	apiKey        string
	requestSource string
}

// Options configures a Client. BaseURL is required.
type Options struct {
	BaseURL       string
	APIKey        string
	RequestSource string
	HTTPClient    *http.Client
	RateLimiter   *rate.Manager
}

// NewClient creates a routing API client.
func NewClient(logger *zap.Logger, opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		logger:        logger,
		exec:          httpclient.New(logger, opts.RateLimiter, opts.HTTPClient, "routing_api", classifyResponse),
		baseURL:       base,
		apiKey:        opts.APIKey,
		requestSource: opts.RequestSource,
	}, nil
}

// Submit POSTs body to {base}/quote and returns the decoded response.
// Failed responses come back as *ClassifiedError; transport failures and
// cancellation come back as wrapped errors.
func (c *Client) Submit(ctx context.Context, body QuoteRequestBody) (*QuoteResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal quote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quote", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.requestSource != "" {
		req.Header.Set("x-request-source", c.requestSource)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	chain := strconv.FormatInt(int64(body.TokenInChainID), 10)
	start := time.Now()

	var resp QuoteResponse
	err = c.exec.DoJSON(ctx, req, rate.ChainKey(rateLimitUpstream, int64(body.TokenInChainID)), &resp)
	metrics.ObserveDuration(metrics.RoutingAPIRequestDuration, start, chain)
	metrics.IncRoutingAPIRequest(chain, statusLabel(err))

	if err != nil {
		return nil, err
	}
	if resp.Routing == "" || len(resp.Quote) == 0 || string(resp.Quote) == "null" {
		return nil, errors.New("routing api returned an empty quote")
	}

	c.logger.Debug("routing_api.quote_received",
		zap.String("chain_id", chain),
		zap.String("routing", string(resp.Routing)),
		zap.String("request_id", resp.RequestID),
		zap.Duration("elapsed", time.Since(start)))

	return &resp, nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if status, ok := HTTPStatus(err); ok {
		return strconv.Itoa(status)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "transport"
}
