package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/internal/routingapi"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// ErrMissingBaseURL is returned by NewOrchestrator when no routing API base URL is configured.
var ErrMissingBaseURL = errors.New("quote orchestrator: routing api base url is required")

const tracerName = "github.com/Checker-Finance/swap-router/internal/quote"

// RemoteClient submits a request body to the routing API.
type RemoteClient interface {
	Submit(ctx context.Context, body routingapi.QuoteRequestBody) (*routingapi.QuoteResponse, error)
}

// LocalEngine computes a quote without the routing API.
type LocalEngine interface {
	ResolveRouter(ctx context.Context, chainID model.ChainID) (model.RouterHandle, error)
	ComputeQuote(ctx context.Context, req model.QuoteRequest, router model.RouterHandle, params model.LocalQuoteParams) (model.LocalQuoteResult, error)
}

// Diagnostics receives one event per authoritative NO_ROUTE answer.
type Diagnostics interface {
	EmitNoRoute(ctx context.Context, ev model.NoRouteEvent) error
}

// Recorder receives an audit record for every completed acquisition.
type Recorder interface {
	Record(ctx context.Context, rec model.QuoteRecord)
}

// Options wires an Orchestrator. BaseURL, Remote and Local are required.
type Options struct {
	BaseURL         string
	Remote          RemoteClient
	Local           LocalEngine
	Diagnostics     Diagnostics
	Recorder        Recorder
	SyntheticChains map[model.ChainID]struct{}
	Normalizer      *Normalizer
	Tracer          trace.Tracer
	Logger          *zap.Logger
	Now             func() time.Time
}

// Orchestrator acquires a quote from the routing API, falling back to the
// local engine when the API fails for any reason other than NO_ROUTE.
// It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	remote          RemoteClient
	local           LocalEngine
	diagnostics     Diagnostics
	recorder        Recorder
	syntheticChains map[model.ChainID]struct{}
	normalizer      *Normalizer
	tracer          trace.Tracer
	logger          *zap.Logger
	now             func() time.Time
}

// NewOrchestrator validates opts and builds an Orchestrator.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	if opts.Remote == nil {
		return nil, errors.New("quote orchestrator: remote client is required")
	}
	if opts.Local == nil {
		return nil, errors.New("quote orchestrator: local engine is required")
	}
	o := &Orchestrator{
		remote:          opts.Remote,
		local:           opts.Local,
		diagnostics:     opts.Diagnostics,
		recorder:        opts.Recorder,
		syntheticChains: opts.SyntheticChains,
		normalizer:      opts.Normalizer,
		tracer:          opts.Tracer,
		logger:          opts.Logger,
		now:             opts.Now,
	}
	if o.syntheticChains == nil {
		o.syntheticChains = map[model.ChainID]struct{}{1: {}}
	}
	if o.normalizer == nil {
		o.normalizer = NewNormalizer()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// attempt carries what the terminal step needs to know about earlier steps.
type attempt struct {
	remoteStatus int
}

// Acquire runs one quote acquisition. It never returns an error: every path
// ends in a QuoteResult whose Outcome the caller switches on.
func (o *Orchestrator) Acquire(ctx context.Context, req model.QuoteRequest) model.QuoteResult {
	start := o.now()

	ctx, span := o.tracer.Start(ctx, "quote",
		trace.WithAttributes(
			attribute.Bool("quote.is_price", req.IsPriceQuote()),
			attribute.Bool("quote.is_auto_router", req.IsAutoRouter()),
			attribute.Int64("quote.chain_id", int64(req.TokenInChainID)),
			attribute.String("quote.trade_type", string(req.TradeType)),
			attribute.String("quote.router_preference", string(req.RouterPreference)),
		))
	defer span.End()

	var st attempt
	outcome := o.run(ctx, span, req, &st)

	res := model.QuoteResult{
		Outcome:   outcome,
		LatencyMs: elapsedMs(start, o.now()),
	}
	o.finish(ctx, span, req, res, &st)
	return res
}

func (o *Orchestrator) run(ctx context.Context, span trace.Span, req model.QuoteRequest, st *attempt) model.QuoteOutcome {
	configs := BuildConfigs(req, o.syntheticChains)
	body := routingapi.NewRequestBody(req, configs)

	trade, err := o.remoteAttempt(ctx, req, body)
	if err == nil {
		return model.QuoteSuccess{Trade: trade, Method: model.QuoteMethodRoutingAPI}
	}
	if status, ok := routingapi.HTTPStatus(err); ok {
		st.remoteStatus = status
	}

	if routingapi.IsNoRoute(err) {
		o.emitNoRoute(ctx, req, body, err)
		span.AddEvent("quote.no_route")
		return model.QuoteNotFound{}
	}

	reason := fallbackReason(err)
	o.logger.Warn("quote.remote_failed",
		zap.Int64("chain_id", int64(req.TokenInChainID)),
		zap.String("reason", reason),
		zap.Error(err))
	metrics.IncFallback(reason)
	span.AddEvent("quote.fallback", trace.WithAttributes(attribute.String("quote.fallback.reason", reason)))

	return o.localAttempt(ctx, req)
}

// remoteAttempt submits body and normalizes the payload. Panics while
// interpreting the payload are converted into errors.
func (o *Orchestrator) remoteAttempt(ctx context.Context, req model.QuoteRequest, body routingapi.QuoteRequestBody) (trade model.Trade, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	resp, err := o.remote.Submit(ctx, body)
	if err != nil {
		return model.Trade{}, err
	}
	trade, err = o.normalizer.Normalize(resp, req, model.QuoteMethodRoutingAPI)
	if err != nil {
		return model.Trade{}, &payloadError{err: err}
	}
	return trade, nil
}

// localAttempt runs the fallback engine. Once started, the computation is
// detached from ctx cancellation.
func (o *Orchestrator) localAttempt(ctx context.Context, req model.QuoteRequest) (out model.QuoteOutcome) {
	if err := ctx.Err(); err != nil {
		return model.QuoteFailure{
			Kind:    model.FailureKindCancelled,
			Message: fmt.Sprintf("quote cancelled before fallback: %v", err),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("quote.fallback_panicked", zap.Any("panic", r))
			out = clientSideFailure(fmt.Sprintf("local engine panicked: %v", r))
		}
	}()

	router, err := o.local.ResolveRouter(ctx, req.TokenInChainID)
	if err != nil {
		if ctx.Err() != nil {
			return model.QuoteFailure{
				Kind:    model.FailureKindCancelled,
				Message: fmt.Sprintf("quote cancelled before fallback: %v", ctx.Err()),
			}
		}
		o.logger.Error("quote.fallback_failed",
			zap.Int64("chain_id", int64(req.TokenInChainID)),
			zap.String("stage", "resolve_router"),
			zap.Error(err))
		return clientSideFailure(err.Error())
	}

	res, err := o.local.ComputeQuote(context.WithoutCancel(ctx), req, router, model.LocalQuoteParams{
		Protocols: model.AllProtocols(),
	})
	if err != nil {
		o.logger.Error("quote.fallback_failed",
			zap.Int64("chain_id", int64(req.TokenInChainID)),
			zap.String("stage", "compute"),
			zap.Error(err))
		return clientSideFailure(err.Error())
	}

	switch res.State {
	case model.QuoteStateSuccess:
		if res.Data == nil {
			return clientSideFailure("local engine returned success without a quote")
		}
		trade, err := o.normalizer.Normalize(res.Data, req, model.QuoteMethodClientSideFallback)
		if err != nil {
			return clientSideFailure(fmt.Sprintf("normalize local quote: %v", err))
		}
		return model.QuoteSuccess{Trade: trade, Method: model.QuoteMethodClientSideFallback}
	case model.QuoteStateNotFound:
		return model.QuoteNotFound{}
	default:
		return clientSideFailure(fmt.Sprintf("local engine returned state %q", res.State))
	}
}

func (o *Orchestrator) emitNoRoute(ctx context.Context, req model.QuoteRequest, body routingapi.QuoteRequestBody, err error) {
	if o.diagnostics == nil {
		return
	}
	raw, mErr := json.Marshal(body)
	if mErr != nil {
		o.logger.Warn("quote.no_route_event_marshal_failed", zap.Error(mErr))
	}
	ev := model.NoRouteEvent{
		ID:               uuid.New(),
		RequestBody:      raw,
		RouterPreference: req.RouterPreference,
		TokenInChainID:   req.TokenInChainID,
		Timestamp:        o.now().UTC(),
	}
	var ce *routingapi.ClassifiedError
	if errors.As(err, &ce) {
		ev.HTTPStatus = ce.HTTPStatus
		ev.ErrorCode = ce.ErrorCode
		ev.Detail = ce.Detail
	}
	if eErr := o.diagnostics.EmitNoRoute(ctx, ev); eErr != nil {
		o.logger.Warn("quote.no_route_event_failed", zap.Error(eErr))
	}
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, req model.QuoteRequest, res model.QuoteResult, st *attempt) {
	state := res.State()
	span.SetAttributes(
		attribute.String("quote.state", string(state)),
		attribute.Float64("quote.latency_ms", res.LatencyMs),
	)

	method := ""
	switch out := res.Outcome.(type) {
	case model.QuoteSuccess:
		method = string(out.Method)
		span.SetAttributes(attribute.String("quote.method", method))
		span.SetStatus(codes.Ok, "quote ready")
	case model.QuoteNotFound:
		span.SetStatus(codes.Ok, "no route")
	case model.QuoteFailure:
		span.SetAttributes(attribute.String("quote.error.kind", string(out.Kind)))
		if st.remoteStatus > 0 {
			span.SetAttributes(attribute.Int("http.status_code", st.remoteStatus))
		}
		span.RecordError(errors.New(out.Message))
		span.SetStatus(codes.Error, out.Message)
	}

	metrics.IncQuoteOutcome(string(state), method)
	metrics.ObserveQuoteLatency(string(state), res.LatencyMs)

	o.logger.Info("quote.acquired",
		zap.Int64("chain_id", int64(req.TokenInChainID)),
		zap.String("state", string(state)),
		zap.String("method", method),
		zap.Float64("latency_ms", res.LatencyMs))

	if o.recorder != nil {
		o.recorder.Record(ctx, model.NewQuoteRecord(req, res, o.now()))
	}
}

func clientSideFailure(msg string) model.QuoteFailure {
	return model.QuoteFailure{Kind: model.FailureKindClientSide, Message: msg}
}

// elapsedMs returns end-start in milliseconds, never negative.
func elapsedMs(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

type panicError struct{ value any }

func (e *panicError) Error() string { return fmt.Sprintf("panic while handling routing api response: %v", e.value) }

type payloadError struct{ err error }

func (e *payloadError) Error() string { return "routing api payload: " + e.err.Error() }
func (e *payloadError) Unwrap() error { return e.err }

// fallbackReason labels why the remote attempt was abandoned.
func fallbackReason(err error) string {
	var pe *panicError
	var ple *payloadError
	switch {
	case errors.As(err, &pe):
		return "panic"
	case errors.As(err, &ple):
		return "payload"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	if status, ok := routingapi.HTTPStatus(err); ok {
		if status >= 500 {
			return "server"
		}
		return "client"
	}
	return "transport"
}
