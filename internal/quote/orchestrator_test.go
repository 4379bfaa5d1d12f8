package quote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/internal/routingapi"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// ─── Fakes ───────────────────────────────────────────────────────────────────

type fakeRemote struct {
	mu     sync.Mutex
	resp   *routingapi.QuoteResponse
	err    error
	panics bool
	bodies []routingapi.QuoteRequestBody
}

func (f *fakeRemote) Submit(ctx context.Context, body routingapi.QuoteRequestBody) (*routingapi.QuoteResponse, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	if f.panics {
		panic("unexpected payload shape")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.resp, f.err
}

type fakeRouter struct{ chain model.ChainID }

func (r fakeRouter) ChainID() model.ChainID { return r.chain }

type fakeEngine struct {
	mu          sync.Mutex
	resolveErr  error
	resolveWait bool
	result      model.LocalQuoteResult
	err         error
	panics      bool
	resolved    []model.ChainID
	computed    int
	detachedCtx bool
	params      model.LocalQuoteParams
}

func (f *fakeEngine) ResolveRouter(ctx context.Context, chainID model.ChainID) (model.RouterHandle, error) {
	f.mu.Lock()
	f.resolved = append(f.resolved, chainID)
	f.mu.Unlock()
	if f.resolveWait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return fakeRouter{chain: chainID}, nil
}

func (f *fakeEngine) ComputeQuote(ctx context.Context, _ model.QuoteRequest, router model.RouterHandle, params model.LocalQuoteParams) (model.LocalQuoteResult, error) {
	f.mu.Lock()
	f.computed++
	f.detachedCtx = ctx.Done() == nil
	f.params = params
	f.mu.Unlock()
	if f.panics {
		panic("router state corrupted")
	}
	return f.result, f.err
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.computed
}

type fakeDiagnostics struct {
	mu     sync.Mutex
	events []model.NoRouteEvent
	err    error
}

func (f *fakeDiagnostics) EmitNoRoute(_ context.Context, ev model.NoRouteEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []model.QuoteRecord
}

func (f *fakeRecorder) Record(_ context.Context, rec model.QuoteRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

// steppingClock advances by step on every read.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type harness struct {
	orch     *Orchestrator
	remote   *fakeRemote
	engine   *fakeEngine
	diag     *fakeDiagnostics
	recorder *fakeRecorder
	spans    *tracetest.SpanRecorder
}

func newHarness(t *testing.T, remote *fakeRemote, engine *fakeEngine) *harness {
	t.Helper()
	if engine == nil {
		engine = &fakeEngine{}
	}
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h := &harness{
		remote:   remote,
		engine:   engine,
		diag:     &fakeDiagnostics{},
		recorder: &fakeRecorder{},
		spans:    sr,
	}
	clk := &steppingClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), step: 25 * time.Millisecond}
	orch, err := NewOrchestrator(Options{
		BaseURL:         "https://routing.example.com",
		Remote:          remote,
		Local:           engine,
		Diagnostics:     h.diag,
		Recorder:        h.recorder,
		SyntheticChains: mainnetOnly,
		Tracer:          tp.Tracer("test"),
		Logger:          zap.NewNop(),
		Now:             clk.Now,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) span(t *testing.T) sdktrace.ReadOnlySpan {
	t.Helper()
	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	return ended[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func localSuccess() model.LocalQuoteResult {
	return model.LocalQuoteResult{
		State: model.QuoteStateSuccess,
		Data:  classicData("1000000000000000000", "5930000000000000000"),
	}
}

// ─── Construction ────────────────────────────────────────────────────────────

func TestNewOrchestrator_RequiresBaseURL(t *testing.T) {
	_, err := NewOrchestrator(Options{Remote: &fakeRemote{}, Local: &fakeEngine{}})
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(Options{BaseURL: "https://x", Local: &fakeEngine{}})
	assert.Error(t, err)
	_, err = NewOrchestrator(Options{BaseURL: "https://x", Remote: &fakeRemote{}})
	assert.Error(t, err)
}

// ─── Remote success ──────────────────────────────────────────────────────────

func TestAcquire_RemoteSuccessScenario(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote, nil)
	remote.resp = classicResponse(t, classicData("1000000000000000000", "5937577864394108776"))

	res := h.orch.Acquire(context.Background(), baseRequest())

	success, ok := res.Outcome.(model.QuoteSuccess)
	require.True(t, ok, "got %T", res.Outcome)
	assert.Equal(t, "5937577864394108776", success.Trade.Quote)
	assert.Equal(t, model.QuoteMethodRoutingAPI, success.Method)
	assert.Equal(t, 0, h.engine.calls())

	require.Len(t, remote.bodies, 1)
	require.Len(t, remote.bodies[0].Configs, 1, "chain 80001 has no synthetic support")
	assert.Equal(t, model.RoutingTypeClassic, remote.bodies[0].Configs[0].RoutingType())
	assert.Equal(t, 25.0, res.LatencyMs)

	span := h.span(t)
	assert.Equal(t, "quote", span.Name())
	v, _ := spanAttr(span, "quote.state")
	assert.Equal(t, "SUCCESS", v.AsString())
	v, _ = spanAttr(span, "quote.method")
	assert.Equal(t, "ROUTING_API", v.AsString())
	v, _ = spanAttr(span, "quote.is_auto_router")
	assert.True(t, v.AsBool())
	v, _ = spanAttr(span, "quote.is_price")
	assert.False(t, v.AsBool())
	assert.Equal(t, codes.Ok, span.Status().Code)
}

func TestAcquire_PriceRequestSendsPricingIntent(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote, nil)
	remote.resp = classicResponse(t, classicData("1000000000000000000", "5937577864394108776"))

	req := baseRequest()
	req.RouterPreference = model.RouterPreferencePrice
	h.orch.Acquire(context.Background(), req)

	require.Len(t, remote.bodies, 1)
	assert.Equal(t, routingapi.IntentPricing, remote.bodies[0].Intent)
	v, _ := spanAttr(h.span(t), "quote.is_price")
	assert.True(t, v.AsBool())
}

// ─── NO_ROUTE ────────────────────────────────────────────────────────────────

func TestAcquire_NegativeGasAdjustedQuoteStaysRemote(t *testing.T) {
	q := classicData("1000000000000", "900000")
	q.QuoteGasAdjusted = "-2350000"
	remote := &fakeRemote{}
	h := newHarness(t, remote, &fakeEngine{result: model.LocalQuoteResult{State: model.QuoteStateNotFound}})
	remote.resp = classicResponse(t, q)

	res := h.orch.Acquire(context.Background(), baseRequest())

	success, ok := res.Outcome.(model.QuoteSuccess)
	require.True(t, ok, "got %T", res.Outcome)
	assert.Equal(t, model.QuoteMethodRoutingAPI, success.Method)
	assert.Equal(t, "-2350000", success.Trade.QuoteGasAdjusted)
	assert.Equal(t, 0, h.engine.calls())
}

func TestAcquire_NoRouteErrorCode(t *testing.T) {
	remote := &fakeRemote{err: &routingapi.ClassifiedError{HTTPStatus: 404, ErrorCode: "NO_ROUTE"}}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	res := h.orch.Acquire(context.Background(), baseRequest())

	assert.IsType(t, model.QuoteNotFound{}, res.Outcome)
	assert.Equal(t, 0, h.engine.calls(), "NO_ROUTE must not fall back")
	assert.Empty(t, h.engine.resolved)
	require.Len(t, h.diag.events, 1)

	ev := h.diag.events[0]
	assert.Equal(t, model.RouterPreferenceAuto, ev.RouterPreference)
	assert.Equal(t, "NO_ROUTE", ev.ErrorCode)
	assert.Equal(t, 404, ev.HTTPStatus)
	assert.Equal(t, model.ChainID(80001), ev.TokenInChainID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(ev.RequestBody, &body))
	assert.Equal(t, tokenWMATIC, body["tokenIn"])
	assert.Equal(t, "1000000000000000000", body["amount"])
}

func TestAcquire_NoQuotesAvailableDetail(t *testing.T) {
	remote := &fakeRemote{err: &routingapi.ClassifiedError{HTTPStatus: 404, Detail: "No quotes available"}}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	res := h.orch.Acquire(context.Background(), baseRequest())

	assert.IsType(t, model.QuoteNotFound{}, res.Outcome)
	assert.Equal(t, 0, h.engine.calls())
	assert.Len(t, h.diag.events, 1)
}

func TestAcquire_NoRouteMatchIsCaseSensitive(t *testing.T) {
	remote := &fakeRemote{err: &routingapi.ClassifiedError{HTTPStatus: 404, Detail: "no quotes available"}}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	res := h.orch.Acquire(context.Background(), baseRequest())

	assert.Equal(t, model.QuoteStateSuccess, res.State())
	assert.Equal(t, 1, h.engine.calls())
	assert.Empty(t, h.diag.events)
}

func TestAcquire_DiagnosticsFailureDoesNotChangeOutcome(t *testing.T) {
	remote := &fakeRemote{err: &routingapi.ClassifiedError{HTTPStatus: 404, ErrorCode: "NO_ROUTE"}}
	h := newHarness(t, remote, nil)
	h.diag.err = errors.New("nats down")

	res := h.orch.Acquire(context.Background(), baseRequest())
	assert.IsType(t, model.QuoteNotFound{}, res.Outcome)
}

// ─── Fallback ────────────────────────────────────────────────────────────────

func TestAcquire_NetworkErrorFallsBackScenario(t *testing.T) {
	remote := &fakeRemote{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	res := h.orch.Acquire(context.Background(), baseRequest())

	success, ok := res.Outcome.(model.QuoteSuccess)
	require.True(t, ok, "got %T", res.Outcome)
	assert.Equal(t, model.QuoteMethodClientSideFallback, success.Method)
	assert.Equal(t, "5930000000000000000", success.Trade.Quote)

	assert.Equal(t, 1, h.engine.calls())
	assert.Equal(t, []model.ChainID{80001}, h.engine.resolved)
	assert.Equal(t, model.AllProtocols(), h.engine.params.Protocols)
	assert.Empty(t, h.diag.events)
}

func TestAcquire_FallbackTriggers(t *testing.T) {
	cases := map[string]*fakeRemote{
		"server error":   {err: &routingapi.ClassifiedError{HTTPStatus: 500, ErrorCode: "INTERNAL_ERROR"}},
		"client error":   {err: &routingapi.ClassifiedError{HTTPStatus: 400, ErrorCode: "VALIDATION_ERROR"}},
		"panic":          {panics: true},
		"bad payload":    {resp: &routingapi.QuoteResponse{Routing: model.RoutingTypeClassic, Quote: json.RawMessage(`{"amount":"1","quote":"abc","route":[]}`)}},
		"unknown type":   {resp: &routingapi.QuoteResponse{Routing: "PRIORITY", Quote: json.RawMessage(`{}`)}},
		"nil response":   {},
		"plain error":    {err: errors.New("boom")},
		"undecodable":    {resp: &routingapi.QuoteResponse{Routing: model.RoutingTypeClassic, Quote: json.RawMessage(`[1,2]`)}},
		"no route text":  {err: errors.New("NO_ROUTE")},
		"timeout status": {err: &routingapi.ClassifiedError{HTTPStatus: 504}},
	}
	for name, remote := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, remote, &fakeEngine{result: localSuccess()})
			res := h.orch.Acquire(context.Background(), baseRequest())

			require.Equal(t, model.QuoteStateSuccess, res.State())
			assert.Equal(t, model.QuoteMethodClientSideFallback, res.Outcome.(model.QuoteSuccess).Method)
			assert.Equal(t, 1, h.engine.calls(), "fallback invoked exactly once")
			assert.Equal(t, []model.ChainID{80001}, h.engine.resolved)
		})
	}
}

func TestAcquire_FallbackNotFound(t *testing.T) {
	remote := &fakeRemote{err: errors.New("timeout")}
	h := newHarness(t, remote, &fakeEngine{result: model.LocalQuoteResult{State: model.QuoteStateNotFound}})

	res := h.orch.Acquire(context.Background(), baseRequest())
	assert.IsType(t, model.QuoteNotFound{}, res.Outcome)
	assert.Empty(t, h.diag.events, "only remote NO_ROUTE emits diagnostics")
}

func TestAcquire_FallbackErrorIsClientSideFailure(t *testing.T) {
	remote := &fakeRemote{err: &routingapi.ClassifiedError{HTTPStatus: 503}}
	h := newHarness(t, remote, &fakeEngine{err: errors.New("no pools for pair")})

	res := h.orch.Acquire(context.Background(), baseRequest())

	failure, ok := res.Outcome.(model.QuoteFailure)
	require.True(t, ok, "got %T", res.Outcome)
	assert.Equal(t, model.FailureKindClientSide, failure.Kind)
	assert.Equal(t, "no pools for pair", failure.Message)

	span := h.span(t)
	assert.Equal(t, codes.Error, span.Status().Code)
	v, ok := spanAttr(span, "http.status_code")
	require.True(t, ok)
	assert.EqualValues(t, 503, v.AsInt64())
	v, _ = spanAttr(span, "quote.error.kind")
	assert.Equal(t, "CLIENT_SIDE_FAILURE", v.AsString())
	require.NotEmpty(t, span.Events())
}

func TestAcquire_ResolveRouterFails(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	h := newHarness(t, remote, &fakeEngine{resolveErr: errors.New("unsupported chain 80001")})

	res := h.orch.Acquire(context.Background(), baseRequest())

	failure, ok := res.Outcome.(model.QuoteFailure)
	require.True(t, ok)
	assert.Contains(t, failure.Message, "unsupported chain")
	assert.Equal(t, 0, h.engine.calls())
}

func TestAcquire_FallbackPanicIsFailure(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	h := newHarness(t, remote, &fakeEngine{panics: true})

	res := h.orch.Acquire(context.Background(), baseRequest())
	failure, ok := res.Outcome.(model.QuoteFailure)
	require.True(t, ok)
	assert.Equal(t, model.FailureKindClientSide, failure.Kind)
	assert.Contains(t, failure.Message, "router state corrupted")
}

func TestAcquire_FallbackSuccessWithoutData(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	h := newHarness(t, remote, &fakeEngine{result: model.LocalQuoteResult{State: model.QuoteStateSuccess}})

	res := h.orch.Acquire(context.Background(), baseRequest())
	assert.Equal(t, model.QuoteStateError, res.State())
}

// ─── Cancellation ────────────────────────────────────────────────────────────

func TestAcquire_CancelledBeforeFallback(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.orch.Acquire(ctx, baseRequest())

	failure, ok := res.Outcome.(model.QuoteFailure)
	require.True(t, ok, "got %T", res.Outcome)
	assert.Equal(t, model.FailureKindCancelled, failure.Kind)
	assert.Equal(t, 0, h.engine.calls())
	assert.GreaterOrEqual(t, res.LatencyMs, 0.0)
}

func TestAcquire_CancelledWhileResolvingRouter(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	h := newHarness(t, remote, &fakeEngine{resolveWait: true, result: localSuccess()})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := h.orch.Acquire(ctx, baseRequest())

	failure, ok := res.Outcome.(model.QuoteFailure)
	require.True(t, ok, "got %T", res.Outcome)
	assert.Equal(t, model.FailureKindCancelled, failure.Kind)
	assert.Equal(t, 0, h.engine.calls())
}

func TestAcquire_LocalComputeDetachedFromCancellation(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	h.orch.Acquire(context.Background(), baseRequest())
	assert.True(t, h.engine.detachedCtx, "ComputeQuote must receive a context without cancellation")
}

// ─── Latency and audit ───────────────────────────────────────────────────────

func TestAcquire_LatencyOnEveryPath(t *testing.T) {
	paths := map[string]*harness{
		"success":   newHarness(t, &fakeRemote{err: errors.New("down")}, &fakeEngine{result: localSuccess()}),
		"not found": newHarness(t, &fakeRemote{err: &routingapi.ClassifiedError{ErrorCode: "NO_ROUTE"}}, nil),
		"error":     newHarness(t, &fakeRemote{err: errors.New("down")}, &fakeEngine{err: errors.New("x")}),
	}
	for name, h := range paths {
		t.Run(name, func(t *testing.T) {
			res := h.orch.Acquire(context.Background(), baseRequest())
			assert.GreaterOrEqual(t, res.LatencyMs, 0.0)
			assert.Greater(t, res.LatencyMs, 0.0, "stepping clock always advances")

			raw, err := json.Marshal(res)
			require.NoError(t, err)
			var wire map[string]any
			require.NoError(t, json.Unmarshal(raw, &wire))
			assert.Contains(t, wire, "latencyMs")
		})
	}
}

func TestAcquire_BackwardsClockClampsLatency(t *testing.T) {
	remote := &fakeRemote{err: &routingapi.ClassifiedError{ErrorCode: "NO_ROUTE"}}
	clk := &steppingClock{now: time.Unix(1000, 0), step: -time.Second}
	orch, err := NewOrchestrator(Options{
		BaseURL: "https://routing.example.com",
		Remote:  remote,
		Local:   &fakeEngine{},
		Now:     clk.Now,
	})
	require.NoError(t, err)

	res := orch.Acquire(context.Background(), baseRequest())
	assert.Equal(t, 0.0, res.LatencyMs)
}

func TestAcquire_RecordsEveryAcquisition(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	h := newHarness(t, remote, &fakeEngine{result: localSuccess()})

	res := h.orch.Acquire(context.Background(), baseRequest())

	require.Len(t, h.recorder.records, 1)
	rec := h.recorder.records[0]
	assert.Equal(t, model.QuoteStateSuccess, rec.State)
	assert.Equal(t, model.QuoteMethodClientSideFallback, rec.Method)
	assert.Equal(t, "5930000000000000000", rec.Quote)
	assert.Equal(t, res.LatencyMs, rec.LatencyMs)
}

func TestAcquire_ConcurrentCallsAreIndependent(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote, nil)
	remote.resp = classicResponse(t, classicData("1000000000000000000", "5937577864394108776"))

	var wg sync.WaitGroup
	results := make([]model.QuoteResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.orch.Acquire(context.Background(), baseRequest())
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, model.QuoteStateSuccess, r.State())
	}
	assert.Len(t, h.spans.Ended(), 16)
}
