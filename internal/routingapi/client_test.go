package routingapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/swap-router/pkg/model"
)

const (
	tokenWMATIC = "0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889"
	tokenUSDC   = "0x0FA8781a83E46826621b3BC094Ea2A0212e71B23"
)

const classicResponse = `{
	"routing": "CLASSIC",
	"requestId": "req-1",
	"quote": {
		"amount": "1000000000000000000",
		"amountDecimals": "1",
		"quote": "5937577864394108776",
		"quoteDecimals": "5.937577864394108776",
		"quoteGasAdjusted": "5937407047971608776",
		"gasUseEstimate": "113000",
		"gasUseEstimateUSD": "0.000170816422500000",
		"gasPriceWei": "1511701",
		"blockNumber": "37418411",
		"route": [[{
			"type": "v3-pool",
			"address": "0x8F2a5e7d9F0d0d6B6c1cF6B8A2bD7d73F7E8c3a1",
			"tokenIn": {"chainId": 80001, "address": "0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889", "symbol": "WMATIC", "decimals": "18"},
			"tokenOut": {"chainId": 80001, "address": "0x0FA8781a83E46826621b3BC094Ea2A0212e71B23", "symbol": "USDC", "decimals": "18"},
			"fee": "3000",
			"amountIn": "1000000000000000000",
			"amountOut": "5937577864394108776"
		}]],
		"routeString": "[V3] 100.00% = WMATIC -- 0.3% [0x8F2a] --> USDC",
		"quoteId": "q-1"
	}
}`

func testRequest() model.QuoteRequest {
	return model.QuoteRequest{
		TokenIn:          tokenWMATIC,
		TokenInChainID:   80001,
		TokenOut:         tokenUSDC,
		TokenOutChainID:  80001,
		TradeType:        model.TradeTypeExactInput,
		Amount:           "1000000000000000000",
		Account:          "0x000000000000000000000000000000000000dEaD",
		RouterPreference: model.RouterPreferenceAPI,
	}
}

func testBody() QuoteRequestBody {
	req := testRequest()
	return NewRequestBody(req, []model.ProviderConfig{
		model.ClassicConfig{
			Protocols:                      model.AllProtocols(),
			EnableUniversalRouter:          true,
			Recipient:                      req.Account,
			EnableFeeOnTransferFeeFetching: true,
		},
	})
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(zap.NewNop(), Options{
		BaseURL:       srv.URL + "/",
		APIKey:        "secret-key",
		RequestSource: "swap-router",
		HTTPClient:    srv.Client(),
	})
	require.NoError(t, err)
	return c
}

// ─── Construction ────────────────────────────────────────────────────────────

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(zap.NewNop(), Options{BaseURL: "  "})
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

// ─── Request shape ───────────────────────────────────────────────────────────

func TestSubmit_SendsBodyAndHeaders(t *testing.T) {
	var gotPath, gotSource, gotKey, gotCT string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSource = r.Header.Get("x-request-source")
		gotKey = r.Header.Get("x-api-key")
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(classicResponse))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	require.NoError(t, err)

	assert.Equal(t, "/quote", gotPath)
	assert.Equal(t, "swap-router", gotSource)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "application/json", gotCT)

	assert.EqualValues(t, 80001, gotBody["tokenInChainId"])
	assert.Equal(t, tokenWMATIC, gotBody["tokenIn"])
	assert.Equal(t, "1000000000000000000", gotBody["amount"])
	assert.Equal(t, "EXACT_INPUT", gotBody["type"])
	assert.NotContains(t, gotBody, "intent")

	configs, ok := gotBody["configs"].([]any)
	require.True(t, ok)
	require.Len(t, configs, 1)
	classic := configs[0].(map[string]any)
	assert.Equal(t, "CLASSIC", classic["routingType"])
	assert.Equal(t, true, classic["enableUniversalRouter"])
	assert.Equal(t, true, classic["enableFeeOnTransferFeeFetching"])
	assert.ElementsMatch(t, []any{"V2", "V3", "MIXED"}, classic["protocols"])
}

func TestNewRequestBody_PricingIntent(t *testing.T) {
	req := testRequest()
	req.RouterPreference = model.RouterPreferencePrice
	body := NewRequestBody(req, nil)
	assert.Equal(t, IntentPricing, body.Intent)
}

// ─── Success decoding ────────────────────────────────────────────────────────

func TestSubmit_DecodesClassicResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(classicResponse))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	require.NoError(t, err)
	assert.Equal(t, model.RoutingTypeClassic, resp.Routing)
	assert.Equal(t, "req-1", resp.RequestID)

	q, err := resp.ClassicQuote()
	require.NoError(t, err)
	assert.Equal(t, "5937577864394108776", q.Quote)
	assert.Equal(t, "1000000000000000000", q.Amount)
	require.Len(t, q.Route, 1)
	assert.Equal(t, model.ChainID(80001), q.Route[0][0].TokenIn.ChainID)

	_, err = resp.DutchQuote()
	assert.Error(t, err, "classic routing is not a dutch quote")
}

func TestSubmit_EmptyQuoteIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"routing":"CLASSIC","quote":null}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	require.Error(t, err)
	assert.False(t, IsNoRoute(err))
}

// ─── Error classification ────────────────────────────────────────────────────

func TestSubmit_NoRouteErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorCode":"NO_ROUTE","detail":"No route found"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	require.Error(t, err)
	assert.True(t, IsNoRoute(err))

	status, ok := HTTPStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmit_NoQuotesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"No quotes available"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	assert.True(t, IsNoRoute(err))
}

func TestSubmit_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errorCode":"INTERNAL_ERROR"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	require.Error(t, err)
	assert.False(t, IsNoRoute(err))
	assert.EqualValues(t, 1, calls.Load(), "the client never retries")

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "INTERNAL_ERROR", ce.ErrorCode)
}

func TestSubmit_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Submit(context.Background(), testBody())
	require.Error(t, err)
	assert.False(t, IsNoRoute(err))
	status, ok := HTTPStatus(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestSubmit_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Submit(context.Background(), testBody())
	require.Error(t, err)
	assert.False(t, IsNoRoute(err))
	_, ok := HTTPStatus(err)
	assert.False(t, ok)
}

// ─── IsNoRoute matching ──────────────────────────────────────────────────────

func TestIsNoRoute_ExactMatchOnly(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"errorCode", &ClassifiedError{HTTPStatus: 404, ErrorCode: "NO_ROUTE"}, true},
		{"detail", &ClassifiedError{HTTPStatus: 404, Detail: "No quotes available"}, true},
		{"detail lowercase", &ClassifiedError{HTTPStatus: 404, Detail: "no quotes available"}, false},
		{"detail with suffix", &ClassifiedError{HTTPStatus: 404, Detail: "No quotes available."}, false},
		{"errorCode lowercase", &ClassifiedError{HTTPStatus: 404, ErrorCode: "no_route"}, false},
		{"other code", &ClassifiedError{HTTPStatus: 400, ErrorCode: "VALIDATION_ERROR"}, false},
		{"wrapped", errors.Join(errors.New("ctx"), &ClassifiedError{ErrorCode: "NO_ROUTE"}), true},
		{"plain", errors.New("NO_ROUTE"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsNoRoute(tc.err))
		})
	}
}

func TestClassicAlternative(t *testing.T) {
	resp := &QuoteResponse{
		Routing: model.RoutingTypeDutchLimit,
		Quote:   json.RawMessage(`{}`),
		AllQuotes: []QuoteEnvelope{
			{Routing: model.RoutingTypeDutchLimit, Quote: json.RawMessage(`{}`)},
			{Routing: model.RoutingTypeClassic, Quote: json.RawMessage(`{"amount":"1","quote":"2","quoteGasAdjusted":"2","gasUseEstimateUSD":"1.25","route":[]}`)},
		},
	}
	c, ok := resp.ClassicAlternative()
	require.True(t, ok)
	assert.Equal(t, "1.25", c.GasUseEstimateUSD)
}
