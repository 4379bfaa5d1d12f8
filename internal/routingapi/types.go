package routingapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Checker-Finance/swap-router/pkg/model"
)

// IntentPricing marks a request as a price-only probe.
const IntentPricing = "pricing"

// QuoteRequestBody is the JSON body POSTed to {base}/quote.
type QuoteRequestBody struct {
	TokenInChainID     model.ChainID          `json:"tokenInChainId"`
	TokenIn            string                 `json:"tokenIn"`
	TokenOutChainID    model.ChainID          `json:"tokenOutChainId"`
	TokenOut           string                 `json:"tokenOut"`
	Amount             string                 `json:"amount"`
	SendPortionEnabled bool                   `json:"sendPortionEnabled,omitempty"`
	Type               model.TradeType        `json:"type"`
	Intent             string                 `json:"intent,omitempty"`
	Configs            []model.ProviderConfig `json:"configs"`
}

// NewRequestBody assembles the wire body for req and its provider configs.
func NewRequestBody(req model.QuoteRequest, configs []model.ProviderConfig) QuoteRequestBody {
	body := QuoteRequestBody{
		TokenInChainID:     req.TokenInChainID,
		TokenIn:            req.TokenIn,
		TokenOutChainID:    req.TokenOutChainID,
		TokenOut:           req.TokenOut,
		Amount:             req.Amount,
		SendPortionEnabled: req.SendPortionEnabled,
		Type:               req.TradeType,
		Configs:            configs,
	}
	if req.IsPriceQuote() {
		body.Intent = IntentPricing
	}
	return body
}

// QuoteEnvelope is one routed quote: the routing type and its raw body.
type QuoteEnvelope struct {
	Routing model.RoutingType `json:"routing"`
	Quote   json.RawMessage   `json:"quote"`
}

// QuoteResponse is a successful routing API response. The top-level quote is the
// winner; AllQuotes carries every config's answer when the API returns them.
type QuoteResponse struct {
	Routing   model.RoutingType `json:"routing"`
	Quote     json.RawMessage   `json:"quote"`
	RequestID string            `json:"requestId,omitempty"`
	AllQuotes []QuoteEnvelope   `json:"allQuotes,omitempty"`
}

// ClassicQuote decodes the top-level quote as a classic quote.
func (r *QuoteResponse) ClassicQuote() (*model.ClassicQuoteData, error) {
	return decodeClassic(r.Routing, r.Quote)
}

// DutchQuote decodes the top-level quote as a synthetic order quote.
func (r *QuoteResponse) DutchQuote() (*model.DutchQuoteData, error) {
	if r.Routing != model.RoutingTypeDutchLimit {
		return nil, fmt.Errorf("routing %q is not %s", r.Routing, model.RoutingTypeDutchLimit)
	}
	var q model.DutchQuoteData
	if err := json.Unmarshal(r.Quote, &q); err != nil {
		return nil, fmt.Errorf("decode dutch quote: %w", err)
	}
	return &q, nil
}

// ClassicAlternative returns the classic quote from AllQuotes, if any.
func (r *QuoteResponse) ClassicAlternative() (*model.ClassicQuoteData, bool) {
	for _, q := range r.AllQuotes {
		if q.Routing != model.RoutingTypeClassic {
			continue
		}
		c, err := decodeClassic(q.Routing, q.Quote)
		if err != nil {
			return nil, false
		}
		return c, true
	}
	return nil, false
}

func decodeClassic(routing model.RoutingType, raw json.RawMessage) (*model.ClassicQuoteData, error) {
	if routing != model.RoutingTypeClassic {
		return nil, fmt.Errorf("routing %q is not %s", routing, model.RoutingTypeClassic)
	}
	var q model.ClassicQuoteData
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode classic quote: %w", err)
	}
	return &q, nil
}

// ErrorResponse is the routing API error body.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

const (
	// ErrorCodeNoRoute is the authoritative no-route signal.
	ErrorCodeNoRoute = "NO_ROUTE"
	// DetailNoQuotes is the legacy no-route detail string. Matched exactly.
	DetailNoQuotes = "No quotes available"
)

// ClassifiedError is a failed routing API response decoded into its error fields.
type ClassifiedError struct {
	HTTPStatus int
	ErrorCode  string
	Detail     string
}

func (e *ClassifiedError) Error() string {
	switch {
	case e.ErrorCode != "" && e.Detail != "":
		return fmt.Sprintf("routing api %d: %s: %s", e.HTTPStatus, e.ErrorCode, e.Detail)
	case e.ErrorCode != "":
		return fmt.Sprintf("routing api %d: %s", e.HTTPStatus, e.ErrorCode)
	case e.Detail != "":
		return fmt.Sprintf("routing api %d: %s", e.HTTPStatus, e.Detail)
	default:
		return fmt.Sprintf("routing api %d: %s", e.HTTPStatus, http.StatusText(e.HTTPStatus))
	}
}

// NoRoute reports whether the error is an authoritative no-route answer.
func (e *ClassifiedError) NoRoute() bool {
	return e.ErrorCode == ErrorCodeNoRoute || e.Detail == DetailNoQuotes
}

// IsNoRoute reports whether err carries an authoritative no-route answer.
// Only an exact errorCode or detail match counts; everything else is a recoverable failure.
func IsNoRoute(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.NoRoute()
}

// HTTPStatus extracts the response status from err, if it came from an HTTP response.
func HTTPStatus(err error) (int, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.HTTPStatus > 0 {
		return ce.HTTPStatus, true
	}
	return 0, false
}

// classifyResponse is the executor error handler for routing API responses.
func classifyResponse(status int, body []byte) error {
	ce := &ClassifiedError{HTTPStatus: status}
	var er ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &er) == nil {
		ce.ErrorCode = er.ErrorCode
		ce.Detail = er.Detail
	}
	return ce
}
