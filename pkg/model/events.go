package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NoRouteEvent is emitted once per authoritative NO_ROUTE answer from the routing API.
type NoRouteEvent struct {
	ID               uuid.UUID        `json:"id"`
	RequestBody      json.RawMessage  `json:"request_body"`
	RouterPreference RouterPreference `json:"router_preference"`
	TokenInChainID   ChainID          `json:"token_in_chain_id"`
	HTTPStatus       int              `json:"http_status,omitempty"`
	ErrorCode        string           `json:"error_code,omitempty"`
	Detail           string           `json:"detail,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
}

// QuoteRecord is the audit row written for every completed acquisition.
type QuoteRecord struct {
	ID               uuid.UUID        `json:"id"`
	TokenIn          string           `json:"token_in"`
	TokenInChainID   ChainID          `json:"token_in_chain_id"`
	TokenOut         string           `json:"token_out"`
	TokenOutChainID  ChainID          `json:"token_out_chain_id"`
	TradeType        TradeType        `json:"trade_type"`
	Amount           string           `json:"amount"`
	RouterPreference RouterPreference `json:"router_preference"`
	State            QuoteState       `json:"state"`
	Method           QuoteMethod      `json:"method,omitempty"`
	Quote            string           `json:"quote,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	LatencyMs        float64          `json:"latency_ms"`
	RecordedAt       time.Time        `json:"recorded_at"`
}

// NewQuoteRecord flattens a request and its result into an audit row.
func NewQuoteRecord(req QuoteRequest, res QuoteResult, at time.Time) QuoteRecord {
	rec := QuoteRecord{
		ID:               uuid.New(),
		TokenIn:          req.TokenIn,
		TokenInChainID:   req.TokenInChainID,
		TokenOut:         req.TokenOut,
		TokenOutChainID:  req.TokenOutChainID,
		TradeType:        req.TradeType,
		Amount:           req.Amount,
		RouterPreference: req.RouterPreference,
		State:            res.State(),
		LatencyMs:        res.LatencyMs,
		RecordedAt:       at.UTC(),
	}
	switch o := res.Outcome.(type) {
	case QuoteSuccess:
		rec.Method = o.Method
		rec.Quote = o.Trade.Quote
	case QuoteFailure:
		rec.ErrorMessage = o.Message
	}
	return rec
}

// Envelope is the canonical wrapper for events published on the bus.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}
