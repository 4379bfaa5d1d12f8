package model

import (
	"encoding/json"
	"fmt"
)

// QuoteState is the tag of a QuoteOutcome.
type QuoteState string

const (
	QuoteStateSuccess  QuoteState = "SUCCESS"
	QuoteStateNotFound QuoteState = "NOT_FOUND"
	QuoteStateError    QuoteState = "ERROR"
)

// QuoteMethod attributes a successful quote to the subsystem that produced it.
type QuoteMethod string

const (
	QuoteMethodRoutingAPI         QuoteMethod = "ROUTING_API"
	QuoteMethodClientSideFallback QuoteMethod = "CLIENT_SIDE_FALLBACK"
)

// FailureKind classifies a terminal QuoteFailure.
type FailureKind string

const (
	FailureKindClientSide FailureKind = "CLIENT_SIDE_FAILURE"
	FailureKindCancelled  FailureKind = "CANCELLED"
)

// QuoteOutcome is the closed set of acquisition results:
// QuoteSuccess, QuoteNotFound and QuoteFailure. Switch on the concrete type.
type QuoteOutcome interface {
	State() QuoteState
	quoteOutcome()
}

// QuoteSuccess carries a normalized trade and the method that produced it.
type QuoteSuccess struct {
	Trade  Trade
	Method QuoteMethod
}

// QuoteNotFound means no route exists for the pair and amount.
type QuoteNotFound struct{}

// QuoteFailure means neither the routing API nor the fallback produced a quote.
type QuoteFailure struct {
	Kind    FailureKind
	Message string
}

func (QuoteSuccess) State() QuoteState  { return QuoteStateSuccess }
func (QuoteNotFound) State() QuoteState { return QuoteStateNotFound }
func (QuoteFailure) State() QuoteState  { return QuoteStateError }

func (QuoteSuccess) quoteOutcome()  {}
func (QuoteNotFound) quoteOutcome() {}
func (QuoteFailure) quoteOutcome()  {}

// QuoteResult is what an acquisition returns: the outcome plus elapsed milliseconds.
type QuoteResult struct {
	Outcome   QuoteOutcome
	LatencyMs float64
}

// State returns the outcome tag.
func (r QuoteResult) State() QuoteState {
	if r.Outcome == nil {
		return QuoteStateError
	}
	return r.Outcome.State()
}

type quoteErrorJSON struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

type quoteResultJSON struct {
	State     QuoteState      `json:"state"`
	Method    QuoteMethod     `json:"method,omitempty"`
	Trade     *Trade          `json:"trade,omitempty"`
	Error     *quoteErrorJSON `json:"error,omitempty"`
	LatencyMs float64         `json:"latencyMs"`
}

// MarshalJSON flattens the outcome into a tagged object.
func (r QuoteResult) MarshalJSON() ([]byte, error) {
	out := quoteResultJSON{LatencyMs: r.LatencyMs}
	switch o := r.Outcome.(type) {
	case QuoteSuccess:
		out.State = QuoteStateSuccess
		out.Method = o.Method
		trade := o.Trade
		out.Trade = &trade
	case QuoteNotFound:
		out.State = QuoteStateNotFound
	case QuoteFailure:
		out.State = QuoteStateError
		out.Error = &quoteErrorJSON{Kind: o.Kind, Message: o.Message}
	default:
		return nil, fmt.Errorf("marshal quote result: unknown outcome %T", r.Outcome)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a result written by MarshalJSON.
func (r *QuoteResult) UnmarshalJSON(data []byte) error {
	var in quoteResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.LatencyMs = in.LatencyMs
	switch in.State {
	case QuoteStateSuccess:
		if in.Trade == nil {
			return fmt.Errorf("unmarshal quote result: success without trade")
		}
		r.Outcome = QuoteSuccess{Trade: *in.Trade, Method: in.Method}
	case QuoteStateNotFound:
		r.Outcome = QuoteNotFound{}
	case QuoteStateError:
		f := QuoteFailure{Kind: FailureKindClientSide}
		if in.Error != nil {
			f.Kind = in.Error.Kind
			f.Message = in.Error.Message
		}
		r.Outcome = f
	default:
		return fmt.Errorf("unmarshal quote result: unknown state %q", in.State)
	}
	return nil
}
