package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInvalidRequest is wrapped by every QuoteRequest validation failure.
var ErrInvalidRequest = errors.New("invalid quote request")

// ChainID is an EVM chain identifier (1 = Ethereum mainnet, 137 = Polygon, ...).
type ChainID int64

// TradeType is the direction of a swap: which side of the amount is fixed.
type TradeType string

const (
	TradeTypeExactInput  TradeType = "EXACT_INPUT"
	TradeTypeExactOutput TradeType = "EXACT_OUTPUT"
)

// RouterPreference tells the quoter where the caller would like the quote to come from.
type RouterPreference string

const (
	// RouterPreferenceAPI asks for routing API classic quotes only (prefer-remote).
	RouterPreferenceAPI RouterPreference = "api"
	// RouterPreferencePrice is an internal price-only probe; never a synthetic quote.
	RouterPreferencePrice RouterPreference = "price"
	// RouterPreferenceAuto lets the routing API pick between classic and synthetic.
	RouterPreferenceAuto RouterPreference = "auto"
	// RouterPreferenceSynthetic forces synthetic (off-chain filled) quotes where supported.
	RouterPreferenceSynthetic RouterPreference = "uniswapx"
)

// ParseRouterPreference maps user input onto a RouterPreference. Empty input means auto.
func ParseRouterPreference(s string) (RouterPreference, error) {
	switch p := RouterPreference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return RouterPreferenceAuto, nil
	case RouterPreferenceAPI, RouterPreferencePrice, RouterPreferenceAuto, RouterPreferenceSynthetic:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown router preference %q", ErrInvalidRequest, s)
	}
}

// Protocol is a liquidity protocol the classic router may route through.
type Protocol string

const (
	ProtocolV2    Protocol = "V2"
	ProtocolV3    Protocol = "V3"
	ProtocolMixed Protocol = "MIXED"
)

// AllProtocols returns a fresh {V2, V3, MIXED} slice.
func AllProtocols() []Protocol {
	return []Protocol{ProtocolV2, ProtocolV3, ProtocolMixed}
}

// QuoteRequest is a normalized request for a single quote acquisition.
// It is built once per attempt and treated as immutable afterwards.
type QuoteRequest struct {
	TokenIn              string           `json:"tokenInAddress"`
	TokenInChainID       ChainID          `json:"tokenInChainId"`
	TokenOut             string           `json:"tokenOutAddress"`
	TokenOutChainID      ChainID          `json:"tokenOutChainId"`
	TradeType            TradeType        `json:"tradeType"`
	Amount               string           `json:"amount"`
	Account              string           `json:"account,omitempty"`
	RouterPreference     RouterPreference `json:"routerPreference"`
	SendPortionEnabled   bool             `json:"sendPortionEnabled,omitempty"`
	ForceSyntheticQuotes bool             `json:"forceSyntheticQuotes,omitempty"`
}

// IsExactInput reports whether the amount is the input side of the trade.
func (r QuoteRequest) IsExactInput() bool {
	return r.TradeType != TradeTypeExactOutput
}

// IsPriceQuote reports whether this request is a price-only probe.
func (r QuoteRequest) IsPriceQuote() bool {
	return r.RouterPreference == RouterPreferencePrice
}

// IsAutoRouter reports whether routing is left to the default/auto mode.
func (r QuoteRequest) IsAutoRouter() bool {
	return r.RouterPreference == RouterPreferenceAuto || r.RouterPreference == ""
}

// Validate checks the request invariants before any network call is made.
func (r QuoteRequest) Validate() error {
	if !common.IsHexAddress(r.TokenIn) {
		return fmt.Errorf("%w: tokenIn %q is not an address", ErrInvalidRequest, r.TokenIn)
	}
	if !common.IsHexAddress(r.TokenOut) {
		return fmt.Errorf("%w: tokenOut %q is not an address", ErrInvalidRequest, r.TokenOut)
	}
	if r.TokenInChainID <= 0 || r.TokenOutChainID <= 0 {
		return fmt.Errorf("%w: chain ids must be positive", ErrInvalidRequest)
	}
	if r.TokenInChainID == r.TokenOutChainID &&
		common.HexToAddress(r.TokenIn) == common.HexToAddress(r.TokenOut) {
		return fmt.Errorf("%w: tokenIn and tokenOut are the same asset", ErrInvalidRequest)
	}
	switch r.TradeType {
	case TradeTypeExactInput, TradeTypeExactOutput:
	default:
		return fmt.Errorf("%w: unknown trade type %q", ErrInvalidRequest, r.TradeType)
	}
	amount, err := uint256.FromDecimal(r.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount %q: %v", ErrInvalidRequest, r.Amount, err)
	}
	if amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if r.Account != "" && !common.IsHexAddress(r.Account) {
		return fmt.Errorf("%w: account %q is not an address", ErrInvalidRequest, r.Account)
	}
	if _, err := ParseRouterPreference(string(r.RouterPreference)); err != nil {
		return err
	}
	return nil
}

// AmountInt returns the amount as a 256-bit integer. Call Validate first.
func (r QuoteRequest) AmountInt() (*uint256.Int, error) {
	return uint256.FromDecimal(r.Amount)
}

// CacheKey is a canonical identity for the request, used for bounded result retention.
func (r QuoteRequest) CacheKey() string {
	return strings.ToLower(fmt.Sprintf("quote:%d:%s:%d:%s:%s:%s:%s:%s:%t:%t",
		r.TokenInChainID, r.TokenIn,
		r.TokenOutChainID, r.TokenOut,
		r.TradeType, r.Amount, r.Account, r.RouterPreference,
		r.SendPortionEnabled, r.ForceSyntheticQuotes,
	))
}
