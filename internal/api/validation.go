package api

import (
	"fmt"
	"strings"

	"github.com/Checker-Finance/swap-router/pkg/model"
)

// Validate checks presence of required fields. Semantic checks happen in
// model.QuoteRequest.Validate after conversion.
func (r QuoteCreateRequest) Validate() error {
	if strings.TrimSpace(r.TokenInAddress) == "" {
		return fmt.Errorf("tokenInAddress is required")
	}
	if strings.TrimSpace(r.TokenOutAddress) == "" {
		return fmt.Errorf("tokenOutAddress is required")
	}
	if r.TokenInChainID <= 0 {
		return fmt.Errorf("tokenInChainId is required")
	}
	if strings.TrimSpace(r.Amount) == "" {
		return fmt.Errorf("amount is required")
	}
	switch model.TradeType(strings.ToUpper(strings.TrimSpace(r.TradeType))) {
	case model.TradeTypeExactInput, model.TradeTypeExactOutput:
	default:
		return fmt.Errorf("tradeType must be 'EXACT_INPUT' or 'EXACT_OUTPUT'")
	}
	return nil
}

// toQuoteRequest converts the API payload into a canonical QuoteRequest.
// A missing tokenOutChainId means a same-chain swap.
func toQuoteRequest(r QuoteCreateRequest) (model.QuoteRequest, error) {
	pref, err := model.ParseRouterPreference(r.RouterPreference)
	if err != nil {
		return model.QuoteRequest{}, err
	}
	outChain := r.TokenOutChainID
	if outChain == 0 {
		outChain = r.TokenInChainID
	}
	req := model.QuoteRequest{
		TokenIn:              strings.TrimSpace(r.TokenInAddress),
		TokenInChainID:       model.ChainID(r.TokenInChainID),
		TokenOut:             strings.TrimSpace(r.TokenOutAddress),
		TokenOutChainID:      model.ChainID(outChain),
		TradeType:            model.TradeType(strings.ToUpper(strings.TrimSpace(r.TradeType))),
		Amount:               strings.TrimSpace(r.Amount),
		Account:              strings.TrimSpace(r.Account),
		RouterPreference:     pref,
		SendPortionEnabled:   r.SendPortionEnabled,
		ForceSyntheticQuotes: r.ForceSyntheticQuotes,
	}
	if err := req.Validate(); err != nil {
		return model.QuoteRequest{}, err
	}
	return req, nil
}
