package api

// QuoteCreateRequest is the payload of POST /api/v1/quote.
type QuoteCreateRequest struct {
	TokenInAddress       string `json:"tokenInAddress" example:"0x9c3C9283D3e44854697Cd22D3Faa240Cfb032889"`
	TokenInChainID       int64  `json:"tokenInChainId" example:"80001"`
	TokenOutAddress      string `json:"tokenOutAddress" example:"0x0FA8781a83E46826621b3BC094Ea2A0212e71B23"`
	TokenOutChainID      int64  `json:"tokenOutChainId" example:"80001"`
	TradeType            string `json:"tradeType" example:"EXACT_INPUT"`
	Amount               string `json:"amount" example:"1000000000000000000"`
	Account              string `json:"account,omitempty"`
	RouterPreference     string `json:"routerPreference,omitempty" example:"auto"`
	SendPortionEnabled   bool   `json:"sendPortionEnabled,omitempty"`
	ForceSyntheticQuotes bool   `json:"forceSyntheticQuotes,omitempty"`
}
