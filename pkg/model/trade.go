package model

// TradeKind distinguishes an on-chain pool trade from a synthetic order.
type TradeKind string

const (
	TradeKindClassic   TradeKind = "CLASSIC"
	TradeKindSynthetic TradeKind = "SYNTHETIC"
)

// SyntheticOrder carries the order fields a caller needs to sign and submit a synthetic trade.
type SyntheticOrder struct {
	EncodedOrder       string `json:"encodedOrder"`
	OrderHash          string `json:"orderHash"`
	Reactor            string `json:"reactor"`
	Swapper            string `json:"swapper"`
	Nonce              string `json:"nonce"`
	Deadline           int64  `json:"deadline"`
	DecayStartTime     int64  `json:"decayStartTime"`
	DecayEndTime       int64  `json:"decayEndTime"`
	AuctionPeriodSecs  int64  `json:"auctionPeriodSecs,omitempty"`
	DeadlineBufferSecs int64  `json:"deadlineBufferSecs,omitempty"`
	SlippageTolerance  string `json:"slippageTolerance,omitempty"`
}

// Trade is the canonical quote representation handed to callers, whichever
// provider produced it. All amounts are decimal strings copied from the payload.
type Trade struct {
	Kind      TradeKind `json:"kind"`
	TradeType TradeType `json:"tradeType"`
	TokenIn   Token     `json:"tokenIn"`
	TokenOut  Token     `json:"tokenOut"`

	// Amount is the fixed side of the trade; Quote is the side the provider computed.
	Amount                     string `json:"amount"`
	Quote                      string `json:"quote"`
	QuoteGasAdjusted           string `json:"quoteGasAdjusted,omitempty"`
	QuoteGasAndPortionAdjusted string `json:"quoteGasAndPortionAdjusted,omitempty"`
	InputAmount                string `json:"inputAmount"`
	OutputAmount               string `json:"outputAmount"`
	ExecutionPrice             string `json:"executionPrice,omitempty"`

	GasUseEstimate      string `json:"gasUseEstimate,omitempty"`
	GasUseEstimateQuote string `json:"gasUseEstimateQuote,omitempty"`
	GasUseEstimateUSD   string `json:"gasUseEstimateUSD,omitempty"`
	GasPriceWei         string `json:"gasPriceWei,omitempty"`
	BlockNumber         string `json:"blockNumber,omitempty"`

	PortionBips   int    `json:"portionBips,omitempty"`
	PortionAmount string `json:"portionAmount,omitempty"`

	Routes           [][]PoolHop       `json:"routes,omitempty"`
	RouteString      string            `json:"routeString,omitempty"`
	MethodParameters *MethodParameters `json:"methodParameters,omitempty"`
	Order            *SyntheticOrder   `json:"order,omitempty"`

	// ClassicGasUseEstimateUSD is the gas cost of the classic alternative to a synthetic trade.
	ClassicGasUseEstimateUSD string `json:"classicGasUseEstimateUSD,omitempty"`

	RequestID string `json:"requestId,omitempty"`
	QuoteID   string `json:"quoteId,omitempty"`
}
