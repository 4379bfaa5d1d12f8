package model

//
// ────────────────────────────────────────────────
//   Provider payload shapes
// ────────────────────────────────────────────────
//
// Amount fields are kept as strings end to end. They are base-10 integers
// (or decimal strings for *Decimals fields) and may exceed 64 bits.

// Token describes an asset as reported inside a route.
type Token struct {
	ChainID  ChainID `json:"chainId"`
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol,omitempty"`
	Decimals string  `json:"decimals,omitempty"`
}

// Reserve is a V2 pool reserve entry.
type Reserve struct {
	Token    Token  `json:"token"`
	Quotient string `json:"quotient"`
}

// PoolHop is one pool traversed by a route.
type PoolHop struct {
	Type         string   `json:"type"` // "v2-pool" | "v3-pool"
	Address      string   `json:"address"`
	TokenIn      Token    `json:"tokenIn"`
	TokenOut     Token    `json:"tokenOut"`
	Fee          string   `json:"fee,omitempty"`
	Liquidity    string   `json:"liquidity,omitempty"`
	SqrtRatioX96 string   `json:"sqrtRatioX96,omitempty"`
	TickCurrent  string   `json:"tickCurrent,omitempty"`
	Reserve0     *Reserve `json:"reserve0,omitempty"`
	Reserve1     *Reserve `json:"reserve1,omitempty"`
	AmountIn     string   `json:"amountIn,omitempty"`
	AmountOut    string   `json:"amountOut,omitempty"`
}

// MethodParameters is the calldata needed to execute a classic trade.
type MethodParameters struct {
	Calldata string `json:"calldata"`
	Value    string `json:"value"`
	To       string `json:"to"`
}

// ClassicQuoteData is the classic quote body. The routing API returns it under
// "quote" for CLASSIC routing; the on-chain fallback engine produces it directly.
type ClassicQuoteData struct {
	MethodParameters                   *MethodParameters `json:"methodParameters,omitempty"`
	BlockNumber                        string            `json:"blockNumber,omitempty"`
	Amount                             string            `json:"amount"`
	AmountDecimals                     string            `json:"amountDecimals,omitempty"`
	Quote                              string            `json:"quote"`
	QuoteDecimals                      string            `json:"quoteDecimals,omitempty"`
	QuoteGasAdjusted                   string            `json:"quoteGasAdjusted"`
	QuoteGasAdjustedDecimals           string            `json:"quoteGasAdjustedDecimals,omitempty"`
	GasUseEstimateQuote                string            `json:"gasUseEstimateQuote,omitempty"`
	GasUseEstimateQuoteDecimals        string            `json:"gasUseEstimateQuoteDecimals,omitempty"`
	GasUseEstimate                     string            `json:"gasUseEstimate,omitempty"`
	GasUseEstimateUSD                  string            `json:"gasUseEstimateUSD,omitempty"`
	SimulationStatus                   string            `json:"simulationStatus,omitempty"`
	SimulationError                    bool              `json:"simulationError,omitempty"`
	GasPriceWei                        string            `json:"gasPriceWei,omitempty"`
	Route                              [][]PoolHop       `json:"route"`
	RouteString                        string            `json:"routeString,omitempty"`
	QuoteID                            string            `json:"quoteId,omitempty"`
	HitsCachedRoutes                   bool              `json:"hitsCachedRoutes,omitempty"`
	PortionBips                        int               `json:"portionBips,omitempty"`
	PortionAmount                      string            `json:"portionAmount,omitempty"`
	PortionAmountDecimals              string            `json:"portionAmountDecimals,omitempty"`
	QuoteGasAndPortionAdjusted         string            `json:"quoteGasAndPortionAdjusted,omitempty"`
	QuoteGasAndPortionAdjustedDecimals string            `json:"quoteGasAndPortionAdjustedDecimals,omitempty"`
	RequestID                          string            `json:"requestId,omitempty"`
	TradeType                          string            `json:"tradeType,omitempty"`
	Slippage                           float64           `json:"slippage,omitempty"`
}

// DutchInput is the input leg of a Dutch order.
type DutchInput struct {
	Token       string `json:"token"`
	StartAmount string `json:"startAmount"`
	EndAmount   string `json:"endAmount"`
}

// DutchOutput is one output leg of a Dutch order. Fee outputs go to other recipients.
type DutchOutput struct {
	Token       string `json:"token"`
	StartAmount string `json:"startAmount"`
	EndAmount   string `json:"endAmount"`
	Recipient   string `json:"recipient"`
}

// DutchOrderInfo is the signed order skeleton of a synthetic quote.
type DutchOrderInfo struct {
	ChainID                ChainID       `json:"chainId"`
	Reactor                string        `json:"reactor"`
	Swapper                string        `json:"swapper"`
	Nonce                  string        `json:"nonce"`
	Deadline               int64         `json:"deadline"`
	DecayStartTime         int64         `json:"decayStartTime"`
	DecayEndTime           int64         `json:"decayEndTime"`
	ExclusiveFiller        string        `json:"exclusiveFiller,omitempty"`
	ExclusivityOverrideBps string        `json:"exclusivityOverrideBps,omitempty"`
	Input                  DutchInput    `json:"input"`
	Outputs                []DutchOutput `json:"outputs"`
}

// DutchQuoteData is the routing API quote body for DUTCH_LIMIT routing.
type DutchQuoteData struct {
	OrderInfo           DutchOrderInfo `json:"orderInfo"`
	EncodedOrder        string         `json:"encodedOrder"`
	QuoteID             string         `json:"quoteId"`
	RequestID           string         `json:"requestId"`
	OrderHash           string         `json:"orderHash"`
	StartTimeBufferSecs int64          `json:"startTimeBufferSecs,omitempty"`
	AuctionPeriodSecs   int64          `json:"auctionPeriodSecs,omitempty"`
	DeadlineBufferSecs  int64          `json:"deadlineBufferSecs,omitempty"`
	SlippageTolerance   string         `json:"slippageTolerance,omitempty"`
}
