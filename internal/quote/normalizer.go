package quote

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/swap-router/internal/routingapi"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// ErrUnsupportedPayload is returned for payload types the normalizer does not know.
var ErrUnsupportedPayload = errors.New("unsupported quote payload")

// priceScale is the number of fractional digits kept in ExecutionPrice.
const priceScale = 18

// Normalizer converts provider payloads into the canonical model.Trade.
// Amounts are validated but copied verbatim so no precision is lost.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize accepts a *routingapi.QuoteResponse or a *model.ClassicQuoteData.
func (n *Normalizer) Normalize(payload any, req model.QuoteRequest, method model.QuoteMethod) (model.Trade, error) {
	switch p := payload.(type) {
	case *routingapi.QuoteResponse:
		if p == nil {
			return model.Trade{}, fmt.Errorf("%w: nil routing api response", ErrUnsupportedPayload)
		}
		return n.fromResponse(p, req)
	case *model.ClassicQuoteData:
		if p == nil {
			return model.Trade{}, fmt.Errorf("%w: nil classic quote", ErrUnsupportedPayload)
		}
		return n.fromClassic(p, req)
	default:
		return model.Trade{}, fmt.Errorf("%w: %T (method %s)", ErrUnsupportedPayload, payload, method)
	}
}

func (n *Normalizer) fromResponse(resp *routingapi.QuoteResponse, req model.QuoteRequest) (model.Trade, error) {
	switch resp.Routing {
	case model.RoutingTypeClassic:
		c, err := resp.ClassicQuote()
		if err != nil {
			return model.Trade{}, err
		}
		t, err := n.fromClassic(c, req)
		if err != nil {
			return model.Trade{}, err
		}
		if t.RequestID == "" {
			t.RequestID = resp.RequestID
		}
		return t, nil
	case model.RoutingTypeDutchLimit:
		d, err := resp.DutchQuote()
		if err != nil {
			return model.Trade{}, err
		}
		alt, _ := resp.ClassicAlternative()
		t, err := n.fromDutch(d, alt, req)
		if err != nil {
			return model.Trade{}, err
		}
		if t.RequestID == "" {
			t.RequestID = resp.RequestID
		}
		return t, nil
	default:
		return model.Trade{}, fmt.Errorf("%w: routing type %q", ErrUnsupportedPayload, resp.Routing)
	}
}

func (n *Normalizer) fromClassic(q *model.ClassicQuoteData, req model.QuoteRequest) (model.Trade, error) {
	amount, err := parseAmount("amount", q.Amount, true)
	if err != nil {
		return model.Trade{}, err
	}
	quoted, err := parseAmount("quote", q.Quote, false)
	if err != nil {
		return model.Trade{}, err
	}
	for field, v := range map[string]string{
		"quoteGasAdjusted":           q.QuoteGasAdjusted,
		"quoteGasAndPortionAdjusted": q.QuoteGasAndPortionAdjusted,
		"portionAmount":              q.PortionAmount,
	} {
		if v == "" {
			continue
		}
		if _, err := parseSigned(field, v); err != nil {
			return model.Trade{}, err
		}
	}

	tokenIn, tokenOut := routeTokens(q.Route, req)
	t := model.Trade{
		Kind:                       model.TradeKindClassic,
		TradeType:                  req.TradeType,
		TokenIn:                    tokenIn,
		TokenOut:                   tokenOut,
		Amount:                     q.Amount,
		Quote:                      q.Quote,
		QuoteGasAdjusted:           q.QuoteGasAdjusted,
		QuoteGasAndPortionAdjusted: q.QuoteGasAndPortionAdjusted,
		GasUseEstimate:             q.GasUseEstimate,
		GasUseEstimateQuote:        q.GasUseEstimateQuote,
		GasUseEstimateUSD:          q.GasUseEstimateUSD,
		GasPriceWei:                q.GasPriceWei,
		BlockNumber:                q.BlockNumber,
		PortionBips:                q.PortionBips,
		PortionAmount:              q.PortionAmount,
		Routes:                     q.Route,
		RouteString:                q.RouteString,
		MethodParameters:           q.MethodParameters,
		RequestID:                  q.RequestID,
		QuoteID:                    q.QuoteID,
	}
	setSides(&t, req, amount, quoted)
	return t, nil
}

func (n *Normalizer) fromDutch(d *model.DutchQuoteData, alt *model.ClassicQuoteData, req model.QuoteRequest) (model.Trade, error) {
	info := d.OrderInfo
	out, ok := swapperOutput(info)
	if !ok {
		return model.Trade{}, fmt.Errorf("dutch order has no output for swapper %s", info.Swapper)
	}
	in, err := parseAmount("input.startAmount", info.Input.StartAmount, true)
	if err != nil {
		return model.Trade{}, err
	}
	outAmt, err := parseAmount("output.startAmount", out.StartAmount, true)
	if err != nil {
		return model.Trade{}, err
	}

	chain := info.ChainID
	if chain == 0 {
		chain = req.TokenInChainID
	}
	tokenIn := model.Token{ChainID: chain, Address: info.Input.Token}
	tokenOut := model.Token{ChainID: chain, Address: out.Token}

	t := model.Trade{
		Kind:      model.TradeKindSynthetic,
		TradeType: req.TradeType,
		Order: &model.SyntheticOrder{
			EncodedOrder:       d.EncodedOrder,
			OrderHash:          d.OrderHash,
			Reactor:            info.Reactor,
			Swapper:            info.Swapper,
			Nonce:              info.Nonce,
			Deadline:           info.Deadline,
			DecayStartTime:     info.DecayStartTime,
			DecayEndTime:       info.DecayEndTime,
			AuctionPeriodSecs:  d.AuctionPeriodSecs,
			DeadlineBufferSecs: d.DeadlineBufferSecs,
			SlippageTolerance:  d.SlippageTolerance,
		},
		RequestID: d.RequestID,
		QuoteID:   d.QuoteID,
	}

	if alt != nil {
		t.ClassicGasUseEstimateUSD = alt.GasUseEstimateUSD
		altIn, altOut := routeTokens(alt.Route, req)
		if strings.EqualFold(altIn.Address, tokenIn.Address) {
			tokenIn.Symbol, tokenIn.Decimals = altIn.Symbol, altIn.Decimals
		}
		if strings.EqualFold(altOut.Address, tokenOut.Address) {
			tokenOut.Symbol, tokenOut.Decimals = altOut.Symbol, altOut.Decimals
		}
	}
	t.TokenIn, t.TokenOut = tokenIn, tokenOut

	if req.IsExactInput() {
		t.Amount, t.Quote = info.Input.StartAmount, out.StartAmount
		setSides(&t, req, in, outAmt)
	} else {
		t.Amount, t.Quote = out.StartAmount, info.Input.StartAmount
		setSides(&t, req, outAmt, in)
	}
	return t, nil
}

// setSides fills input/output amounts from the trade direction and computes the execution price.
func setSides(t *model.Trade, req model.QuoteRequest, amount, quoted decimal.Decimal) {
	inAmt, outAmt := amount, quoted
	t.InputAmount, t.OutputAmount = t.Amount, t.Quote
	if !req.IsExactInput() {
		inAmt, outAmt = quoted, amount
		t.InputAmount, t.OutputAmount = t.Quote, t.Amount
	}
	t.ExecutionPrice = executionPrice(inAmt, outAmt, t.TokenIn.Decimals, t.TokenOut.Decimals)
}

// executionPrice is output per unit of input in whole-token units. Empty when
// either side's decimals are unknown or the input is zero.
func executionPrice(in, out decimal.Decimal, inDecimals, outDecimals string) string {
	di, err := strconv.ParseInt(inDecimals, 10, 32)
	if err != nil {
		return ""
	}
	do, err := strconv.ParseInt(outDecimals, 10, 32)
	if err != nil {
		return ""
	}
	if in.IsZero() {
		return ""
	}
	inUnits := in.Shift(-int32(di))
	outUnits := out.Shift(-int32(do))
	return outUnits.DivRound(inUnits, priceScale).String()
}

// parseSigned checks that v is a decimal number. Gas- and portion-adjusted
// figures go negative when gas costs exceed the output of a small trade.
func parseSigned(field, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q: %w", field, v, err)
	}
	return d, nil
}

// parseAmount checks that v is a non-negative base-10 integer.
func parseAmount(field, v string, positive bool) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is missing", field)
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return decimal.Decimal{}, fmt.Errorf("%s %q is not a base-10 integer", field, v)
		}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q: %w", field, v, err)
	}
	if positive && !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%s must be positive, got %s", field, v)
	}
	return d, nil
}

// routeTokens takes the trade's input and output tokens from the first route,
// falling back to the request addresses when the payload has no route.
func routeTokens(routes [][]model.PoolHop, req model.QuoteRequest) (model.Token, model.Token) {
	in := model.Token{ChainID: req.TokenInChainID, Address: req.TokenIn}
	out := model.Token{ChainID: req.TokenOutChainID, Address: req.TokenOut}
	if len(routes) == 0 || len(routes[0]) == 0 {
		return in, out
	}
	first, last := routes[0][0], routes[0][len(routes[0])-1]
	return first.TokenIn, last.TokenOut
}

func swapperOutput(info model.DutchOrderInfo) (model.DutchOutput, bool) {
	for _, o := range info.Outputs {
		if strings.EqualFold(o.Recipient, info.Swapper) {
			return o, true
		}
	}
	if len(info.Outputs) > 0 && info.Swapper == "" {
		return info.Outputs[0], true
	}
	return model.DutchOutput{}, false
}
