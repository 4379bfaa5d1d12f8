package onchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/swap-router/internal/metrics"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// feeTiers are the V3 pool fees probed, in hundredths of a bip.
var feeTiers = []int64{100, 500, 3000, 10000}

// v2SwapGas is the flat gas estimate reported for V2 swaps; the router does not quote gas.
const v2SwapGas = 135_000

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Amount            *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type swapPair struct {
	tokenIn    common.Address
	tokenOut   common.Address
	amount     *big.Int
	exactInput bool
}

type probe struct {
	protocol model.Protocol
	target   common.Address
	fee      int64 // V3 only
}

type probeResult struct {
	probe    probe
	pair     swapPair
	quote    *big.Int
	gas      *big.Int
	reverted bool
	err      error
}

// planProbes expands the requested protocols into concrete contract calls.
// MIXED enables both pool types since every probe is single-hop.
func planProbes(c Contracts, protocols []model.Protocol) []probe {
	if len(protocols) == 0 {
		protocols = model.AllProtocols()
	}
	var v2, v3 bool
	for _, p := range protocols {
		switch p {
		case model.ProtocolV2:
			v2 = true
		case model.ProtocolV3:
			v3 = true
		case model.ProtocolMixed:
			v2, v3 = true, true
		}
	}

	var out []probe
	if v3 && c.QuoterV2 != (common.Address{}) {
		for _, fee := range feeTiers {
			out = append(out, probe{protocol: model.ProtocolV3, target: c.QuoterV2, fee: fee})
		}
	}
	if v2 && c.V2Router != (common.Address{}) {
		out = append(out, probe{protocol: model.ProtocolV2, target: c.V2Router})
	}
	return out
}

func (p probe) run(ctx context.Context, caller ethereum.ContractCaller, pair swapPair) probeResult {
	res := probeResult{probe: p, pair: pair}
	var err error
	if p.protocol == model.ProtocolV2 {
		res.quote, err = p.callV2(ctx, caller, pair)
		res.gas = big.NewInt(v2SwapGas)
	} else {
		res.quote, res.gas, err = p.callV3(ctx, caller, pair)
	}

	label := strings.ToLower(string(p.protocol))
	switch {
	case err == nil && res.quote.Sign() > 0:
		metrics.IncOnchainProbe(label, "ok")
	case err == nil, isRevert(err):
		res.reverted = true
		metrics.IncOnchainProbe(label, "revert")
	default:
		res.err = err
		metrics.IncOnchainProbe(label, "error")
	}
	return res
}

func (p probe) callV3(ctx context.Context, caller ethereum.ContractCaller, pair swapPair) (*big.Int, *big.Int, error) {
	var (
		method string
		data   []byte
		err    error
	)
	if pair.exactInput {
		method = "quoteExactInputSingle"
		data, err = quoterV2ABI.Pack(method, exactInputSingleParams{
			TokenIn:           pair.tokenIn,
			TokenOut:          pair.tokenOut,
			AmountIn:          pair.amount,
			Fee:               big.NewInt(p.fee),
			SqrtPriceLimitX96: big.NewInt(0),
		})
	} else {
		method = "quoteExactOutputSingle"
		data, err = quoterV2ABI.Pack(method, exactOutputSingleParams{
			TokenIn:           pair.tokenIn,
			TokenOut:          pair.tokenOut,
			Amount:            pair.amount,
			Fee:               big.NewInt(p.fee),
			SqrtPriceLimitX96: big.NewInt(0),
		})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := call(ctx, caller, p.target, data)
	if err != nil {
		return nil, nil, err
	}
	vals, err := quoterV2ABI.Unpack(method, out)
	if err != nil || len(vals) < 4 {
		return nil, nil, fmt.Errorf("decode %s: %w", method, err)
	}
	quote, ok1 := vals[0].(*big.Int)
	gas, ok2 := vals[3].(*big.Int)
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("decode %s: unexpected output types", method)
	}
	return quote, gas, nil
}

func (p probe) callV2(ctx context.Context, caller ethereum.ContractCaller, pair swapPair) (*big.Int, error) {
	method := "getAmountsOut"
	if !pair.exactInput {
		method = "getAmountsIn"
	}
	data, err := v2RouterABI.Pack(method, pair.amount, []common.Address{pair.tokenIn, pair.tokenOut})
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := call(ctx, caller, p.target, data)
	if err != nil {
		return nil, err
	}
	vals, err := v2RouterABI.Unpack(method, out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok || len(amounts) != 2 {
		return nil, fmt.Errorf("decode %s: unexpected amounts", method)
	}
	if pair.exactInput {
		return amounts[1], nil
	}
	return amounts[0], nil
}

// errEmptyReturn marks a call to an address with no code, which behaves like a revert.
var errEmptyReturn = errors.New("execution reverted: empty return data")

func call(ctx context.Context, caller ethereum.ContractCaller, to common.Address, data []byte) ([]byte, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errEmptyReturn
	}
	return out, nil
}

func isRevert(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errEmptyReturn) {
		return true
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

// pickBest returns the most favourable successful probe: the largest output
// for exact input, the smallest required input for exact output.
func pickBest(results []probeResult, exactInput bool) (*probeResult, int, error) {
	var (
		best     *probeResult
		reverted int
		errs     []error
	)
	for i := range results {
		r := &results[i]
		switch {
		case r.err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", r.probe.label(), r.err))
			continue
		case r.reverted:
			reverted++
			continue
		}
		if best == nil {
			best = r
			continue
		}
		cmp := r.quote.Cmp(best.quote)
		if (exactInput && cmp > 0) || (!exactInput && cmp < 0) {
			best = r
		}
	}
	return best, reverted, errors.Join(errs...)
}

func (p probe) label() string {
	if p.protocol == model.ProtocolV3 {
		return fmt.Sprintf("V3/%d", p.fee)
	}
	return string(p.protocol)
}

// quoteData renders the winning probe as the classic quote payload.
func (r *probeResult) quoteData(req model.QuoteRequest, tokenIn, tokenOut model.Token) *model.ClassicQuoteData {
	amountIn, amountOut := r.pair.amount, r.quote
	if !r.pair.exactInput {
		amountIn, amountOut = r.quote, r.pair.amount
	}

	hop := model.PoolHop{
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
	}
	var routeString string
	if r.probe.protocol == model.ProtocolV3 {
		hop.Type = "v3-pool"
		hop.Fee = strconv.FormatInt(r.probe.fee, 10)
		pct := decimal.New(r.probe.fee, -4).String()
		routeString = fmt.Sprintf("[V3] 100.00%% = %s -- %s%% --> %s", tokenIn.Address, pct, tokenOut.Address)
	} else {
		hop.Type = "v2-pool"
		routeString = fmt.Sprintf("[V2] 100.00%% = %s --> %s", tokenIn.Address, tokenOut.Address)
	}

	return &model.ClassicQuoteData{
		Amount:           req.Amount,
		Quote:            r.quote.String(),
		QuoteGasAdjusted: r.quote.String(),
		GasUseEstimate:   r.gas.String(),
		Route:            [][]model.PoolHop{{hop}},
		RouteString:      routeString,
		TradeType:        string(req.TradeType),
	}
}

func readDecimals(ctx context.Context, caller ethereum.ContractCaller, token common.Address) (string, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return "", err
	}
	out, err := call(ctx, caller, token, data)
	if err != nil {
		return "", err
	}
	vals, err := erc20ABI.Unpack("decimals", out)
	if err != nil || len(vals) != 1 {
		return "", fmt.Errorf("decode decimals: %w", err)
	}
	d, ok := vals[0].(uint8)
	if !ok {
		return "", fmt.Errorf("decode decimals: unexpected type %T", vals[0])
	}
	return strconv.Itoa(int(d)), nil
}
