package onchain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/swap-router/pkg/cache"
	"github.com/Checker-Finance/swap-router/pkg/model"
)

// ErrUnsupportedChain is returned by ResolveRouter for chains with no RPC endpoint or contracts.
var ErrUnsupportedChain = errors.New("onchain: unsupported chain")

// Well-known Uniswap deployments. Config entries override these per chain.
var (
	defaultQuoterV2 = map[model.ChainID]string{
		1:     "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		10:    "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		137:   "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		42161: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		80001: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		8453:  "0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a",
	}
	defaultV2Router = map[model.ChainID]string{
		1:    "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		8453: "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
	}
)

// Dialer opens a contract caller for an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (ethereum.ContractCaller, error)

// Contracts are the per-chain addresses the engine probes. A zero address disables that protocol.
type Contracts struct {
	RPCURL   string
	QuoterV2 common.Address
	V2Router common.Address
}

// Options configures an Engine.
type Options struct {
	RPCURLs           map[model.ChainID]string
	QuoterV2Addresses map[model.ChainID]string
	V2RouterAddresses map[model.ChainID]string
	Timeout           time.Duration
	Dialer            Dialer
	Logger            *zap.Logger
}

// Router is the engine's RouterHandle: a chain's contracts bound to an RPC caller.
type Router struct {
	chain     model.ChainID
	contracts Contracts
	caller    ethereum.ContractCaller
}

// ChainID implements model.RouterHandle.
func (r *Router) ChainID() model.ChainID { return r.chain }

// Engine quotes single-hop swaps directly against Uniswap contracts.
type Engine struct {
	contracts map[model.ChainID]Contracts
	timeout   time.Duration
	dial      Dialer
	logger    *zap.Logger

	mu      sync.RWMutex
	routers map[model.ChainID]*Router
	dials   singleflight.Group

	decimals *cache.Cache[string]
}

// NewEngine builds an Engine. Chains without an RPC URL are unsupported.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		contracts: make(map[model.ChainID]Contracts),
		timeout:   opts.Timeout,
		dial:      opts.Dialer,
		logger:    opts.Logger,
		routers:   make(map[model.ChainID]*Router),
		decimals:  cache.New[string](24 * time.Hour),
	}
	if e.timeout <= 0 {
		e.timeout = 15 * time.Second
	}
	if e.dial == nil {
		e.dial = dialEthClient
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	for chain, url := range opts.RPCURLs {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		c := Contracts{
			RPCURL:   url,
			QuoterV2: pickAddress(opts.QuoterV2Addresses, defaultQuoterV2, chain),
			V2Router: pickAddress(opts.V2RouterAddresses, defaultV2Router, chain),
		}
		if c.QuoterV2 == (common.Address{}) && c.V2Router == (common.Address{}) {
			e.logger.Warn("onchain.chain_skipped", zap.Int64("chain_id", int64(chain)), zap.String("reason", "no contracts"))
			continue
		}
		e.contracts[chain] = c
	}
	return e
}

func dialEthClient(ctx context.Context, rpcURL string) (ethereum.ContractCaller, error) {
	return ethclient.DialContext(ctx, rpcURL)
}

func pickAddress(override, defaults map[model.ChainID]string, chain model.ChainID) common.Address {
	if v, ok := override[chain]; ok && common.IsHexAddress(v) {
		return common.HexToAddress(v)
	}
	if v, ok := defaults[chain]; ok {
		return common.HexToAddress(v)
	}
	return common.Address{}
}

// Chains lists the chains the engine can quote on.
func (e *Engine) Chains() []model.ChainID {
	out := make([]model.ChainID, 0, len(e.contracts))
	for c := range e.contracts {
		out = append(out, c)
	}
	return out
}

// ResolveRouter returns the cached router for chainID, dialing it on first use.
// Concurrent first uses of a chain share one dial; other chains are never
// blocked by it. ctx only bounds how long this caller waits.
func (e *Engine) ResolveRouter(ctx context.Context, chainID model.ChainID) (model.RouterHandle, error) {
	c, ok := e.contracts[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}

	e.mu.RLock()
	r, ok := e.routers[chainID]
	e.mu.RUnlock()
	if ok {
		return r, nil
	}

	ch := e.dials.DoChan(strconv.FormatInt(int64(chainID), 10), func() (any, error) {
		return e.dialRouter(chainID, c)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Router), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve router for chain %d: %w", chainID, ctx.Err())
	}
}

func (e *Engine) dialRouter(chainID model.ChainID, c Contracts) (*Router, error) {
	e.mu.RLock()
	r, ok := e.routers[chainID]
	e.mu.RUnlock()
	if ok {
		return r, nil
	}

	// Shared flight: bounded by the engine timeout, not by any caller.
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	caller, err := e.dial(ctx, c.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}

	r = &Router{chain: chainID, contracts: c, caller: caller}
	e.mu.Lock()
	e.routers[chainID] = r
	e.mu.Unlock()
	e.logger.Info("onchain.router_ready",
		zap.Int64("chain_id", int64(chainID)),
		zap.String("quoter_v2", c.QuoterV2.Hex()),
		zap.String("v2_router", c.V2Router.Hex()))
	return r, nil
}

// ComputeQuote probes every enabled pool type for the pair and returns the
// best single-hop quote. All probes reverting means no route exists; a
// transport failure without any revert is returned as an error.
func (e *Engine) ComputeQuote(ctx context.Context, req model.QuoteRequest, handle model.RouterHandle, params model.LocalQuoteParams) (model.LocalQuoteResult, error) {
	r, ok := handle.(*Router)
	if !ok || r == nil {
		return model.LocalQuoteResult{}, fmt.Errorf("onchain: unexpected router handle %T", handle)
	}
	if !common.IsHexAddress(req.TokenIn) || !common.IsHexAddress(req.TokenOut) {
		return model.LocalQuoteResult{}, fmt.Errorf("onchain: token addresses must be hex addresses")
	}
	amount, err := req.AmountInt()
	if err != nil {
		return model.LocalQuoteResult{}, fmt.Errorf("onchain: amount %q: %w", req.Amount, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	pair := swapPair{
		tokenIn:    common.HexToAddress(req.TokenIn),
		tokenOut:   common.HexToAddress(req.TokenOut),
		amount:     amount.ToBig(),
		exactInput: req.IsExactInput(),
	}
	probes := planProbes(r.contracts, params.Protocols)
	if len(probes) == 0 {
		return model.LocalQuoteResult{}, fmt.Errorf("onchain: no protocols enabled for chain %d", r.chain)
	}

	results := make([]probeResult, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p probe) {
			defer wg.Done()
			results[i] = p.run(ctx, r.caller, pair)
		}(i, p)
	}
	wg.Wait()

	best, reverted, transportErr := pickBest(results, pair.exactInput)
	if best == nil {
		if reverted > 0 {
			e.logger.Info("onchain.no_route",
				zap.Int64("chain_id", int64(r.chain)),
				zap.Int("reverted", reverted))
			return model.LocalQuoteResult{State: model.QuoteStateNotFound}, nil
		}
		return model.LocalQuoteResult{}, fmt.Errorf("onchain: all probes failed on chain %d: %w", r.chain, transportErr)
	}

	tokenIn := e.token(ctx, r, pair.tokenIn)
	tokenOut := e.token(ctx, r, pair.tokenOut)
	return model.LocalQuoteResult{
		State: model.QuoteStateSuccess,
		Data:  best.quoteData(req, tokenIn, tokenOut),
	}, nil
}

// token describes addr, filling decimals from the token contract when it answers.
func (e *Engine) token(ctx context.Context, r *Router, addr common.Address) model.Token {
	t := model.Token{ChainID: r.chain, Address: addr.Hex()}
	key := fmt.Sprintf("%d:%s", r.chain, strings.ToLower(addr.Hex()))
	if d, ok := e.decimals.Get(key); ok {
		t.Decimals = d
		return t
	}
	d, err := readDecimals(ctx, r.caller, addr)
	if err != nil {
		e.logger.Debug("onchain.decimals_unavailable", zap.String("token", addr.Hex()), zap.Error(err))
		return t
	}
	e.decimals.Put(key, d)
	t.Decimals = d
	return t
}
