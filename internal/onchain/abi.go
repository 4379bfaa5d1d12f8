package onchain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const quoterV2JSON = `[
  {"type":"function","name":"quoteExactInputSingle","stateMutability":"nonpayable",
   "inputs":[{"name":"params","type":"tuple","components":[
     {"name":"tokenIn","type":"address"},
     {"name":"tokenOut","type":"address"},
     {"name":"amountIn","type":"uint256"},
     {"name":"fee","type":"uint24"},
     {"name":"sqrtPriceLimitX96","type":"uint160"}]}],
   "outputs":[
     {"name":"amountOut","type":"uint256"},
     {"name":"sqrtPriceX96After","type":"uint160"},
     {"name":"initializedTicksCrossed","type":"uint32"},
     {"name":"gasEstimate","type":"uint256"}]},
  {"type":"function","name":"quoteExactOutputSingle","stateMutability":"nonpayable",
   "inputs":[{"name":"params","type":"tuple","components":[
     {"name":"tokenIn","type":"address"},
     {"name":"tokenOut","type":"address"},
     {"name":"amount","type":"uint256"},
     {"name":"fee","type":"uint24"},
     {"name":"sqrtPriceLimitX96","type":"uint160"}]}],
   "outputs":[
     {"name":"amountIn","type":"uint256"},
     {"name":"sqrtPriceX96After","type":"uint160"},
     {"name":"initializedTicksCrossed","type":"uint32"},
     {"name":"gasEstimate","type":"uint256"}]}
]`

const v2RouterJSON = `[
  {"type":"function","name":"getAmountsOut","stateMutability":"view",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"type":"function","name":"getAmountsIn","stateMutability":"view",
   "inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const erc20JSON = `[
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"string"}]}
]`

var (
	quoterV2ABI = mustParseABI("QuoterV2", quoterV2JSON)
	v2RouterABI = mustParseABI("UniswapV2Router02", v2RouterJSON)
	erc20ABI    = mustParseABI("ERC20", erc20JSON)
)

func mustParseABI(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("onchain: parse %s abi: %v", name, err))
	}
	return parsed
}
