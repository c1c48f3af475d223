package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ABIs for the contracts the bot talks to. Only the members that are
// actually called or decoded are included.

const poolABIJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"internalType":"address","name":"sender","type":"address"},
		{"indexed":true,"internalType":"address","name":"recipient","type":"address"},
		{"indexed":false,"internalType":"int256","name":"amount0","type":"int256"},
		{"indexed":false,"internalType":"int256","name":"amount1","type":"int256"},
		{"indexed":false,"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
		{"indexed":false,"internalType":"uint128","name":"liquidity","type":"uint128"},
		{"indexed":false,"internalType":"int24","name":"tick","type":"int24"}],
	 "name":"Swap","type":"event"},
	{"inputs":[],"name":"slot0","outputs":[
		{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
		{"internalType":"int24","name":"tick","type":"int24"},
		{"internalType":"uint16","name":"observationIndex","type":"uint16"},
		{"internalType":"uint16","name":"observationCardinality","type":"uint16"},
		{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
		{"internalType":"uint8","name":"feeProtocol","type":"uint8"},
		{"internalType":"bool","name":"unlocked","type":"bool"}],
	 "stateMutability":"view","type":"function"}
]`

const quoterABIJSON = `[
	{"inputs":[{"components":[
		{"internalType":"address","name":"tokenIn","type":"address"},
		{"internalType":"address","name":"tokenOut","type":"address"},
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"uint24","name":"fee","type":"uint24"},
		{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
		"internalType":"struct IQuoterV2.QuoteExactInputSingleParams","name":"params","type":"tuple"}],
	 "name":"quoteExactInputSingle","outputs":[
		{"internalType":"uint256","name":"amountOut","type":"uint256"},
		{"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
		{"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
		{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
	 "stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"components":[
		{"internalType":"address","name":"tokenIn","type":"address"},
		{"internalType":"address","name":"tokenOut","type":"address"},
		{"internalType":"uint256","name":"amount","type":"uint256"},
		{"internalType":"uint24","name":"fee","type":"uint24"},
		{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
		"internalType":"struct IQuoterV2.QuoteExactOutputSingleParams","name":"params","type":"tuple"}],
	 "name":"quoteExactOutputSingle","outputs":[
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
		{"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
		{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
	 "stateMutability":"nonpayable","type":"function"}
]`

const erc20ABIJSON = `[
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf",
	 "outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],
	 "stateMutability":"view","type":"function"}
]`

const factoryABIJSON = `[
	{"inputs":[
		{"internalType":"address","name":"tokenA","type":"address"},
		{"internalType":"address","name":"tokenB","type":"address"},
		{"internalType":"uint24","name":"fee","type":"uint24"}],
	 "name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],
	 "stateMutability":"view","type":"function"}
]`

const settlementABIJSON = `[
	{"inputs":[
		{"internalType":"address[]","name":"_routerPath","type":"address[]"},
		{"internalType":"address[]","name":"_tokenPath","type":"address[]"},
		{"internalType":"uint24","name":"_fee","type":"uint24"},
		{"internalType":"uint256","name":"_flashAmount","type":"uint256"}],
	 "name":"executeTrade","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	poolABI       = mustParseABI("pool", poolABIJSON)
	quoterABI     = mustParseABI("quoter", quoterABIJSON)
	erc20ABI      = mustParseABI("erc20", erc20ABIJSON)
	factoryABI    = mustParseABI("factory", factoryABIJSON)
	settlementABI = mustParseABI("settlement", settlementABIJSON)
)

// SwapTopic is the topic0 of the Uniswap V3 Swap event.
var SwapTopic = poolABI.Events["Swap"].ID

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: parse %s abi: %v", name, err))
	}
	return parsed
}
