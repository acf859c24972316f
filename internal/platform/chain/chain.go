// Package chain reads the Polygon contracts the bot depends on: the USDC
// balance of the trading wallet and the Chainlink BTC/USD aggregator.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Polygon mainnet defaults.
const (
	DefaultRPCURL   = "https://polygon-rpc.com"
	USDCAddress     = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	ChainlinkBTCUSD = "0xc907E116054Ad103354f0D35050b556f00A8d2aD"
	usdcDecimals    = 6
)

const erc20ABI = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
  {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

const aggregatorABI = `[
  {"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"name":"roundId","type":"uint80"},
    {"name":"answer","type":"int256"},
    {"name":"startedAt","type":"uint256"},
    {"name":"updatedAt","type":"uint256"},
    {"name":"answeredInRound","type":"uint80"}
  ],"stateMutability":"view","type":"function"}
]`

var (
	erc20      = mustABI(erc20ABI)
	aggregator = mustABI(aggregatorABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	return c, nil
}

// call packs method with args, executes it against contract at the latest
// block and unpacks the outputs.
func call(ctx context.Context, caller ethereum.ContractCaller, contract common.Address, def abi.ABI, method string, args ...any) ([]any, error) {
	input, err := def.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := def.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

// scale converts an integer amount with the given decimals to a float.
func scale(v *big.Int, decimals uint8) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)),
	).Float64()
	return f
}
