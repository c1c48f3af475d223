// Package chain wraps the go-ethereum client calls the bot depends on: pool
// and token reads, quoter simulations, Swap log subscriptions and the
// settlement transaction.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultCallTimeout bounds a single eth_call when no timeout is configured.
const DefaultCallTimeout = 10 * time.Second

// Dial connects to a node over its websocket (or HTTP) endpoint and checks
// that it serves the expected chain.
func Dial(ctx context.Context, url string, chainID int64) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial node: %w", err)
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: read chain id: %w", err)
	}
	if chainID != 0 && id.Int64() != chainID {
		client.Close()
		return nil, fmt.Errorf("chain: node serves chain %d, want %d", id.Int64(), chainID)
	}
	return client, nil
}

// NativeBalanceReader reads an account's native balance.
type NativeBalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// caller performs packed read-only contract calls with a per-call timeout.
type caller struct {
	backend ethereum.ContractCaller
	timeout time.Duration
}

func newCaller(backend ethereum.ContractCaller, timeout time.Duration) caller {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return caller{backend: backend, timeout: timeout}
}

// call packs method+args, executes eth_call against the latest block and
// unpacks the outputs.
func (c caller) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.backend.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bigOut(values []any, i int, method string) (*big.Int, error) {
	n, ok := values[i].(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%s: output %d is %T, want *big.Int", method, i, values[i])
	}
	return n, nil
}

// feeArg converts a pool fee to the *big.Int form abi expects for uint24.
func feeArg(fee uint32) *big.Int {
	return new(big.Int).SetUint64(uint64(fee))
}
