package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// PoolReader reads pool state and ERC-20 balances through eth_call.
type PoolReader struct {
	c caller
}

// NewPoolReader creates a PoolReader. A zero timeout uses DefaultCallTimeout.
func NewPoolReader(backend ethereum.ContractCaller, timeout time.Duration) *PoolReader {
	return &PoolReader{c: newCaller(backend, timeout)}
}

// SqrtPriceX96 returns the current sqrtPriceX96 from the pool's slot0.
func (r *PoolReader) SqrtPriceX96(ctx context.Context, pool domain.Pool) (*big.Int, error) {
	values, err := r.c.call(ctx, poolABI, pool.Address(), "slot0")
	if err != nil {
		return nil, fmt.Errorf("chain: slot0 %s: %w", pool.Venue.Name, err)
	}
	return bigOut(values, 0, "slot0")
}

// Reserve returns the pool's token1 holdings, i.e. token1.balanceOf(pool).
func (r *PoolReader) Reserve(ctx context.Context, pool domain.Pool) (*big.Int, error) {
	return r.TokenBalance(ctx, pool.Token1.Address, pool.Address())
}

// TokenBalance returns token.balanceOf(holder).
func (r *PoolReader) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	values, err := r.c.call(ctx, erc20ABI, token, "balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf %s: %w", holder.Hex(), err)
	}
	return bigOut(values, 0, "balanceOf")
}
