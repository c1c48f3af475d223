package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceReader reads the trading account's native and ERC-20 balances.
type BalanceReader struct {
	native NativeBalanceReader
	tokens *PoolReader
}

// NewBalanceReader creates a BalanceReader.
func NewBalanceReader(native NativeBalanceReader, tokens *PoolReader) *BalanceReader {
	return &BalanceReader{native: native, tokens: tokens}
}

// NativeBalance returns the account's native balance in wei at the latest block.
func (b *BalanceReader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := b.native.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: native balance %s: %w", account.Hex(), err)
	}
	return bal, nil
}

// TokenBalance returns token.balanceOf(account).
func (b *BalanceReader) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return b.tokens.TokenBalance(ctx, token, account)
}
