package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Quoter simulates single-pool swaps against a venue's QuoterV2 contract.
// Quotes are eth_call simulations and never change chain state.
type Quoter struct {
	c caller
}

// NewQuoter creates a Quoter. A zero timeout uses DefaultCallTimeout.
func NewQuoter(backend ethereum.ContractCaller, timeout time.Duration) *Quoter {
	return &Quoter{c: newCaller(backend, timeout)}
}

type exactInputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactOutputParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Amount            *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// ExactOutputAmountNeeded returns how much tokenIn the quoter at address
// needs to produce exactly amountOut of tokenOut.
func (q *Quoter) ExactOutputAmountNeeded(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error) {
	params := exactOutputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Amount:            amountOut,
		Fee:               feeArg(fee),
		SqrtPriceLimitX96: new(big.Int),
	}
	values, err := q.c.call(ctx, quoterABI, quoter, "quoteExactOutputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("chain: quote exact output: %w", err)
	}
	return bigOut(values, 0, "quoteExactOutputSingle")
}

// ExactInputAmountReturned returns how much tokenOut the quoter at address
// produces for exactly amountIn of tokenIn.
func (q *Quoter) ExactInputAmountReturned(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error) {
	params := exactInputParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               feeArg(fee),
		SqrtPriceLimitX96: new(big.Int),
	}
	values, err := q.c.call(ctx, quoterABI, quoter, "quoteExactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("chain: quote exact input: %w", err)
	}
	return bigOut(values, 0, "quoteExactInputSingle")
}
