package domain

import (
	"math/big"
	"time"
)

// ExecutionStatus is the outcome of a settlement attempt.
type ExecutionStatus string

const (
	ExecutionConfirmed ExecutionStatus = "confirmed"
	ExecutionDryRun    ExecutionStatus = "dry_run"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Execution records one call (or skipped call) to the settlement contract and
// the account balances around it.
type Execution struct {
	ID           string
	BuyVenue     string
	SellVenue    string
	InputAmount  *big.Int
	DryRun       bool
	TxHash       string
	Status       ExecutionStatus
	NativeBefore *big.Int
	NativeAfter  *big.Int
	Token0Before *big.Int
	Token0After  *big.Int
	GasUsed      uint64
	Error        string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// NativeSpent returns before - after for the native balance.
func (e Execution) NativeSpent() *big.Int {
	return diff(e.NativeBefore, e.NativeAfter)
}

// Token0Gained returns after - before for the token0 balance.
func (e Execution) Token0Gained() *big.Int {
	return diff(e.Token0After, e.Token0Before)
}

func diff(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}
