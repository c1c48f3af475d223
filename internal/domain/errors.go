package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrLockHeld            = errors.New("lock already held")
	ErrGateBusy            = errors.New("execution gate busy")
	ErrSubscriptionLost    = errors.New("swap subscription lost")
	ErrInsufficientPayback = errors.New("not enough to pay back flash loan")
	ErrInsufficientGas     = errors.New("not enough native balance for gas")
	ErrSettlementReverted  = errors.New("settlement transaction reverted")
	ErrInvalidTradeLog     = errors.New("invalid trade log")
)
