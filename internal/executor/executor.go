// Package executor submits profitable trades to the flash-loan settlement
// contract and reports the account balance deltas around the call.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Settlement sends executeTrade and waits for its receipt.
type Settlement interface {
	ExecuteTrade(ctx context.Context, routerPath, tokenPath [2]common.Address, fee uint32, amount *big.Int) (*types.Receipt, error)
}

// BalanceSource reads the trading account's balances.
type BalanceSource interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// ExecutionNotifier is told about every settlement attempt.
type ExecutionNotifier interface {
	NotifyExecution(ctx context.Context, exec domain.Execution) error
}

// Config configures an Executor.
type Config struct {
	Token0   domain.Token
	Token1   domain.Token
	Fee      uint32
	Account  common.Address
	Deployed bool

	Settlement Settlement // required when Deployed
	Balances   BalanceSource
	Store      domain.ExecutionStore // optional
	Notifier   ExecutionNotifier     // optional

	// Report receives the rendered balance table; nil discards it.
	Report io.Writer
	Logger *slog.Logger
}

// Executor performs one settlement call per profitable cycle. It never
// retries.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Executor.
func New(cfg Config) (*Executor, error) {
	if cfg.Deployed && cfg.Settlement == nil {
		return nil, errors.New("executor: deployed mode requires a settlement contract")
	}
	if cfg.Balances == nil {
		return nil, errors.New("executor: balance source is required")
	}
	if cfg.Report == nil {
		cfg.Report = io.Discard
	}
	return &Executor{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "executor")),
	}, nil
}

// Execute runs the trade for dir with the given input amount. In dry-run
// mode the settlement contract is never called and the before and after
// balances are the same reading. A settlement failure is returned after the
// execution has been recorded.
func (e *Executor) Execute(ctx context.Context, dir domain.Direction, amount *big.Int) (domain.Execution, error) {
	exec := domain.Execution{
		ID:          uuid.New().String(),
		BuyVenue:    dir.Buy.Name,
		SellVenue:   dir.Sell.Name,
		InputAmount: amount,
		DryRun:      !e.cfg.Deployed,
		StartedAt:   time.Now().UTC(),
	}
	routerPath := [2]common.Address{dir.Buy.Router, dir.Sell.Router}
	tokenPath := [2]common.Address{e.cfg.Token0.Address, e.cfg.Token1.Address}

	e.logger.Info("attempting arbitrage",
		slog.String("execution_id", exec.ID),
		slog.String("buy", dir.Buy.Name),
		slog.String("sell", dir.Sell.Name),
		slog.String("amount", amount.String()),
		slog.Bool("dry_run", exec.DryRun),
	)

	var err error
	exec.NativeBefore, exec.Token0Before, err = e.balances(ctx)
	if err != nil {
		return e.finish(ctx, exec, fmt.Errorf("executor: balances before: %w", err))
	}

	if !e.cfg.Deployed {
		exec.NativeAfter, exec.Token0After = exec.NativeBefore, exec.Token0Before
		exec.Status = domain.ExecutionDryRun
		return e.finish(ctx, exec, nil)
	}

	// Once submitted the trade runs to completion regardless of shutdown.
	ctx = context.WithoutCancel(ctx)
	receipt, sendErr := e.cfg.Settlement.ExecuteTrade(ctx, routerPath, tokenPath, e.cfg.Fee, amount)
	if receipt != nil {
		exec.TxHash = receipt.TxHash.Hex()
		exec.GasUsed = receipt.GasUsed
	}

	exec.NativeAfter, exec.Token0After, err = e.balances(ctx)
	if err != nil && sendErr == nil {
		sendErr = fmt.Errorf("executor: balances after: %w", err)
	}
	if sendErr != nil {
		return e.finish(ctx, exec, sendErr)
	}
	exec.Status = domain.ExecutionConfirmed
	return e.finish(ctx, exec, nil)
}

func (e *Executor) balances(ctx context.Context) (native, token0 *big.Int, err error) {
	native, err = e.cfg.Balances.NativeBalance(ctx, e.cfg.Account)
	if err != nil {
		return nil, nil, err
	}
	token0, err = e.cfg.Balances.TokenBalance(ctx, e.cfg.Token0.Address, e.cfg.Account)
	if err != nil {
		return nil, nil, err
	}
	return native, token0, nil
}

// finish stamps the outcome, reports, persists and notifies. Persistence
// and notification failures are logged only.
func (e *Executor) finish(ctx context.Context, exec domain.Execution, cause error) (domain.Execution, error) {
	now := time.Now().UTC()
	exec.CompletedAt = &now
	if cause != nil {
		exec.Status = domain.ExecutionFailed
		exec.Error = cause.Error()
	}

	table := RenderBalances(exec, e.cfg.Token0)
	fmt.Fprint(e.cfg.Report, table)

	attrs := []any{
		slog.String("execution_id", exec.ID),
		slog.String("status", string(exec.Status)),
		slog.String("tx", exec.TxHash),
		slog.String("token0_gained", exec.Token0Gained().String()),
		slog.String("native_spent", exec.NativeSpent().String()),
		slog.String("table", table),
	}
	if cause != nil {
		e.logger.Error("trade failed", append(attrs, slog.String("error", cause.Error()))...)
	} else {
		e.logger.Info("trade complete", attrs...)
	}

	// The record outlives a cancelled cycle context.
	bg := context.WithoutCancel(ctx)
	if e.cfg.Store != nil {
		if err := e.cfg.Store.Create(bg, exec); err != nil {
			e.logger.Warn("record execution failed",
				slog.String("execution_id", exec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if e.cfg.Notifier != nil {
		if err := e.cfg.Notifier.NotifyExecution(bg, exec); err != nil {
			e.logger.Warn("notify execution failed", slog.String("error", err.Error()))
		}
	}
	return exec, cause
}
