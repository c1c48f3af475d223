// Package arbitrage decides whether a cross-venue trade should be attempted:
// direction selection from the price divergence, then a profitability check
// built from quoter simulations and account balances.
package arbitrage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/pricing"
)

// DefaultTradeFraction is the share of the sell pool's token1 reserve that
// sizes a trade.
var DefaultTradeFraction = decimal.RequireFromString("0.5")

// ReserveReader reads a pool's token1 reserve.
type ReserveReader interface {
	Reserve(ctx context.Context, pool domain.Pool) (*big.Int, error)
}

// QuoteSource simulates single-pool swaps on a venue's quoter.
type QuoteSource interface {
	ExactOutputAmountNeeded(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error)
	ExactInputAmountReturned(ctx context.Context, quoter, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (*big.Int, error)
}

// BalanceSource reads the trading account's balances.
type BalanceSource interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error)
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	VenueA        domain.Venue
	VenueB        domain.Venue
	Token0        domain.Token
	Token1        domain.Token
	Fee           uint32
	Threshold     decimal.Decimal // percent
	TradeFraction decimal.Decimal
	GasLimit      uint64
	GasPrice      *big.Int // wei
	Account       common.Address

	Reserves ReserveReader
	Quotes   QuoteSource
	Balances BalanceSource

	// Report receives the rendered profitability table; nil discards it.
	Report io.Writer
	Logger *slog.Logger
}

// Engine is the two-stage arbitrage decision engine. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TradeFraction.IsZero() {
		cfg.TradeFraction = DefaultTradeFraction
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = new(big.Int)
	}
	if cfg.Report == nil {
		cfg.Report = io.Discard
	}
	return &Engine{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "arb_engine")),
	}
}

// Select computes the divergence of quote A over quote B and runs direction
// selection against the configured threshold.
func (e *Engine) Select(a, b domain.PriceQuote) (domain.ArbitrageOpportunity, bool, error) {
	div, err := pricing.Divergence(a.Price, b.Price)
	if err != nil {
		return domain.ArbitrageOpportunity{}, false, fmt.Errorf("arbitrage: divergence %s/%s: %w", a.Venue, b.Venue, err)
	}
	opp, ok := SelectDirection(div, e.cfg.Threshold, e.cfg.VenueA, e.cfg.VenueB)
	if !ok {
		opp.DivergencePercent = div
	}
	return opp, ok, nil
}

// EstimatedGasCost returns the static gas estimate, gasLimit * gasPrice.
func (e *Engine) EstimatedGasCost() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(e.cfg.GasLimit), e.cfg.GasPrice)
}

// Assess runs the profitability stage for dir. It never returns an error:
// every failure becomes a negative verdict with Cause set.
func (e *Engine) Assess(ctx context.Context, dir domain.Direction) domain.Assessment {
	t0, t1 := e.cfg.Token0, e.cfg.Token1
	v := domain.ProfitabilityAssessment{EstimatedGasCost: e.EstimatedGasCost()}

	sellPool := domain.Pool{Venue: dir.Sell, Token0: t0, Token1: t1, Fee: e.cfg.Fee}
	reserve, err := e.cfg.Reserves.Reserve(ctx, sellPool)
	if err != nil {
		return e.reject(v, fmt.Errorf("read %s reserve: %w", dir.Sell.Name, err))
	}
	v.TradeSize = pricing.ScaleFraction(reserve, e.cfg.TradeFraction)
	if v.TradeSize.Sign() <= 0 {
		return e.reject(v, fmt.Errorf("%s has no %s reserve to size a trade", dir.Sell.Name, t1.Symbol))
	}

	v.AmountRequired, err = e.cfg.Quotes.ExactOutputAmountNeeded(ctx, dir.Buy.Quoter, t0.Address, t1.Address, e.cfg.Fee, v.TradeSize)
	if err != nil {
		return e.reject(v, fmt.Errorf("quote %s exact output: %w", dir.Buy.Name, err))
	}
	v.AmountReturned, err = e.cfg.Quotes.ExactInputAmountReturned(ctx, dir.Sell.Quoter, t1.Address, t0.Address, e.cfg.Fee, v.TradeSize)
	if err != nil {
		return e.reject(v, fmt.Errorf("quote %s exact input: %w", dir.Sell.Name, err))
	}
	v.ProjectedNetGain = new(big.Int).Sub(v.AmountReturned, v.AmountRequired)

	v.NativeBalance, err = e.cfg.Balances.NativeBalance(ctx, e.cfg.Account)
	if err != nil {
		return e.reject(v, err)
	}
	v.Token0Balance, err = e.cfg.Balances.TokenBalance(ctx, t0.Address, e.cfg.Account)
	if err != nil {
		return e.reject(v, err)
	}

	e.report(dir, v)

	if v.AmountReturned.Cmp(v.AmountRequired) < 0 {
		return e.reject(v, domain.ErrInsufficientPayback)
	}
	if new(big.Int).Sub(v.NativeBalance, v.EstimatedGasCost).Sign() < 0 {
		return e.reject(v, domain.ErrInsufficientGas)
	}

	v.IsProfitable = true
	v.InputAmount = v.AmountRequired
	return domain.Assessment{Verdict: v}
}

func (e *Engine) reject(v domain.ProfitabilityAssessment, cause error) domain.Assessment {
	v.IsProfitable = false
	v.InputAmount = nil
	e.logger.Info("trade not profitable", slog.String("cause", cause.Error()))
	return domain.Assessment{Verdict: v, Cause: fmt.Errorf("arbitrage: %w", cause)}
}

func (e *Engine) report(dir domain.Direction, v domain.ProfitabilityAssessment) {
	table := RenderAssessment(v, e.cfg.Token0, e.cfg.Token1)
	fmt.Fprint(e.cfg.Report, table)
	e.logger.Info("profitability",
		slog.String("buy", dir.Buy.Name),
		slog.String("sell", dir.Sell.Name),
		slog.String("trade_size", pricing.FormatUnits(v.TradeSize, e.cfg.Token1.Decimals)),
		slog.String("amount_required", pricing.FormatUnits(v.AmountRequired, e.cfg.Token0.Decimals)),
		slog.String("amount_returned", pricing.FormatUnits(v.AmountReturned, e.cfg.Token0.Decimals)),
		slog.String("net_gain", pricing.FormatUnits(v.ProjectedNetGain, e.cfg.Token0.Decimals)),
		slog.String("gas_cost", pricing.FormatUnits(v.EstimatedGasCost, nativeDecimals)),
		slog.String("table", table),
	)
}
