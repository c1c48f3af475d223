// Package pipeline wires the two venue subscriptions to the decision cycle
// and enforces that only one cycle is ever in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dexarb/internal/chain"
	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/gate"
	"github.com/alanyoungcy/dexarb/internal/metrics"
)

// SwapSource streams Swap observations for one pool until ctx ends or the
// subscription is lost.
type SwapSource interface {
	Subscribe(ctx context.Context, pool domain.Pool, handle chain.SwapHandler) error
}

// Publisher ships observations to the trade-log sink without blocking.
type Publisher interface {
	Publish(obs domain.SwapObservation)
	Run(ctx context.Context) error
}

// PriceSource quotes a pool's current price.
type PriceSource interface {
	Quote(ctx context.Context, pool domain.Pool) (domain.PriceQuote, error)
}

// Decider is the two-stage arbitrage decision engine.
type Decider interface {
	Select(a, b domain.PriceQuote) (domain.ArbitrageOpportunity, bool, error)
	Assess(ctx context.Context, dir domain.Direction) domain.Assessment
}

// Trader submits a profitable trade.
type Trader interface {
	Execute(ctx context.Context, dir domain.Direction, amount *big.Int) (domain.Execution, error)
}

// Outcome is how a decision cycle ended.
type Outcome string

const (
	OutcomeNoOpportunity Outcome = "no_opportunity"
	OutcomeUnprofitable  Outcome = "unprofitable"
	OutcomeExecuted      Outcome = "executed"
	OutcomeDryRun        Outcome = "dry_run"
	OutcomeError         Outcome = "error"
)

// Config configures an Orchestrator.
type Config struct {
	Pools     [2]domain.Pool // venue A first
	Swaps     SwapSource
	Publisher Publisher // optional
	Prices    PriceSource
	Engine    Decider
	Trader    Trader
	Guard     *gate.Guard // nil means a local gate without a lease
	Policy    gate.Policy
	Logger    *slog.Logger
}

// Orchestrator owns the pools, the gate and the decision collaborators for
// the life of the process.
type Orchestrator struct {
	pools   [2]domain.Pool
	swaps   SwapSource
	pub     Publisher
	prices  PriceSource
	engine  Decider
	trader  Trader
	guard   *gate.Guard
	policy  gate.Policy
	mailbox gate.Mailbox
	cycles  sync.WaitGroup
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Guard == nil {
		cfg.Guard = gate.NewGuard(&gate.Gate{}, nil)
	}
	if cfg.Policy == "" {
		cfg.Policy = gate.PolicyDrop
	}
	return &Orchestrator{
		pools:  cfg.Pools,
		swaps:  cfg.Swaps,
		pub:    cfg.Publisher,
		prices: cfg.Prices,
		engine: cfg.Engine,
		trader: cfg.Trader,
		guard:  cfg.Guard,
		policy: cfg.Policy,
		logger: cfg.Logger.With(slog.String("component", "orchestrator")),
	}
}

// Run subscribes to both pools and the publisher worker. Losing either
// subscription is fatal: the group is cancelled and the error returned.
// Run waits for an in-flight cycle before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	a, b := o.pools[0], o.pools[1]
	o.logger.Info("arbitrage bot starting",
		slog.String("pair", a.Pair()),
		slog.String(a.Venue.Name+"_pool", a.Address().Hex()),
		slog.String(b.Venue.Name+"_pool", b.Address().Hex()),
		slog.String("busy_policy", string(o.policy)),
	)

	g, gctx := errgroup.WithContext(ctx)

	if o.pub != nil {
		g.Go(func() error {
			return o.pub.Run(gctx)
		})
	}
	for _, pool := range o.pools {
		g.Go(func() error {
			if err := o.swaps.Subscribe(gctx, pool, o.HandleSwap); err != nil {
				return fmt.Errorf("pipeline: %s subscription: %w", pool.Venue.Name, err)
			}
			return nil
		})
	}
	o.logger.Info("waiting for swap events")

	err := g.Wait()
	o.Wait()
	if err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// Wait blocks until no decision cycle is running.
func (o *Orchestrator) Wait() {
	o.cycles.Wait()
}

// Busy reports whether a decision cycle holds the gate.
func (o *Orchestrator) Busy() bool {
	return o.guard.Gate().Busy()
}

// HandleSwap is the per-event entry point. It publishes the observation,
// then starts a decision cycle if the gate is free. Busy-time events are
// handled by the configured policy. It never blocks on the cycle.
func (o *Orchestrator) HandleSwap(ctx context.Context, obs domain.SwapObservation) {
	metrics.SwapsObserved.WithLabelValues(obs.Venue).Inc()
	o.logger.Info("swap detected",
		slog.String("venue", obs.Venue),
		slog.Uint64("block", obs.BlockNumber),
		slog.String("tx", obs.TxHash.Hex()),
	)
	if o.pub != nil {
		o.pub.Publish(obs)
	}

	release, err := o.guard.Enter(ctx)
	if err != nil {
		o.skip(obs, err)
		return
	}
	o.start(ctx, obs, release)
}

func (o *Orchestrator) skip(obs domain.SwapObservation, err error) {
	if !errors.Is(err, domain.ErrGateBusy) {
		o.logger.Warn("could not enter gate", slog.String("error", err.Error()))
	}
	if o.policy == gate.PolicyCoalesce {
		o.mailbox.Put(obs)
		metrics.SwapsSkipped.WithLabelValues("coalesced").Inc()
		o.logger.Debug("cycle in flight, observation coalesced", slog.String("venue", obs.Venue))
		return
	}
	metrics.SwapsSkipped.WithLabelValues("dropped").Inc()
	o.logger.Debug("cycle in flight, observation dropped", slog.String("venue", obs.Venue))
}

func (o *Orchestrator) start(ctx context.Context, obs domain.SwapObservation, release func()) {
	o.cycles.Add(1)
	go func() {
		defer o.cycles.Done()
		o.guarded(ctx, obs, release)
	}()
}

// guarded runs one cycle while holding the gate and releases it on every
// exit path, including a panic in a collaborator.
func (o *Orchestrator) guarded(ctx context.Context, obs domain.SwapObservation, release func()) {
	began := time.Now()
	metrics.GateBusy.Set(1)
	outcome := OutcomeError

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("decision cycle panicked", slog.Any("panic", r))
			outcome = OutcomeError
		}
		release()
		metrics.GateBusy.Set(0)
		metrics.CycleDuration.Observe(time.Since(began).Seconds())
		metrics.Cycles.WithLabelValues(string(outcome)).Inc()
		o.followUp(ctx)
	}()

	// An in-flight cycle is not interrupted by shutdown.
	var err error
	outcome, err = o.RunCycle(context.WithoutCancel(ctx), obs)
	if err != nil {
		o.logger.Error("decision cycle failed",
			slog.String("trigger", obs.Venue),
			slog.String("error", err.Error()),
		)
	}
	o.logger.Info("decision cycle finished",
		slog.String("outcome", string(outcome)),
		slog.Duration("elapsed", time.Since(began)),
	)
}

// followUp starts the single coalesced cycle, if one is pending.
func (o *Orchestrator) followUp(ctx context.Context) {
	if o.policy != gate.PolicyCoalesce || ctx.Err() != nil {
		return
	}
	next, ok := o.mailbox.Take()
	if !ok {
		return
	}
	release, err := o.guard.Enter(ctx)
	if err != nil {
		// A fresh event already started a cycle; it reads newer state.
		return
	}
	o.logger.Info("running coalesced cycle", slog.String("venue", next.Venue), slog.Uint64("block", next.BlockNumber))
	o.start(ctx, next, release)
}

// RunCycle runs Stage A, Stage B and, if profitable, the trade. The caller
// must hold the gate.
func (o *Orchestrator) RunCycle(ctx context.Context, obs domain.SwapObservation) (Outcome, error) {
	a, b := o.pools[0], o.pools[1]

	qa, err := o.prices.Quote(ctx, a)
	if err != nil {
		return OutcomeError, err
	}
	qb, err := o.prices.Quote(ctx, b)
	if err != nil {
		return OutcomeError, err
	}

	opp, ok, err := o.engine.Select(qa, qb)
	if err != nil {
		return OutcomeError, err
	}
	div, _ := opp.DivergencePercent.Float64()
	metrics.Divergence.Set(div)
	o.logger.Info("prices compared",
		slog.String("pair", a.Pair()),
		slog.String(qa.Venue, qa.Price.String()),
		slog.String(qb.Venue, qb.Price.String()),
		slog.String("divergence_pct", opp.DivergencePercent.String()),
		slog.Uint64("trigger_block", obs.BlockNumber),
	)
	if !ok {
		o.logger.Info("no arbitrage currently available")
		return OutcomeNoOpportunity, nil
	}
	o.logger.Info("potential arbitrage direction",
		slog.String("buy", opp.Direction.Buy.Name),
		slog.String("sell", opp.Direction.Sell.Name),
	)

	assessment := o.engine.Assess(ctx, opp.Direction)
	if !assessment.Profitable() {
		attrs := []any{}
		if assessment.Cause != nil {
			attrs = append(attrs, slog.String("cause", assessment.Cause.Error()))
		}
		o.logger.Info("no arbitrage currently available", attrs...)
		return OutcomeUnprofitable, nil
	}

	exec, err := o.trader.Execute(ctx, opp.Direction, assessment.Verdict.InputAmount)
	if exec.Status != "" {
		metrics.Executions.WithLabelValues(string(exec.Status)).Inc()
	}
	if err != nil {
		return OutcomeError, fmt.Errorf("pipeline: execute: %w", err)
	}
	if exec.DryRun {
		return OutcomeDryRun, nil
	}
	return OutcomeExecuted, nil
}
