package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/arbitrage"
	"github.com/alanyoungcy/dexarb/internal/chain"
	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/gate"
	"github.com/alanyoungcy/dexarb/internal/publisher"
)

var (
	venueA = domain.Venue{Name: "Uniswap", Pool: common.HexToAddress("0xa1"), Router: common.HexToAddress("0xa3")}
	venueB = domain.Venue{Name: "Pancakeswap", Pool: common.HexToAddress("0xb1"), Router: common.HexToAddress("0xb3")}
	token0 = domain.Token{Address: common.HexToAddress("0xc1"), Symbol: "WETH", Decimals: 18}
	token1 = domain.Token{Address: common.HexToAddress("0xc2"), Symbol: "USDC", Decimals: 6}
	pools  = [2]domain.Pool{
		{Venue: venueA, Token0: token0, Token1: token1, Fee: 500},
		{Venue: venueB, Token0: token0, Token1: token1, Fee: 500},
	}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakePrices struct {
	prices map[string]decimal.Decimal
	err    error
}

func (f *fakePrices) Quote(_ context.Context, pool domain.Pool) (domain.PriceQuote, error) {
	if f.err != nil {
		return domain.PriceQuote{}, f.err
	}
	return domain.PriceQuote{Venue: pool.Venue.Name, Price: f.prices[pool.Venue.Name]}, nil
}

// fakeDecider wraps the real direction selection but scripts Stage B.
type fakeDecider struct {
	threshold  decimal.Decimal
	assessment domain.Assessment
	assessed   atomic.Int32

	// hold, when set, blocks Assess until closed.
	hold chan struct{}
	// inside tracks concurrently running cycles.
	inside, maxInside atomic.Int32
}

func (f *fakeDecider) Select(a, b domain.PriceQuote) (domain.ArbitrageOpportunity, bool, error) {
	div := a.Price.Sub(b.Price).Div(b.Price).Mul(decimal.NewFromInt(100)).Round(2)
	opp, ok := arbitrage.SelectDirection(div, f.threshold, venueA, venueB)
	opp.DivergencePercent = div
	return opp, ok, nil
}

func (f *fakeDecider) Assess(context.Context, domain.Direction) domain.Assessment {
	n := f.inside.Add(1)
	defer f.inside.Add(-1)
	for {
		m := f.maxInside.Load()
		if n <= m || f.maxInside.CompareAndSwap(m, n) {
			break
		}
	}
	f.assessed.Add(1)
	if f.hold != nil {
		<-f.hold
	}
	return f.assessment
}

type fakeTrader struct {
	calls atomic.Int32
	err   error
	dir   domain.Direction
	mu    sync.Mutex
}

func (f *fakeTrader) Execute(_ context.Context, dir domain.Direction, amount *big.Int) (domain.Execution, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.dir = dir
	f.mu.Unlock()
	status := domain.ExecutionDryRun
	if f.err != nil {
		status = domain.ExecutionFailed
	}
	return domain.Execution{InputAmount: amount, DryRun: true, Status: status}, f.err
}

func profitable() domain.Assessment {
	return domain.Assessment{Verdict: domain.ProfitabilityAssessment{IsProfitable: true, InputAmount: big.NewInt(100)}}
}

func divergentPrices() *fakePrices {
	return &fakePrices{prices: map[string]decimal.Decimal{
		"Uniswap":     decimal.RequireFromString("2005.00"),
		"Pancakeswap": decimal.RequireFromString("2000.00"),
	}}
}

func newOrchestrator(prices PriceSource, dec Decider, trader Trader, policy gate.Policy, pub Publisher) *Orchestrator {
	return NewOrchestrator(Config{
		Pools:     pools,
		Publisher: pub,
		Prices:    prices,
		Engine:    dec,
		Trader:    trader,
		Policy:    policy,
		Logger:    quietLogger(),
	})
}

func obs(venue string, block uint64) domain.SwapObservation {
	return domain.SwapObservation{Venue: venue, BlockNumber: block, SqrtPriceX96: big.NewInt(1), Amount0: big.NewInt(1), Amount1: big.NewInt(-1)}
}

func TestRunCycle_ScenarioBuysOnA(t *testing.T) {
	dec := &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable()}
	trader := &fakeTrader{}
	o := newOrchestrator(divergentPrices(), dec, trader, gate.PolicyDrop, nil)

	outcome, err := o.RunCycle(context.Background(), obs("Uniswap", 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, outcome)
	assert.Equal(t, int32(1), trader.calls.Load())
	assert.Equal(t, "Uniswap", trader.dir.Buy.Name)
	assert.Equal(t, "Pancakeswap", trader.dir.Sell.Name)
}

func TestRunCycle_NoOpportunitySkipsStageB(t *testing.T) {
	dec := &fakeDecider{threshold: decimal.RequireFromString("1"), assessment: profitable()}
	trader := &fakeTrader{}
	o := newOrchestrator(divergentPrices(), dec, trader, gate.PolicyDrop, nil)

	outcome, err := o.RunCycle(context.Background(), obs("Uniswap", 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOpportunity, outcome)
	assert.Equal(t, int32(0), dec.assessed.Load())
	assert.Equal(t, int32(0), trader.calls.Load())
}

func TestRunCycle_UnprofitableDoesNotTrade(t *testing.T) {
	dec := &fakeDecider{
		threshold:  decimal.RequireFromString("0.1"),
		assessment: domain.Assessment{Cause: domain.ErrInsufficientPayback},
	}
	trader := &fakeTrader{}
	o := newOrchestrator(divergentPrices(), dec, trader, gate.PolicyDrop, nil)

	outcome, err := o.RunCycle(context.Background(), obs("Uniswap", 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnprofitable, outcome)
	assert.Equal(t, int32(0), trader.calls.Load())
}

func TestHandleSwap_GateReleasedOnEveryPath(t *testing.T) {
	tests := []struct {
		name   string
		prices *fakePrices
		dec    *fakeDecider
		trader *fakeTrader
	}{
		{"no opportunity", divergentPrices(), &fakeDecider{threshold: decimal.NewFromInt(5)}, &fakeTrader{}},
		{"unprofitable", divergentPrices(), &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: domain.Assessment{Cause: domain.ErrInsufficientGas}}, &fakeTrader{}},
		{"quote error", &fakePrices{err: errors.New("rpc timeout")}, &fakeDecider{}, &fakeTrader{}},
		{"settlement error", divergentPrices(), &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable()}, &fakeTrader{err: domain.ErrSettlementReverted}},
		{"success", divergentPrices(), &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable()}, &fakeTrader{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(tt.prices, tt.dec, tt.trader, gate.PolicyDrop, nil)
			o.HandleSwap(context.Background(), obs("Uniswap", 1))
			o.Wait()
			assert.False(t, o.Busy())
		})
	}
}

type panickingPrices struct{}

func (panickingPrices) Quote(context.Context, domain.Pool) (domain.PriceQuote, error) {
	panic("nil pointer in collaborator")
}

func TestHandleSwap_PanicReleasesGate(t *testing.T) {
	o := newOrchestrator(panickingPrices{}, &fakeDecider{}, &fakeTrader{}, gate.PolicyDrop, nil)
	o.HandleSwap(context.Background(), obs("Uniswap", 1))
	o.Wait()
	assert.False(t, o.Busy())
}

func TestHandleSwap_DropWhileBusy(t *testing.T) {
	hold := make(chan struct{})
	dec := &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable(), hold: hold}
	trader := &fakeTrader{}
	o := newOrchestrator(divergentPrices(), dec, trader, gate.PolicyDrop, nil)

	o.HandleSwap(context.Background(), obs("Uniswap", 1))
	require.Eventually(t, func() bool { return dec.assessed.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, o.Busy())

	o.HandleSwap(context.Background(), obs("Pancakeswap", 2))
	o.HandleSwap(context.Background(), obs("Uniswap", 3))

	close(hold)
	o.Wait()
	assert.Equal(t, int32(1), dec.assessed.Load(), "busy-time events must not start cycles")
	assert.Equal(t, int32(1), trader.calls.Load())
	assert.False(t, o.Busy())
}

func TestHandleSwap_CoalesceRunsOneFollowUp(t *testing.T) {
	hold := make(chan struct{})
	dec := &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable(), hold: hold}
	o := newOrchestrator(divergentPrices(), dec, &fakeTrader{}, gate.PolicyCoalesce, nil)

	o.HandleSwap(context.Background(), obs("Uniswap", 1))
	require.Eventually(t, func() bool { return dec.assessed.Load() == 1 }, time.Second, time.Millisecond)

	for i := uint64(2); i < 6; i++ {
		o.HandleSwap(context.Background(), obs("Pancakeswap", i))
	}
	close(hold)
	require.Eventually(t, func() bool { return dec.assessed.Load() == 2 }, time.Second, time.Millisecond)
	o.Wait()

	assert.Equal(t, int32(2), dec.assessed.Load())
	assert.Equal(t, int32(1), dec.maxInside.Load())
	assert.False(t, o.Busy())
}

func TestHandleSwap_ConcurrentEventsNeverOverlap(t *testing.T) {
	dec := &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable()}
	o := newOrchestrator(divergentPrices(), dec, &fakeTrader{}, gate.PolicyDrop, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			venue := "Uniswap"
			if i%2 == 1 {
				venue = "Pancakeswap"
			}
			o.HandleSwap(context.Background(), obs(venue, uint64(i)))
		}()
	}
	wg.Wait()
	o.Wait()

	assert.Equal(t, int32(1), dec.maxInside.Load())
	assert.GreaterOrEqual(t, dec.assessed.Load(), int32(1))
	assert.False(t, o.Busy())
}

func TestHandleSwap_UnreachableSinkDoesNotBlockCycle(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	pub := publisher.New(publisher.Config{SinkURL: url, QueueSize: 1, Timeout: 50 * time.Millisecond, Logger: quietLogger()})
	trader := &fakeTrader{}
	dec := &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable()}
	o := newOrchestrator(divergentPrices(), dec, trader, gate.PolicyDrop, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	o.HandleSwap(ctx, obs("Uniswap", 1))
	o.Wait()
	assert.Equal(t, int32(1), trader.calls.Load())
}

// scriptedSwaps delivers observations per venue, then either blocks until
// cancelled or fails.
type scriptedSwaps struct {
	events map[string][]domain.SwapObservation
	fail   map[string]error
}

func (s *scriptedSwaps) Subscribe(ctx context.Context, pool domain.Pool, handle chain.SwapHandler) error {
	for _, ev := range s.events[pool.Venue.Name] {
		handle(ctx, ev)
	}
	if err := s.fail[pool.Venue.Name]; err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func TestRun_SubscriptionLossIsFatal(t *testing.T) {
	swaps := &scriptedSwaps{fail: map[string]error{
		"Pancakeswap": domain.ErrSubscriptionLost,
	}}
	o := NewOrchestrator(Config{
		Pools:  pools,
		Swaps:  swaps,
		Prices: divergentPrices(),
		Engine: &fakeDecider{threshold: decimal.NewFromInt(5)},
		Trader: &fakeTrader{},
		Logger: quietLogger(),
	})

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSubscriptionLost)
		assert.Contains(t, err.Error(), "Pancakeswap")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after a lost subscription")
	}
}

func TestRun_CleanShutdown(t *testing.T) {
	swaps := &scriptedSwaps{events: map[string][]domain.SwapObservation{
		"Uniswap": {obs("Uniswap", 1)},
	}}
	dec := &fakeDecider{threshold: decimal.RequireFromString("0.1"), assessment: profitable()}
	trader := &fakeTrader{}
	o := NewOrchestrator(Config{
		Pools:  pools,
		Swaps:  swaps,
		Prices: divergentPrices(),
		Engine: dec,
		Trader: trader,
		Logger: quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return trader.calls.Load() == 1 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, o.Busy())
}
