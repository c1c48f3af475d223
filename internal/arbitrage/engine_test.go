package arbitrage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

var (
	uniswap     = domain.Venue{Name: "Uniswap", Pool: common.HexToAddress("0xa1"), Quoter: common.HexToAddress("0xa2"), Router: common.HexToAddress("0xa3")}
	pancakeswap = domain.Venue{Name: "Pancakeswap", Pool: common.HexToAddress("0xb1"), Quoter: common.HexToAddress("0xb2"), Router: common.HexToAddress("0xb3")}
	weth        = domain.Token{Address: common.HexToAddress("0xc1"), Symbol: "WETH", Decimals: 18}
	usdc        = domain.Token{Address: common.HexToAddress("0xc2"), Symbol: "USDC", Decimals: 6}
	trader      = common.HexToAddress("0xd1")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSelectDirection_StrictlyInsideBandIsNoOpportunity(t *testing.T) {
	threshold := d("0.5")
	for _, div := range []string{"0", "0.49", "-0.49", "0.4999", "-0.01"} {
		_, ok := SelectDirection(d(div), threshold, uniswap, pancakeswap)
		assert.False(t, ok, "divergence %s", div)
	}
}

func TestSelectDirection_BoundsAreInclusive(t *testing.T) {
	threshold := d("0.5")

	opp, ok := SelectDirection(d("0.5"), threshold, uniswap, pancakeswap)
	require.True(t, ok)
	assert.Equal(t, "Uniswap", opp.Direction.Buy.Name)
	assert.Equal(t, "Pancakeswap", opp.Direction.Sell.Name)

	opp, ok = SelectDirection(d("-0.5"), threshold, uniswap, pancakeswap)
	require.True(t, ok)
	assert.Equal(t, "Pancakeswap", opp.Direction.Buy.Name)
	assert.Equal(t, "Uniswap", opp.Direction.Sell.Name)
}

func TestEngine_SelectScenario(t *testing.T) {
	e := newTestEngine(&fakeChain{})

	opp, ok, err := e.Select(
		domain.PriceQuote{Venue: "Uniswap", Price: d("2005.00")},
		domain.PriceQuote{Venue: "Pancakeswap", Price: d("2000.00")},
	)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0.25", opp.DivergencePercent.String())
	assert.Equal(t, "Uniswap", opp.Direction.Buy.Name)
	assert.Equal(t, "Pancakeswap", opp.Direction.Sell.Name)
}

func TestEngine_SelectZeroReferencePrice(t *testing.T) {
	e := newTestEngine(&fakeChain{})

	_, ok, err := e.Select(
		domain.PriceQuote{Venue: "Uniswap", Price: d("1")},
		domain.PriceQuote{Venue: "Pancakeswap", Price: decimal.Zero},
	)
	assert.Error(t, err)
	assert.False(t, ok)
}

// fakeChain implements ReserveReader, QuoteSource and BalanceSource.
type fakeChain struct {
	reserve     *big.Int
	required    *big.Int
	returned    *big.Int
	native      *big.Int
	token0      *big.Int
	quoteErr    error
	reservePool domain.Pool

	outQuoter, inQuoter common.Address
	outAmount, inAmount *big.Int
}

func (f *fakeChain) Reserve(_ context.Context, pool domain.Pool) (*big.Int, error) {
	f.reservePool = pool
	return f.reserve, nil
}

func (f *fakeChain) ExactOutputAmountNeeded(_ context.Context, quoter, _, _ common.Address, _ uint32, amountOut *big.Int) (*big.Int, error) {
	f.outQuoter, f.outAmount = quoter, amountOut
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.required, nil
}

func (f *fakeChain) ExactInputAmountReturned(_ context.Context, quoter, _, _ common.Address, _ uint32, amountIn *big.Int) (*big.Int, error) {
	f.inQuoter, f.inAmount = quoter, amountIn
	return f.returned, nil
}

func (f *fakeChain) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return f.native, nil
}

func (f *fakeChain) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	return f.token0, nil
}

func newTestEngine(fc *fakeChain) *Engine {
	return NewEngine(EngineConfig{
		VenueA:    uniswap,
		VenueB:    pancakeswap,
		Token0:    weth,
		Token1:    usdc,
		Fee:       500,
		Threshold: d("0.1"),
		GasLimit:  400_000,
		GasPrice:  big.NewInt(1_000_000_000),
		Account:   trader,
		Reserves:  fc,
		Quotes:    fc,
		Balances:  fc,
		Logger:    slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
}

func eth(s string) *big.Int {
	return d(s).Shift(18).BigInt()
}

func TestEngine_AssessProfitable(t *testing.T) {
	fc := &fakeChain{
		reserve:  big.NewInt(1_000_001),
		required: eth("1.00"),
		returned: eth("1.02"),
		native:   eth("1"),
		token0:   eth("3"),
	}
	e := newTestEngine(fc)
	dir := domain.Direction{Buy: uniswap, Sell: pancakeswap}

	a := e.Assess(context.Background(), dir)
	require.NoError(t, a.Cause)
	assert.True(t, a.Profitable())
	assert.Equal(t, eth("1.00").String(), a.Verdict.InputAmount.String())
	assert.Equal(t, eth("0.02").String(), a.Verdict.ProjectedNetGain.String())
	assert.Equal(t, "400000000000000", a.Verdict.EstimatedGasCost.String())

	assert.Equal(t, pancakeswap.Pool, fc.reservePool.Address(), "trade size comes from the sell pool")
	assert.Equal(t, "500001", fc.outAmount.String())
	assert.Equal(t, fc.outAmount, fc.inAmount)
	assert.Equal(t, uniswap.Quoter, fc.outQuoter)
	assert.Equal(t, pancakeswap.Quoter, fc.inQuoter)
}

func TestEngine_AssessInsufficientPayback(t *testing.T) {
	fc := &fakeChain{
		reserve:  big.NewInt(1_000_000),
		required: eth("1.02"),
		returned: eth("1.00"),
		native:   eth("100"),
		token0:   eth("0"),
	}
	a := newTestEngine(fc).Assess(context.Background(), domain.Direction{Buy: uniswap, Sell: pancakeswap})

	assert.False(t, a.Profitable())
	assert.False(t, a.Verdict.IsProfitable)
	assert.ErrorIs(t, a.Cause, domain.ErrInsufficientPayback)
	assert.Nil(t, a.Verdict.InputAmount)
}

func TestEngine_AssessInsufficientGas(t *testing.T) {
	fc := &fakeChain{
		reserve:  big.NewInt(1_000_000),
		required: eth("1.00"),
		returned: eth("1.50"),
		native:   big.NewInt(1),
		token0:   eth("0"),
	}
	a := newTestEngine(fc).Assess(context.Background(), domain.Direction{Buy: uniswap, Sell: pancakeswap})

	assert.False(t, a.Profitable())
	assert.ErrorIs(t, a.Cause, domain.ErrInsufficientGas)
}

func TestEngine_AssessQuoteFailureIsNegativeVerdict(t *testing.T) {
	boom := errors.New("execution reverted: SPL")
	fc := &fakeChain{reserve: big.NewInt(10), quoteErr: boom}

	a := newTestEngine(fc).Assess(context.Background(), domain.Direction{Buy: pancakeswap, Sell: uniswap})
	assert.False(t, a.Profitable())
	assert.ErrorIs(t, a.Cause, boom)
}

func TestEngine_AssessEmptyReserve(t *testing.T) {
	fc := &fakeChain{reserve: big.NewInt(0)}

	a := newTestEngine(fc).Assess(context.Background(), domain.Direction{Buy: uniswap, Sell: pancakeswap})
	assert.False(t, a.Profitable())
	assert.Error(t, a.Cause)
}

func TestEngine_ReportTable(t *testing.T) {
	var buf bytes.Buffer
	fc := &fakeChain{
		reserve:  big.NewInt(2_000_000),
		required: eth("1"),
		returned: eth("1.5"),
		native:   eth("2"),
		token0:   eth("1"),
	}
	e := newTestEngine(fc)
	e.cfg.Report = &buf

	e.Assess(context.Background(), domain.Direction{Buy: uniswap, Sell: pancakeswap})
	out := buf.String()
	assert.Contains(t, out, "WETH required")
	assert.Contains(t, out, "WETH gained/lost")
	assert.Contains(t, out, "0.5")
}
