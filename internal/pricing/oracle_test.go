package pricing

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

func TestPriceFromSqrtX96_ExactRatios(t *testing.T) {
	tests := []struct {
		name string
		sqrt *big.Int
		want string
	}{
		{"unit", new(big.Int).Set(q96), "1"},
		{"double sqrt", new(big.Int).Lsh(big.NewInt(1), 97), "4"},
		{"one and a half", new(big.Int).Mul(big.NewInt(3), new(big.Int).Lsh(big.NewInt(1), 95)), "2.25"},
		{"half", new(big.Int).Lsh(big.NewInt(1), 95), "0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceFromSqrtX96(tt.sqrt, 6)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestPriceFromSqrtX96_Deterministic(t *testing.T) {
	sqrt, ok := new(big.Int).SetString("3543191142285914205922034323214", 10)
	require.True(t, ok)

	first := PriceFromSqrtX96(sqrt, 8)
	for i := 0; i < 10; i++ {
		assert.True(t, first.Equal(PriceFromSqrtX96(new(big.Int).Set(sqrt), 8)))
	}
}

func TestPriceFromSqrtX96_RoundsToPrecision(t *testing.T) {
	// (1/3 * 2^96)^2 / 2^192 is slightly below 1/9.
	sqrt := new(big.Int).Div(q96, big.NewInt(3))
	got := PriceFromSqrtX96(sqrt, 4)
	assert.Equal(t, "0.1111", got.String())
}

func TestPriceFromSqrtX96_NonPositive(t *testing.T) {
	assert.True(t, PriceFromSqrtX96(nil, 6).IsZero())
	assert.True(t, PriceFromSqrtX96(big.NewInt(0), 6).IsZero())
}

func TestDivergence(t *testing.T) {
	got, err := Divergence(decimal.RequireFromString("2005.00"), decimal.RequireFromString("2000.00"))
	require.NoError(t, err)
	assert.Equal(t, "0.25", got.String())

	got, err = Divergence(decimal.RequireFromString("2000.00"), decimal.RequireFromString("2005.00"))
	require.NoError(t, err)
	assert.Equal(t, "-0.25", got.String())

	_, err = Divergence(decimal.NewFromInt(1), decimal.Zero)
	assert.Error(t, err)
}

type stubPoolReader struct {
	sqrt *big.Int
	err  error
	hits int
}

func (s *stubPoolReader) SqrtPriceX96(context.Context, domain.Pool) (*big.Int, error) {
	s.hits++
	return s.sqrt, s.err
}

func TestOracle_QuoteReadsEveryTime(t *testing.T) {
	reader := &stubPoolReader{sqrt: new(big.Int).Lsh(big.NewInt(1), 97)}
	oracle := NewOracle(reader, 2)
	pool := domain.Pool{Venue: domain.Venue{Name: "Uniswap"}}

	q, err := oracle.Quote(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, "Uniswap", q.Venue)
	assert.Equal(t, "4", q.Price.String())

	_, err = oracle.Quote(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.hits)
}

func TestOracle_QuoteError(t *testing.T) {
	boom := errors.New("rpc down")
	oracle := NewOracle(&stubPoolReader{err: boom}, 2)

	_, err := oracle.Quote(context.Background(), domain.Pool{Venue: domain.Venue{Name: "Pancakeswap"}})
	assert.ErrorIs(t, err, boom)
}

func TestScaleFractionAndFormat(t *testing.T) {
	assert.Equal(t, "50", ScaleFraction(big.NewInt(100), decimal.RequireFromString("0.5")).String())
	assert.Equal(t, "51", ScaleFraction(big.NewInt(101), decimal.RequireFromString("0.5")).String())
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "0", FormatUnits(nil, 18))
}
