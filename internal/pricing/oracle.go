// Package pricing turns raw pool state into comparable decimal prices.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// q96 is 2^96, the fixed-point scale of sqrtPriceX96.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// ratioPrecision is the number of fractional digits kept before rounding to
// the configured display precision.
const ratioPrecision = 36

var errZeroPrice = errors.New("pricing: reference price is zero")

// PriceFromSqrtX96 returns (sqrtPriceX96 / 2^96)^2 rounded to precision
// decimal places. The value is token1 denominated in token0 raw units; no
// decimal adjustment between the two tokens is applied.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, precision int32) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Mul(q96, q96)
	ratio := decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), ratioPrecision)
	return ratio.Round(precision)
}

// Divergence returns (a - b) / b * 100 rounded to two decimal places.
func Divergence(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, errZeroPrice
	}
	return a.Sub(b).Div(b).Mul(decimal.NewFromInt(100)).Round(2), nil
}

// PoolReader reads a pool's current square-root price.
type PoolReader interface {
	SqrtPriceX96(ctx context.Context, pool domain.Pool) (*big.Int, error)
}

// Oracle derives a fresh PriceQuote from a pool on every call.
type Oracle struct {
	reader    PoolReader
	precision int32
}

// NewOracle creates an Oracle that rounds prices to precision decimals.
func NewOracle(reader PoolReader, precision int32) *Oracle {
	return &Oracle{reader: reader, precision: precision}
}

// Quote reads the pool's slot0 and converts it into a PriceQuote.
func (o *Oracle) Quote(ctx context.Context, pool domain.Pool) (domain.PriceQuote, error) {
	sqrt, err := o.reader.SqrtPriceX96(ctx, pool)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricing: read %s pool: %w", pool.Venue.Name, err)
	}
	return domain.PriceQuote{
		Venue: pool.Venue.Name,
		Price: PriceFromSqrtX96(sqrt, o.precision),
	}, nil
}
