package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUnits renders a raw integer token amount with the given number of
// decimals, e.g. FormatUnits(1500000, 6) == "1.5".
func FormatUnits(amount *big.Int, decimals uint8) string {
	return ToDecimal(amount, decimals).String()
}

// ToDecimal converts a raw integer token amount into a decimal value.
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// ScaleFraction returns amount * fraction rounded half-up to a raw integer
// amount.
func ScaleFraction(amount *big.Int, fraction decimal.Decimal) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(amount, 0).Mul(fraction).Round(0).BigInt()
}
