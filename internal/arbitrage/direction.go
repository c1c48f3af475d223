package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// SelectDirection maps a divergence of venue A over venue B (in percent) to
// a trade direction. Both bounds are inclusive: divergence >= threshold buys
// on A and sells on B, divergence <= -threshold buys on B and sells on A.
// Anything strictly between reports no opportunity.
func SelectDirection(divergence, threshold decimal.Decimal, a, b domain.Venue) (domain.ArbitrageOpportunity, bool) {
	threshold = threshold.Abs()
	switch {
	case divergence.GreaterThanOrEqual(threshold):
		return domain.ArbitrageOpportunity{
			Direction:         domain.Direction{Buy: a, Sell: b},
			DivergencePercent: divergence,
		}, true
	case divergence.LessThanOrEqual(threshold.Neg()):
		return domain.ArbitrageOpportunity{
			Direction:         domain.Direction{Buy: b, Sell: a},
			DivergencePercent: divergence,
		}, true
	default:
		return domain.ArbitrageOpportunity{}, false
	}
}
