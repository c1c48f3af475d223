package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceQuote is a pool's decimal price (token1 in token0) at one block.
// Quotes are recomputed every decision cycle and never cached.
type PriceQuote struct {
	Venue string
	Price decimal.Decimal
}

// Direction names the venue to buy token1 on and the venue to sell it on.
type Direction struct {
	Buy  Venue
	Sell Venue
}

// ArbitrageOpportunity exists only inside a single decision cycle.
type ArbitrageOpportunity struct {
	Direction         Direction
	DivergencePercent decimal.Decimal
}

// ProfitabilityAssessment is the outcome of the profitability stage. All
// amounts are raw integer token units; gas and native balance are in wei.
type ProfitabilityAssessment struct {
	IsProfitable     bool
	InputAmount      *big.Int
	TradeSize        *big.Int
	AmountRequired   *big.Int
	AmountReturned   *big.Int
	ProjectedNetGain *big.Int
	EstimatedGasCost *big.Int
	NativeBalance    *big.Int
	Token0Balance    *big.Int
}

// Assessment carries a profitability verdict together with the cause of a
// negative verdict. Cause is nil only when the verdict is profitable.
type Assessment struct {
	Verdict ProfitabilityAssessment
	Cause   error
}

// Profitable reports whether the trade should be executed.
func (a Assessment) Profitable() bool {
	return a.Cause == nil && a.Verdict.IsProfitable
}
