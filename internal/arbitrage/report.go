package arbitrage

import (
	"bytes"
	"fmt"
	"math/big"
	"text/tabwriter"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/pricing"
)

const nativeDecimals = 18

// RenderAssessment renders the projected balance table for a verdict.
func RenderAssessment(v domain.ProfitabilityAssessment, token0, token1 domain.Token) string {
	nativeAfter := sub(v.NativeBalance, v.EstimatedGasCost)
	token0After := add(v.Token0Balance, v.ProjectedNetGain)

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	row := func(label, value string) { fmt.Fprintf(w, "%s\t%s\n", label, value) }

	row(fmt.Sprintf("%s required", token0.Symbol), pricing.FormatUnits(v.AmountRequired, token0.Decimals))
	row(fmt.Sprintf("%s returned", token0.Symbol), pricing.FormatUnits(v.AmountReturned, token0.Decimals))
	row(fmt.Sprintf("%s traded", token1.Symbol), pricing.FormatUnits(v.TradeSize, token1.Decimals))
	row("-", "")
	row("Native balance before", pricing.FormatUnits(v.NativeBalance, nativeDecimals))
	row("Native balance after", pricing.FormatUnits(nativeAfter, nativeDecimals))
	row("Native spent (gas)", pricing.FormatUnits(v.EstimatedGasCost, nativeDecimals))
	row("-", "")
	row(fmt.Sprintf("%s balance before", token0.Symbol), pricing.FormatUnits(v.Token0Balance, token0.Decimals))
	row(fmt.Sprintf("%s balance after", token0.Symbol), pricing.FormatUnits(token0After, token0.Decimals))
	row(fmt.Sprintf("%s gained/lost", token0.Symbol), pricing.FormatUnits(v.ProjectedNetGain, token0.Decimals))
	_ = w.Flush()
	return buf.String()
}

func add(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return nil
	}
	return new(big.Int).Add(a, b)
}

func sub(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return nil
	}
	return new(big.Int).Sub(a, b)
}
