package executor

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/alanyoungcy/dexarb/internal/domain"
	"github.com/alanyoungcy/dexarb/internal/pricing"
)

const nativeDecimals = 18

// RenderBalances renders the before/after balance table of an execution.
func RenderBalances(exec domain.Execution, token0 domain.Token) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	row := func(label, value string) { fmt.Fprintf(w, "%s\t%s\n", label, value) }

	row("Native balance before", pricing.FormatUnits(exec.NativeBefore, nativeDecimals))
	row("Native balance after", pricing.FormatUnits(exec.NativeAfter, nativeDecimals))
	row("Native spent (gas)", pricing.FormatUnits(exec.NativeSpent(), nativeDecimals))
	row("-", "")
	row(token0.Symbol+" balance before", pricing.FormatUnits(exec.Token0Before, token0.Decimals))
	row(token0.Symbol+" balance after", pricing.FormatUnits(exec.Token0After, token0.Decimals))
	row(token0.Symbol+" gained/lost", pricing.FormatUnits(exec.Token0Gained(), token0.Decimals))
	_ = w.Flush()
	return buf.String()
}
