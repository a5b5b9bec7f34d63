// Package analytics implements the pure financial computations of the
// application: investment valuation, multi-horizon growth projection, shared
// account revenue splitting, and budget variance analysis.
//
// Every function takes all the data it needs as arguments and never reads
// global state or the clock; callers fetch records through the storage layer
// and pass them in. None of these computations mutate their inputs.
package analytics

import (
	"github.com/lucasll37/guia-financeiro/internal/core"
)

// CurrentValue derives an investment's present value from its return series:
// the balance recorded by the chronologically latest monthly return, or the
// principal balance when no returns exist yet. An empty series is the normal
// initial state of an investment, not an error.
//
// Entries with non-numeric balances are ignored so one bad historical row
// cannot block valuation of an otherwise healthy series.
func CurrentValue(inv core.Investment, series []core.MonthlyReturn) float64 {
	var latest *core.MonthlyReturn
	for i := range series {
		r := &series[i]
		if !core.IsFinite(r.BalanceAfter) {
			continue
		}
		if latest == nil || r.Month.After(latest.Month) {
			latest = r
		}
	}
	if latest == nil {
		return inv.Balance
	}
	return latest.BalanceAfter
}
