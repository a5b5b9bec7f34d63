package analytics

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

// StandardHorizons are the projection horizons (in months) rendered by the
// investment dashboard.
var StandardHorizons = []int{3, 6, 12}

// ProjectedPoint is one month of a single investment's projection.
type ProjectedPoint struct {
	MonthIndex int     `json:"month_index"`
	Value      float64 `json:"value"`
}

// ProjectionRow is one month of the combined projection table: one value per
// investment, keyed by investment ID.
type ProjectionRow struct {
	MonthIndex int                `json:"month_index"`
	Values     map[string]float64 `json:"values"`
}

// Project extrapolates an investment's value over horizon future months.
//
// Indices 0..L-1 (L = usable history length) carry the recorded balances,
// positioned counting back from the most recent entry: index 0 is the latest
// month on record. Indices beyond the history compound the latest balance at
// the mean historical per-month return rate. With no history at all the rate
// is zero and every index carries the flat principal balance.
//
// The caller's slice is never reordered; Project works on a sorted copy.
func Project(inv core.Investment, series []core.MonthlyReturn, horizon int) []ProjectedPoint {
	hist := sortedLatestFirst(series)
	rate := averageMonthlyRate(hist)

	last := inv.Balance
	if len(hist) > 0 {
		last = hist[0].BalanceAfter
	}

	points := make([]ProjectedPoint, 0, horizon+1)
	for i := 0; i <= horizon; i++ {
		var value float64
		if i < len(hist) {
			value = hist[i].BalanceAfter
		} else {
			monthsBeyond := i - len(hist) + 1
			value = last * math.Pow(1+rate, float64(monthsBeyond))
		}
		points = append(points, ProjectedPoint{MonthIndex: i, Value: value})
	}
	return points
}

// ProjectAll runs Project for every investment at every requested horizon,
// joining the results into one table per horizon with a row per month index
// and a column per investment. Investments with less history than the horizon
// still get a value at every index via the projection branch (sparse union).
//
// Each investment's projections are independent pure computations, so they
// are evaluated concurrently. The context only bounds the group; the
// computations themselves never block.
func ProjectAll(ctx context.Context, invs []core.Investment, seriesByInvestment map[string][]core.MonthlyReturn, horizons []int) map[int][]ProjectionRow {
	if len(horizons) == 0 {
		horizons = StandardHorizons
	}

	// points[i][h] is investment i's projection at horizon h.
	points := make([]map[int][]ProjectedPoint, len(invs))

	g, _ := errgroup.WithContext(ctx)
	for i := range invs {
		g.Go(func() error {
			byHorizon := make(map[int][]ProjectedPoint, len(horizons))
			for _, h := range horizons {
				byHorizon[h] = Project(invs[i], seriesByInvestment[invs[i].ID], h)
			}
			points[i] = byHorizon
			return nil
		})
	}
	// Goroutines never fail; Wait just synchronizes.
	_ = g.Wait()

	tables := make(map[int][]ProjectionRow, len(horizons))
	for _, h := range horizons {
		rows := make([]ProjectionRow, h+1)
		for idx := 0; idx <= h; idx++ {
			rows[idx] = ProjectionRow{MonthIndex: idx, Values: make(map[string]float64, len(invs))}
		}
		for i := range invs {
			for _, p := range points[i][h] {
				rows[p.MonthIndex].Values[invs[i].ID] = p.Value
			}
		}
		tables[h] = rows
	}
	return tables
}

// averageMonthlyRate is the mean of actual_return/balance_after across the
// series. An entry whose balance is zero contributes zero to the mean instead
// of propagating Inf; it still counts toward the denominator. The divisor is
// always len(series): a zero-balance month dampens the average rather than
// shrinking the sample, and changing that changes every projected value.
func averageMonthlyRate(series []core.MonthlyReturn) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, r := range series {
		if r.BalanceAfter == 0 {
			continue
		}
		rate := r.ActualReturn / r.BalanceAfter
		if !core.IsFinite(rate) {
			continue
		}
		sum += rate
	}
	return sum / float64(len(series))
}

// sortedLatestFirst returns a copy of the series ordered by month descending,
// dropping entries with non-numeric figures. The ascending view used elsewhere
// is just the reverse; neither touches the caller's slice.
func sortedLatestFirst(series []core.MonthlyReturn) []core.MonthlyReturn {
	out := make([]core.MonthlyReturn, 0, len(series))
	for _, r := range series {
		if !core.IsFinite(r.BalanceAfter) || !core.IsFinite(r.ActualReturn) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Month.After(out[j].Month)
	})
	return out
}

// SortedByMonth returns an ascending-ordered copy of the series, the ordering
// used for chart rendering and storage round trips.
func SortedByMonth(series []core.MonthlyReturn) []core.MonthlyReturn {
	out := make([]core.MonthlyReturn, len(series))
	copy(out, series)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}
