package analytics

import (
	"math"
	"sort"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

// CategoryVariance compares one category's actual spend in a period against
// its planned budget.
type CategoryVariance struct {
	CategoryID string  `json:"category_id"`
	Planned    float64 `json:"planned"`
	Actual     float64 `json:"actual"`
	Percentage float64 `json:"percentage"`
	Remaining  float64 `json:"remaining"`

	// MovingAverageSuggestion is the category's total expense volume divided
	// by a fixed 3, regardless of how many periods the input actually spans.
	// This mirrors the product's historical behavior and is kept on purpose;
	// it is not a true trailing 3-month average.
	MovingAverageSuggestion float64 `json:"moving_average_suggestion"`
}

// BudgetVarianceReport is the per-category breakdown plus the aggregate row.
type BudgetVarianceReport struct {
	Period          string             `json:"period"`
	Categories      []CategoryVariance `json:"categories"`
	TotalPlanned    float64            `json:"total_planned"`
	TotalActual     float64            `json:"total_actual"`
	TotalPercentage float64            `json:"total_percentage"`
}

// AnalyzeBudgets compares actual spend per category against planned budgets
// for one period. Actual spend is the sum of absolute values of expense-type
// transactions in the period; the moving-average suggestion uses all expense
// transactions passed in, whatever their period.
//
// Categories with spend but no budget still get a row with percentage 0,
// since having no plan is not an error. Budgeted categories come first, in input order,
// followed by unbudgeted ones sorted by ID so output is deterministic.
func AnalyzeBudgets(transactions []core.Transaction, budgets []core.Budget, period string) BudgetVarianceReport {
	report := BudgetVarianceReport{Period: period}

	periodSpend := make(map[string]float64)
	allTimeSpend := make(map[string]float64)
	for _, tx := range transactions {
		if !tx.IsExpense() || !core.IsFinite(tx.Amount) {
			continue
		}
		amount := math.Abs(tx.Amount)
		allTimeSpend[tx.CategoryID] += amount
		if tx.InPeriod(period) {
			periodSpend[tx.CategoryID] += amount
		}
	}

	seen := make(map[string]bool, len(budgets))
	for _, b := range budgets {
		if b.Period != period || seen[b.CategoryID] {
			continue
		}
		seen[b.CategoryID] = true
		report.Categories = append(report.Categories, categoryRow(b.CategoryID, b.AmountPlanned, periodSpend[b.CategoryID], allTimeSpend[b.CategoryID]))
	}

	var unbudgeted []string
	for categoryID := range periodSpend {
		if !seen[categoryID] {
			unbudgeted = append(unbudgeted, categoryID)
		}
	}
	sort.Strings(unbudgeted)
	for _, categoryID := range unbudgeted {
		report.Categories = append(report.Categories, categoryRow(categoryID, 0, periodSpend[categoryID], allTimeSpend[categoryID]))
	}

	for _, row := range report.Categories {
		report.TotalPlanned += row.Planned
		report.TotalActual += row.Actual
	}
	if report.TotalPlanned > 0 {
		report.TotalPercentage = report.TotalActual / report.TotalPlanned * 100
	}

	return report
}

func categoryRow(categoryID string, planned, actual, allTime float64) CategoryVariance {
	row := CategoryVariance{
		CategoryID:              categoryID,
		Planned:                 planned,
		Actual:                  actual,
		Remaining:               planned - actual,
		MovingAverageSuggestion: allTime / 3,
	}
	if planned > 0 {
		row.Percentage = actual / planned * 100
	}
	return row
}
