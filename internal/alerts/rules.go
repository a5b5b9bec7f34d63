// Package alerts turns account data into user notifications: a fixed set of
// rule checks produces candidate alerts, a deduplicator drops the ones already
// raised recently, and the evaluator orchestrates fetch, evaluation, and
// persistence through the storage boundary.
package alerts

import (
	"fmt"
	"math"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

// Rule names used in evaluation results and logs.
const (
	RuleBudgetOverrun   = "budget_overrun"
	RuleGoalOverdue     = "goal_overdue"
	RuleExpenseVariance = "expense_variance"
)

// DefaultVarianceThresholdPct is the month-over-month change (in percent)
// above which the variance rule fires.
const DefaultVarianceThresholdPct = 20.0

// Candidate is a computed alert payload that has not yet been checked against
// recent history or persisted.
type Candidate struct {
	UserID   string
	Type     core.NotificationType
	Message  string
	Metadata map[string]any
}

// Rules holds the tunables for the rule checks. The zero value uses the
// default variance threshold.
type Rules struct {
	VarianceThresholdPct float64
}

func (r Rules) varianceThreshold() float64 {
	if r.VarianceThresholdPct <= 0 {
		return DefaultVarianceThresholdPct
	}
	return r.VarianceThresholdPct
}

// BudgetOverruns checks every budget of the current calendar month against
// the matching spend and emits one candidate per exceeded budget.
func (r Rules) BudgetOverruns(userID string, now time.Time, budgets []core.Budget, transactions []core.Transaction) []Candidate {
	period := core.PeriodOf(now)

	var out []Candidate
	for _, b := range budgets {
		if b.Period != period {
			continue
		}
		var spent float64
		for _, tx := range transactions {
			if !tx.IsExpense() || !core.IsFinite(tx.Amount) {
				continue
			}
			if tx.AccountID != b.AccountID || tx.CategoryID != b.CategoryID || !tx.InPeriod(period) {
				continue
			}
			spent += math.Abs(tx.Amount)
		}
		if spent <= b.AmountPlanned {
			continue
		}
		excess := spent - b.AmountPlanned
		out = append(out, Candidate{
			UserID:  userID,
			Type:    core.TypeBudgetAlert,
			Message: fmt.Sprintf("Orçamento do mês ultrapassado em %s (categoria %s)", core.FormatBRL(excess), b.CategoryID),
			Metadata: map[string]any{
				"category_id": b.CategoryID,
				"planned":     b.AmountPlanned,
				"spent":       spent,
				"excess":      excess,
			},
		})
	}
	return out
}

// OverdueGoals emits one candidate per goal whose deadline has passed without
// the goal being fully funded. Percentages are rounded to whole numbers so a
// goal only re-alerts when its progress visibly changes.
func (r Rules) OverdueGoals(userID string, now time.Time, goals []core.Goal) []Candidate {
	var out []Candidate
	for _, g := range goals {
		if !g.Overdue(now) {
			continue
		}
		pct := math.Round(g.Progress())
		out = append(out, Candidate{
			UserID:  userID,
			Type:    core.TypeGoal,
			Message: fmt.Sprintf("A meta %q passou do prazo com %s concluída", g.Name, core.FormatPercent(pct)),
			Metadata: map[string]any{
				"goal_id":    g.ID,
				"goal_name":  g.Name,
				"percentage": pct,
			},
		})
	}
	return out
}

// ExpenseVariance compares the account's expense total for the current
// calendar month against the previous one and fires when the absolute change
// exceeds the threshold. It only applies when the evaluation is scoped to one
// account; without a prior-month baseline nothing fires.
func (r Rules) ExpenseVariance(userID, accountID string, now time.Time, transactions []core.Transaction) []Candidate {
	if accountID == "" {
		return nil
	}

	period := core.PeriodOf(now)
	prevPeriod := core.PeriodOf(now.AddDate(0, -1, 0))

	var current, previous float64
	for _, tx := range transactions {
		if tx.AccountID != accountID || !tx.IsExpense() || !core.IsFinite(tx.Amount) {
			continue
		}
		switch {
		case tx.InPeriod(period):
			current += math.Abs(tx.Amount)
		case tx.InPeriod(prevPeriod):
			previous += math.Abs(tx.Amount)
		}
	}
	if previous == 0 {
		return nil
	}

	variance := (current - previous) / previous * 100
	if math.Abs(variance) <= r.varianceThreshold() {
		return nil
	}

	// One decimal place keeps the payload stable across repeated runs with
	// the same totals.
	rounded := math.Round(math.Abs(variance)*10) / 10
	direction := "increase"
	verb := "aumentaram"
	if variance < 0 {
		direction = "decrease"
		verb = "caíram"
	}
	return []Candidate{{
		UserID:  userID,
		Type:    core.TypeBudgetAlert,
		Message: fmt.Sprintf("Suas despesas %s %s em relação ao mês anterior", verb, core.FormatPercent(rounded)),
		Metadata: map[string]any{
			"account_id": accountID,
			"direction":  direction,
			"variance":   rounded,
		},
	}}
}
