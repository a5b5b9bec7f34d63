package alerts

import (
	"math"
	"testing"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

var now = time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

func expense(account, category string, amount float64, date time.Time) core.Transaction {
	return core.Transaction{
		AccountID:  account,
		CategoryID: category,
		Type:       core.Expense,
		Amount:     -math.Abs(amount),
		Date:       date,
	}
}

func TestBudgetOverruns(t *testing.T) {
	budgets := []core.Budget{
		{AccountID: "acc1", CategoryID: "food", Period: "2026-08", AmountPlanned: 500},
		{AccountID: "acc1", CategoryID: "transport", Period: "2026-08", AmountPlanned: 200},
		{AccountID: "acc1", CategoryID: "food", Period: "2026-07", AmountPlanned: 100},
	}
	txns := []core.Transaction{
		expense("acc1", "food", 650, now),
		expense("acc1", "transport", 120, now),
		// Other account, same category: must not count.
		expense("acc2", "food", 999, now),
		// Previous month: must not count.
		expense("acc1", "food", 999, now.AddDate(0, -1, 0)),
	}

	cands := Rules{}.BudgetOverruns("u1", now, budgets, txns)

	if len(cands) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(cands))
	}
	c := cands[0]
	if c.Type != core.TypeBudgetAlert {
		t.Errorf("type = %q, want budget_alert", c.Type)
	}
	if c.Metadata["category_id"] != "food" {
		t.Errorf("category_id = %v, want food", c.Metadata["category_id"])
	}
	if c.Metadata["excess"] != 150.0 {
		t.Errorf("excess = %v, want 150", c.Metadata["excess"])
	}
	if c.Metadata["planned"] != 500.0 || c.Metadata["spent"] != 650.0 {
		t.Errorf("planned/spent = %v/%v, want 500/650", c.Metadata["planned"], c.Metadata["spent"])
	}
	if want := "Orçamento do mês ultrapassado em R$ 150,00 (categoria food)"; c.Message != want {
		t.Errorf("message = %q, want %q", c.Message, want)
	}
}

func TestBudgetOverruns_ExactlyAtPlanDoesNotFire(t *testing.T) {
	budgets := []core.Budget{{AccountID: "acc1", CategoryID: "food", Period: "2026-08", AmountPlanned: 500}}
	txns := []core.Transaction{expense("acc1", "food", 500, now)}

	if cands := (Rules{}).BudgetOverruns("u1", now, budgets, txns); len(cands) != 0 {
		t.Errorf("len(candidates) = %d, want 0 (spent == planned)", len(cands))
	}
}

func TestOverdueGoals(t *testing.T) {
	past := now.AddDate(0, -2, 0)
	future := now.AddDate(0, 2, 0)

	goals := []core.Goal{
		{ID: "g1", Name: "Viagem", TargetAmount: 5000, CurrentAmount: 2000, Deadline: &past},
		{ID: "g2", Name: "Reserva", TargetAmount: 1000, CurrentAmount: 1000, Deadline: &past},
		{ID: "g3", Name: "Carro", TargetAmount: 30000, CurrentAmount: 100, Deadline: &future},
		{ID: "g4", Name: "Sem prazo", TargetAmount: 100, CurrentAmount: 0},
	}

	cands := Rules{}.OverdueGoals("u1", now, goals)

	if len(cands) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(cands))
	}
	c := cands[0]
	if c.Type != core.TypeGoal {
		t.Errorf("type = %q, want goal", c.Type)
	}
	if c.Metadata["goal_id"] != "g1" || c.Metadata["goal_name"] != "Viagem" {
		t.Errorf("metadata = %v, want goal g1/Viagem", c.Metadata)
	}
	if c.Metadata["percentage"] != 40.0 {
		t.Errorf("percentage = %v, want 40", c.Metadata["percentage"])
	}
}

func TestExpenseVariance(t *testing.T) {
	prev := now.AddDate(0, -1, 0)

	tests := []struct {
		name          string
		accountID     string
		current, last float64
		wantFire      bool
		wantDirection string
		wantVariance  float64
	}{
		{"25 percent increase fires", "acc1", 1250, 1000, true, "increase", 25.0},
		{"15 percent increase does not fire", "acc1", 1150, 1000, false, "", 0},
		{"30 percent drop fires", "acc1", 700, 1000, true, "decrease", 30.0},
		{"exactly at threshold does not fire", "acc1", 1200, 1000, false, "", 0},
		{"no account scope", "", 1250, 1000, false, "", 0},
		{"no prior month baseline", "acc1", 1250, 0, false, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txns []core.Transaction
			if tt.current > 0 {
				txns = append(txns, expense("acc1", "misc", tt.current, now))
			}
			if tt.last > 0 {
				txns = append(txns, expense("acc1", "misc", tt.last, prev))
			}

			cands := Rules{}.ExpenseVariance("u1", tt.accountID, now, txns)

			if !tt.wantFire {
				if len(cands) != 0 {
					t.Fatalf("len(candidates) = %d, want 0", len(cands))
				}
				return
			}
			if len(cands) != 1 {
				t.Fatalf("len(candidates) = %d, want 1", len(cands))
			}
			c := cands[0]
			if c.Metadata["direction"] != tt.wantDirection {
				t.Errorf("direction = %v, want %v", c.Metadata["direction"], tt.wantDirection)
			}
			if got := c.Metadata["variance"].(float64); math.Abs(got-tt.wantVariance) > 1e-6 {
				t.Errorf("variance = %v, want %v", got, tt.wantVariance)
			}
		})
	}
}

func TestExpenseVariance_CustomThreshold(t *testing.T) {
	prev := now.AddDate(0, -1, 0)
	txns := []core.Transaction{
		expense("acc1", "misc", 1150, now),
		expense("acc1", "misc", 1000, prev),
	}

	// 15% change: silent at the default threshold, firing at 10%.
	if cands := (Rules{}).ExpenseVariance("u1", "acc1", now, txns); len(cands) != 0 {
		t.Errorf("default threshold: len(candidates) = %d, want 0", len(cands))
	}
	if cands := (Rules{VarianceThresholdPct: 10}).ExpenseVariance("u1", "acc1", now, txns); len(cands) != 1 {
		t.Errorf("10%% threshold: len(candidates) = %d, want 1", len(cands))
	}
}
