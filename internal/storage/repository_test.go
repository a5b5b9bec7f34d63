package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInvestmentsAndReturns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inv := &core.Investment{OwnerID: "u1", Name: "Tesouro Selic", Type: "renda_fixa", Balance: 1000}
	if err := repo.CreateInvestment(ctx, inv); err != nil {
		t.Fatalf("CreateInvestment() error = %v", err)
	}
	if inv.ID == "" {
		t.Fatal("expected a generated investment id")
	}

	t.Run("round trip by id", func(t *testing.T) {
		got, err := repo.Investment(ctx, inv.ID)
		if err != nil {
			t.Fatalf("Investment() error = %v", err)
		}
		if got == nil || got.Name != "Tesouro Selic" || got.Balance != 1000 {
			t.Errorf("Investment() = %+v", got)
		}
	})

	t.Run("missing id returns nil", func(t *testing.T) {
		got, err := repo.Investment(ctx, "nope")
		if err != nil || got != nil {
			t.Errorf("Investment(missing) = %+v, %v, want nil, nil", got, err)
		}
	})

	t.Run("returns are normalized and upserted per month", func(t *testing.T) {
		// Mid-month date normalizes to the month start.
		ret := core.MonthlyReturn{InvestmentID: inv.ID, Month: date(2026, 7, 15), BalanceAfter: 1040, ActualReturn: 40}
		if err := repo.UpsertMonthlyReturn(ctx, ret); err != nil {
			t.Fatalf("UpsertMonthlyReturn() error = %v", err)
		}
		// Same month again replaces, not duplicates.
		ret.BalanceAfter, ret.ActualReturn = 1050, 50
		if err := repo.UpsertMonthlyReturn(ctx, ret); err != nil {
			t.Fatalf("UpsertMonthlyReturn() upsert error = %v", err)
		}

		series, err := repo.ReturnsForInvestment(ctx, inv.ID)
		if err != nil {
			t.Fatalf("ReturnsForInvestment() error = %v", err)
		}
		if len(series) != 1 {
			t.Fatalf("len(series) = %d, want 1", len(series))
		}
		if !series[0].Month.Equal(date(2026, 7, 1)) {
			t.Errorf("month = %v, want first of month", series[0].Month)
		}
		if series[0].BalanceAfter != 1050 {
			t.Errorf("balance_after = %v, want upserted 1050", series[0].BalanceAfter)
		}
	})

	t.Run("non-finite figures rejected", func(t *testing.T) {
		bad := core.MonthlyReturn{InvestmentID: inv.ID, Month: date(2026, 8, 1), BalanceAfter: math.NaN(), ActualReturn: 0}
		if err := repo.UpsertMonthlyReturn(ctx, bad); err != core.ErrInvalidAmount {
			t.Errorf("error = %v, want ErrInvalidAmount", err)
		}
	})
}

func TestBudgetAndTransactionScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateAccount(ctx, "casa1", "Casa", core.AccountShared); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if err := repo.CreateAccount(ctx, "pessoal1", "Pessoal", core.AccountPersonal); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if err := repo.AddMember(ctx, core.SplitMember{AccountID: "casa1", UserID: "u1", Name: "Ana", Weight: 2}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	budgets := []core.Budget{
		{AccountID: "casa1", CategoryID: "food", Period: "2026-08", AmountPlanned: 500},
		{AccountID: "casa1", CategoryID: "food", Period: "2026-07", AmountPlanned: 450},
		{AccountID: "pessoal1", CategoryID: "food", Period: "2026-08", AmountPlanned: 300},
	}
	for _, b := range budgets {
		if err := repo.UpsertBudget(ctx, b); err != nil {
			t.Fatalf("UpsertBudget(%+v) error = %v", b, err)
		}
	}

	txns := []core.Transaction{
		{AccountID: "casa1", CategoryID: "food", Type: core.Expense, Amount: -650, Date: date(2026, 8, 10)},
		{AccountID: "casa1", CategoryID: "food", Type: core.Expense, Amount: -400, Date: date(2026, 7, 10)},
		{AccountID: "pessoal1", CategoryID: "food", Type: core.Expense, Amount: -100, Date: date(2026, 8, 5)},
	}
	for i := range txns {
		if err := repo.CreateTransaction(ctx, &txns[i]); err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	t.Run("budgets scoped to account and period", func(t *testing.T) {
		got, err := repo.BudgetsForAccount(ctx, "casa1", "2026-08")
		if err != nil {
			t.Fatalf("BudgetsForAccount() error = %v", err)
		}
		if len(got) != 1 || got[0].AmountPlanned != 500 {
			t.Errorf("BudgetsForAccount() = %+v", got)
		}
	})

	t.Run("budgets via membership when no account given", func(t *testing.T) {
		// u1 is a member of casa1 only, so pessoal1's budget stays out.
		got, err := repo.BudgetsForPeriod(ctx, "u1", "", "2026-08")
		if err != nil {
			t.Fatalf("BudgetsForPeriod() error = %v", err)
		}
		if len(got) != 1 || got[0].AccountID != "casa1" {
			t.Errorf("BudgetsForPeriod() = %+v", got)
		}
	})

	t.Run("budget upsert replaces planned amount", func(t *testing.T) {
		b := core.Budget{AccountID: "casa1", CategoryID: "food", Period: "2026-08", AmountPlanned: 550}
		if err := repo.UpsertBudget(ctx, b); err != nil {
			t.Fatalf("UpsertBudget() error = %v", err)
		}
		got, err := repo.BudgetsForAccount(ctx, "casa1", "2026-08")
		if err != nil || len(got) != 1 || got[0].AmountPlanned != 550 {
			t.Errorf("BudgetsForAccount() = %+v, %v", got, err)
		}
	})

	t.Run("transactions filtered by period set", func(t *testing.T) {
		got, err := repo.TransactionsForPeriods(ctx, "u1", "casa1", "2026-08", "2026-07")
		if err != nil {
			t.Fatalf("TransactionsForPeriods() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		got, err = repo.TransactionsForPeriods(ctx, "u1", "casa1", "2026-06")
		if err != nil || len(got) != 0 {
			t.Errorf("empty period = %+v, %v", got, err)
		}
	})

	t.Run("no periods means no rows", func(t *testing.T) {
		got, err := repo.TransactionsForPeriods(ctx, "u1", "casa1")
		if err != nil || got != nil {
			t.Errorf("TransactionsForPeriods() = %+v, %v, want nil, nil", got, err)
		}
	})

	t.Run("invalid transaction rejected", func(t *testing.T) {
		bad := core.Transaction{AccountID: "casa1", Type: core.Expense, Amount: math.NaN(), Date: date(2026, 8, 1)}
		if err := repo.CreateTransaction(ctx, &bad); err != core.ErrInvalidAmount {
			t.Errorf("error = %v, want ErrInvalidAmount", err)
		}
	})
}

func TestGoals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	deadline := date(2026, 6, 30)
	goals := []*core.Goal{
		{OwnerID: "u1", Name: "Viagem", TargetAmount: 5000, CurrentAmount: 2000, Deadline: &deadline},
		{OwnerID: "u1", Name: "Reserva", TargetAmount: 10000, CurrentAmount: 1000},
	}
	for _, g := range goals {
		if err := repo.CreateGoal(ctx, g); err != nil {
			t.Fatalf("CreateGoal(%s) error = %v", g.Name, err)
		}
	}

	got, err := repo.GoalsForOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("GoalsForOwner() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Ordered by name: Reserva before Viagem.
	if got[0].Deadline != nil {
		t.Errorf("open-ended goal deadline = %v, want nil", got[0].Deadline)
	}
	if got[1].Deadline == nil || !got[1].Deadline.Equal(deadline) {
		t.Errorf("deadline = %v, want %v", got[1].Deadline, deadline)
	}
}

func TestNotifications(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := date(2026, 8, 20)

	n := &core.Notification{
		UserID:  "u1",
		Type:    core.TypeBudgetAlert,
		Message: "Orçamento do mês ultrapassado em R$ 150,00 (categoria food)",
		Metadata: map[string]any{
			"category_id": "food",
			"excess":      150.0,
		},
		CreatedAt: now,
	}
	if err := repo.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected a generated notification id")
	}
	old := &core.Notification{
		UserID:    "u1",
		Type:      core.TypeGoal,
		Message:   "old",
		CreatedAt: now.Add(-48 * time.Hour),
	}
	if err := repo.CreateNotification(ctx, old); err != nil {
		t.Fatalf("CreateNotification(old) error = %v", err)
	}

	t.Run("recent window excludes old rows", func(t *testing.T) {
		got, err := repo.RecentNotifications(ctx, "u1", now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("RecentNotifications() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != n.ID {
			t.Fatalf("RecentNotifications() = %+v", got)
		}
		// Metadata must survive the JSON round trip with value equality.
		if got[0].Metadata["category_id"] != "food" || got[0].Metadata["excess"] != 150.0 {
			t.Errorf("metadata = %+v", got[0].Metadata)
		}
		if !got[0].CreatedAt.Equal(now) {
			t.Errorf("created_at = %v, want %v", got[0].CreatedAt, now)
		}
	})

	t.Run("listing is newest first and limited", func(t *testing.T) {
		got, err := repo.NotificationsForUser(ctx, "u1", 0)
		if err != nil {
			t.Fatalf("NotificationsForUser() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != n.ID {
			t.Fatalf("NotificationsForUser() = %+v", got)
		}
		got, err = repo.NotificationsForUser(ctx, "u1", 1)
		if err != nil || len(got) != 1 {
			t.Errorf("limited list = %+v, %v", got, err)
		}
	})

	t.Run("empty user rejected", func(t *testing.T) {
		if err := repo.CreateNotification(ctx, &core.Notification{Type: core.TypeGoal}); err != core.ErrEmptyUserID {
			t.Errorf("error = %v, want ErrEmptyUserID", err)
		}
	})
}

func TestPreferencesAndUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("missing settings row yields defaults", func(t *testing.T) {
		p, err := repo.Preferences(ctx, "u1")
		if err != nil {
			t.Fatalf("Preferences() error = %v", err)
		}
		if !p.BudgetAlerts || !p.GoalAlerts || !p.VarianceAlerts {
			t.Errorf("defaults = %+v, want everything enabled", p)
		}
	})

	t.Run("saved toggles round trip", func(t *testing.T) {
		want := core.AlertPreferences{UserID: "u1", BudgetAlerts: true, GoalAlerts: false, VarianceAlerts: false}
		if err := repo.SavePreferences(ctx, want); err != nil {
			t.Fatalf("SavePreferences() error = %v", err)
		}
		got, err := repo.Preferences(ctx, "u1")
		if err != nil || got != want {
			t.Errorf("Preferences() = %+v, %v, want %+v", got, err, want)
		}
	})

	t.Run("users union of members and settings", func(t *testing.T) {
		if err := repo.CreateAccount(ctx, "casa1", "Casa", core.AccountShared); err != nil {
			t.Fatalf("CreateAccount() error = %v", err)
		}
		if err := repo.AddMember(ctx, core.SplitMember{AccountID: "casa1", UserID: "u2", Weight: 1}); err != nil {
			t.Fatalf("AddMember() error = %v", err)
		}
		users, err := repo.Users(ctx)
		if err != nil {
			t.Fatalf("Users() error = %v", err)
		}
		if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
			t.Errorf("Users() = %v, want [u1 u2]", users)
		}

		accounts, err := repo.AccountsForUser(ctx, "u2")
		if err != nil || len(accounts) != 1 || accounts[0] != "casa1" {
			t.Errorf("AccountsForUser() = %v, %v", accounts, err)
		}
	})
}
