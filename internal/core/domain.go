package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Notification types understood by the UI layer.
const (
	TypeBudgetAlert NotificationType = "budget_alert"
	TypeGoal        NotificationType = "goal"
)

// Account types. Revenue splitting only applies to shared ("casa") accounts.
const (
	AccountPersonal AccountType = "pessoal"
	AccountShared   AccountType = "casa"
)

type (
	TransactionType  string
	NotificationType string
	AccountType      string

	// Investment is the baseline record for one investment. Balance is the
	// principal before any monthly returns exist.
	Investment struct {
		ID      string
		Name    string
		Type    string
		Balance float64
		OwnerID string
	}

	// MonthlyReturn is one entry of an investment's return series.
	// Month is always the first day of the month. Unique per (InvestmentID, Month).
	MonthlyReturn struct {
		InvestmentID string
		Month        time.Time
		BalanceAfter float64
		ActualReturn float64
	}

	// Budget is the planned spend for one category in one period (YYYY-MM).
	// One per (account, category, period) by convention.
	Budget struct {
		AccountID     string
		CategoryID    string
		Period        string
		AmountPlanned float64
	}

	// Transaction is a single account movement. Amount is signed: negative
	// values are expenses, mirrored by the Type flag.
	Transaction struct {
		ID         string
		AccountID  string
		CategoryID string
		Type       TransactionType
		Amount     float64
		Date       time.Time
	}

	// Goal is a savings goal. Deadline is nil for open-ended goals.
	Goal struct {
		ID            string
		Name          string
		TargetAmount  float64
		CurrentAmount float64
		Deadline      *time.Time
		OwnerID       string
	}

	// SplitMember is one participant of a shared account with a relative
	// weight. Weights are only ever used as a fraction of their sum, so they
	// need not add up to any fixed total.
	SplitMember struct {
		AccountID string
		UserID    string
		Name      string
		Email     string
		Weight    float64
	}

	// Notification is an alert persisted for a user. The engine treats the
	// table as append-only; Read is mutated by the UI layer.
	Notification struct {
		ID        string
		UserID    string
		Type      NotificationType
		Message   string
		Metadata  map[string]any
		Read      bool
		CreatedAt time.Time
	}

	// AlertPreferences holds the per-user toggles for each alert rule.
	AlertPreferences struct {
		UserID         string
		BudgetAlerts   bool
		GoalAlerts     bool
		VarianceAlerts bool
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrEmptyUserID   = errors.New("empty user id")
	ErrEmptyName     = errors.New("empty name")
)

// DefaultPreferences returns the preferences applied to users without a
// settings row: every rule enabled.
func DefaultPreferences(userID string) AlertPreferences {
	return AlertPreferences{
		UserID:         userID,
		BudgetAlerts:   true,
		GoalAlerts:     true,
		VarianceAlerts: true,
	}
}

// IsExpense reports whether the transaction counts toward spending figures.
func (t Transaction) IsExpense() bool {
	return t.Type == Expense
}

// InPeriod reports whether the transaction date falls in the given YYYY-MM period.
func (t Transaction) InPeriod(period string) bool {
	return PeriodOf(t.Date) == period
}

func (t Transaction) Validate() error {
	if !IsFinite(t.Amount) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return errors.New("empty account id")
	}
	return nil
}

func (b Budget) Validate() error {
	if !IsFinite(b.AmountPlanned) || b.AmountPlanned < 0 {
		return ErrInvalidAmount
	}
	if _, err := ParsePeriod(b.Period); err != nil {
		return err
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if !IsFinite(g.TargetAmount) || !IsFinite(g.CurrentAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Progress returns the goal completion percentage. A goal without a positive
// target reports 0 rather than dividing by zero.
func (g Goal) Progress() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return g.CurrentAmount / g.TargetAmount * 100
}

// Overdue reports whether the goal has a deadline in the past and is not yet
// fully funded.
func (g Goal) Overdue(now time.Time) bool {
	return g.Deadline != nil && g.Deadline.Before(now) && g.Progress() < 100
}

// IsFinite reports whether v is a usable money figure (not NaN or ±Inf).
// Malformed figures on fetched records are skipped, never propagated.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PeriodOf formats t as a YYYY-MM period string.
func PeriodOf(t time.Time) string {
	return t.Format("2006-01")
}

// ParsePeriod parses a YYYY-MM period into the first instant of that month (UTC).
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, ErrInvalidPeriod
	}
	return t, nil
}

// PreviousPeriod returns the period immediately before the given one.
func PreviousPeriod(period string) (string, error) {
	t, err := ParsePeriod(period)
	if err != nil {
		return "", err
	}
	return PeriodOf(t.AddDate(0, -1, 0)), nil
}

// MonthStart truncates t to the first day of its month in UTC. Return series
// entries are normalized this way before storage.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
