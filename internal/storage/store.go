// Package storage persists the finance data behind a SQLite database and
// exposes it through narrow per-concern interfaces so the engine and the HTTP
// layer only see the slice they consume.
package storage

import (
	"context"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

// ReturnReader serves investments and their monthly return series.
type ReturnReader interface {
	Investment(ctx context.Context, id string) (*core.Investment, error)
	InvestmentsForOwner(ctx context.Context, ownerID string) ([]core.Investment, error)
	ReturnsForInvestment(ctx context.Context, investmentID string) ([]core.MonthlyReturn, error)
}

// BudgetReader serves planned spend rows for variance and overrun checks.
type BudgetReader interface {
	BudgetsForPeriod(ctx context.Context, userID, accountID, period string) ([]core.Budget, error)
	BudgetsForAccount(ctx context.Context, accountID, period string) ([]core.Budget, error)
}

// TransactionReader serves account movements scoped by calendar period.
type TransactionReader interface {
	TransactionsForPeriods(ctx context.Context, userID, accountID string, periods ...string) ([]core.Transaction, error)
	TransactionsForAccount(ctx context.Context, accountID string) ([]core.Transaction, error)
}

// GoalReader serves savings goals by owner.
type GoalReader interface {
	GoalsForOwner(ctx context.Context, userID string) ([]core.Goal, error)
}

// MemberReader serves accounts and their split membership.
type MemberReader interface {
	AccountType(ctx context.Context, accountID string) (core.AccountType, error)
	MembersForAccount(ctx context.Context, accountID string) ([]core.SplitMember, error)
}

// SettingsReader serves per-user alert preferences and the set of users the
// worker iterates over.
type SettingsReader interface {
	Preferences(ctx context.Context, userID string) (core.AlertPreferences, error)
	Users(ctx context.Context) ([]string, error)
}

// NotificationStore is the sink side of the alert pipeline plus the recent
// history the deduplicator reads.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *core.Notification) error
	RecentNotifications(ctx context.Context, userID string, since time.Time) ([]core.Notification, error)
	NotificationsForUser(ctx context.Context, userID string, limit int) ([]core.Notification, error)
}
