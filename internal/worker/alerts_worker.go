// Package worker runs the periodic alert sweep: every interval, each known
// user is evaluated against the alert rules, scoped per account membership.
package worker

import (
	"context"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/alerts"
	applog "github.com/lucasll37/guia-financeiro/internal/log"
)

// Store lists the users and account memberships the sweep iterates over.
type Store interface {
	Users(ctx context.Context) ([]string, error)
	AccountsForUser(ctx context.Context, userID string) ([]string, error)
}

// Evaluator runs one alert pass. *alerts.Evaluator implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, userID, accountID string, now time.Time) (*alerts.Result, error)
}

// SweepStats aggregates one full sweep across all users.
type SweepStats struct {
	Users      int
	Created    int
	Suppressed int
	Failed     int
}

type AlertsWorker struct {
	store     Store
	evaluator Evaluator
	interval  time.Duration
	log       *applog.Logger
}

func NewAlertsWorker(store Store, evaluator Evaluator, interval time.Duration) *AlertsWorker {
	return &AlertsWorker{
		store:     store,
		evaluator: evaluator,
		interval:  interval,
		log:       applog.ForComponent(applog.ComponentWorker),
	}
}

// Sweep evaluates every known user once. Users with account memberships get
// one pass per account so the variance rule has its account scope; users
// without any get a single unscoped pass. A failing user never stops the
// sweep; repeated passes are safe because duplicates are suppressed.
func (w *AlertsWorker) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats

	users, err := w.store.Users(ctx)
	if err != nil {
		return stats, err
	}
	stats.Users = len(users)

	for _, userID := range users {
		accounts, err := w.store.AccountsForUser(ctx, userID)
		if err != nil {
			w.log.WarnContext(ctx, "Failed to list accounts for user",
				applog.FieldUserID, userID, applog.FieldError, err)
			stats.Failed++
			continue
		}
		if len(accounts) == 0 {
			accounts = []string{""}
		}

		for _, accountID := range accounts {
			result, err := w.evaluator.Evaluate(ctx, userID, accountID, now)
			if err != nil {
				w.log.WarnContext(ctx, "Alert evaluation failed",
					applog.FieldUserID, userID, applog.FieldAccountID, accountID, applog.FieldError, err)
				stats.Failed++
				continue
			}
			stats.Created += len(result.Created)
			stats.Suppressed += len(result.Suppressed)
			stats.Failed += len(result.Failed)
		}
	}

	return stats, nil
}

// Run sweeps once at startup and then on every tick until ctx is cancelled.
func (w *AlertsWorker) Run(ctx context.Context) {
	w.log.Info("Alert sweep configured", "interval", w.interval)

	if stats, err := w.Sweep(ctx, time.Now()); err != nil {
		w.log.Error("Initial alert sweep failed", applog.FieldError, err)
	} else {
		w.logSweep(stats)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Alert sweep stopped", "reason", ctx.Err())
			return
		case now := <-ticker.C:
			stats, err := w.Sweep(ctx, now)
			if err != nil {
				w.log.Error("Alert sweep failed", applog.FieldError, err)
				continue
			}
			w.logSweep(stats)
		}
	}
}

func (w *AlertsWorker) logSweep(stats SweepStats) {
	w.log.Info("Alert sweep complete",
		"users", stats.Users,
		"created", stats.Created,
		"suppressed", stats.Suppressed,
		"failed", stats.Failed)
}
