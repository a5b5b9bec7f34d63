package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lucasll37/guia-financeiro/internal/core"
	applog "github.com/lucasll37/guia-financeiro/internal/log"
)

// Store is the slice of the data-access boundary the evaluator needs.
// storage.SQLiteRepository implements it.
type Store interface {
	// Preferences returns the user's alert toggles. Users without a settings
	// row get defaults (everything enabled).
	Preferences(ctx context.Context, userID string) (core.AlertPreferences, error)

	// BudgetsForPeriod returns the user's budgets for one YYYY-MM period,
	// optionally restricted to one account.
	BudgetsForPeriod(ctx context.Context, userID, accountID, period string) ([]core.Budget, error)

	// TransactionsForPeriods returns the user's transactions falling in any
	// of the given periods, optionally restricted to one account.
	TransactionsForPeriods(ctx context.Context, userID, accountID string, periods ...string) ([]core.Transaction, error)

	// GoalsForOwner returns every goal owned by the user.
	GoalsForOwner(ctx context.Context, userID string) ([]core.Goal, error)

	// RecentNotifications returns the user's notifications created at or
	// after since, newest first.
	RecentNotifications(ctx context.Context, userID string, since time.Time) ([]core.Notification, error)

	// CreateNotification persists a notification, assigning ID and CreatedAt
	// when unset.
	CreateNotification(ctx context.Context, n *core.Notification) error
}

// Publisher fans a persisted notification out to the delivery queue.
type Publisher interface {
	PublishNotification(ctx context.Context, n core.Notification) error
}

// RuleFailure records a rule (or pipeline stage) that could not run because
// its data fetch or write failed. The other rules still complete.
type RuleFailure struct {
	Rule string
	Err  error
}

// Result reports one evaluation pass. Suppressed keeps duplicate candidates
// visible so "already alerted" is distinguishable from "rule did not fire".
type Result struct {
	Created    []core.Notification
	Suppressed []Candidate
	Failed     []RuleFailure
}

// Evaluator runs the alert rules for one user against the storage boundary
// and persists whatever survives deduplication. It holds no per-run state, so
// a single instance serves all users.
type Evaluator struct {
	store     Store
	publisher Publisher // nil disables fan-out
	rules     Rules
	window    time.Duration
	log       *applog.Logger
}

// NewEvaluator wires an evaluator. publisher may be nil; a non-positive
// window falls back to DefaultDedupWindow.
func NewEvaluator(store Store, publisher Publisher, rules Rules, window time.Duration) *Evaluator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Evaluator{
		store:     store,
		publisher: publisher,
		rules:     rules,
		window:    window,
		log:       applog.ForComponent(applog.ComponentAlerts),
	}
}

// Evaluate runs one pass for a user, optionally scoped to a single account
// (required for the variance rule). Rules run independently: a failed fetch
// aborts only the rule that needed it and is reported in Result.Failed.
// Evaluation is safe to re-run opportunistically; duplicates within the
// window are suppressed, not re-inserted.
func (e *Evaluator) Evaluate(ctx context.Context, userID, accountID string, now time.Time) (*Result, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}

	result := &Result{}

	prefs, err := e.store.Preferences(ctx, userID)
	if err != nil {
		// Fall back to defaults so a settings hiccup doesn't silence alerts.
		e.log.WarnContext(ctx, "Failed to load alert preferences, using defaults",
			applog.FieldUserID, userID, applog.FieldError, err)
		result.Failed = append(result.Failed, RuleFailure{Rule: "preferences", Err: err})
		prefs = core.DefaultPreferences(userID)
	}

	period := core.PeriodOf(now)
	prevPeriod := core.PeriodOf(now.AddDate(0, -1, 0))

	var (
		budgetCands, goalCands, varianceCands []Candidate
		budgetErr, goalErr, varianceErr       error
	)

	// Each rule reads only its own slice of data; they never short-circuit
	// each other, so run them concurrently and collect errors per rule.
	g := new(errgroup.Group)
	if prefs.BudgetAlerts {
		g.Go(func() error {
			budgets, err := e.store.BudgetsForPeriod(ctx, userID, accountID, period)
			if err != nil {
				budgetErr = fmt.Errorf("fetch budgets: %w", err)
				return nil
			}
			txns, err := e.store.TransactionsForPeriods(ctx, userID, accountID, period)
			if err != nil {
				budgetErr = fmt.Errorf("fetch transactions: %w", err)
				return nil
			}
			budgetCands = e.rules.BudgetOverruns(userID, now, budgets, txns)
			return nil
		})
	}
	if prefs.GoalAlerts {
		g.Go(func() error {
			goals, err := e.store.GoalsForOwner(ctx, userID)
			if err != nil {
				goalErr = fmt.Errorf("fetch goals: %w", err)
				return nil
			}
			goalCands = e.rules.OverdueGoals(userID, now, goals)
			return nil
		})
	}
	if prefs.VarianceAlerts && accountID != "" {
		g.Go(func() error {
			txns, err := e.store.TransactionsForPeriods(ctx, userID, accountID, period, prevPeriod)
			if err != nil {
				varianceErr = fmt.Errorf("fetch transactions: %w", err)
				return nil
			}
			varianceCands = e.rules.ExpenseVariance(userID, accountID, now, txns)
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range []RuleFailure{
		{Rule: RuleBudgetOverrun, Err: budgetErr},
		{Rule: RuleGoalOverdue, Err: goalErr},
		{Rule: RuleExpenseVariance, Err: varianceErr},
	} {
		if f.Err != nil {
			e.log.WarnContext(ctx, "Alert rule aborted",
				applog.FieldRule, f.Rule, applog.FieldUserID, userID, applog.FieldError, f.Err)
			result.Failed = append(result.Failed, f)
		}
	}

	// Stable candidate order: budget -> goal -> variance.
	candidates := make([]Candidate, 0, len(budgetCands)+len(goalCands)+len(varianceCands))
	candidates = append(candidates, budgetCands...)
	candidates = append(candidates, goalCands...)
	candidates = append(candidates, varianceCands...)
	if len(candidates) == 0 {
		return result, nil
	}

	recent, err := e.store.RecentNotifications(ctx, userID, now.Add(-e.window))
	if err != nil {
		// Without the recent history there is no safe way to dedupe, so the
		// whole pass persists nothing rather than risking an alert storm.
		result.Failed = append(result.Failed, RuleFailure{Rule: "dedup", Err: err})
		return result, nil
	}

	keep, suppressed := Dedupe(candidates, recent, now, e.window)
	result.Suppressed = suppressed

	for _, c := range keep {
		n := core.Notification{
			UserID:    c.UserID,
			Type:      c.Type,
			Message:   c.Message,
			Metadata:  c.Metadata,
			CreatedAt: now,
		}
		if err := e.store.CreateNotification(ctx, &n); err != nil {
			result.Failed = append(result.Failed, RuleFailure{Rule: "sink", Err: err})
			continue
		}
		result.Created = append(result.Created, n)

		if e.publisher != nil {
			if err := e.publisher.PublishNotification(ctx, n); err != nil {
				// Fan-out is best-effort; the notification is already persisted.
				e.log.WarnContext(ctx, "Failed to publish notification event",
					"notification_id", n.ID, applog.FieldError, err)
			}
		}
	}

	e.log.InfoContext(ctx, "Alert evaluation pass complete",
		applog.FieldUserID, userID,
		applog.FieldAccountID, accountID,
		"created", len(result.Created),
		"suppressed", len(result.Suppressed),
		"failed_rules", len(result.Failed))

	return result, nil
}

// SinkFailed reports whether any notification insert failed during the pass,
// which tells the caller the pass should be retried later.
func (r *Result) SinkFailed() bool {
	for _, f := range r.Failed {
		if f.Rule == "sink" {
			return true
		}
	}
	return false
}

// Err flattens the pass failures into one error, or nil when everything ran.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Rule, f.Err))
	}
	return errors.Join(errs...)
}
