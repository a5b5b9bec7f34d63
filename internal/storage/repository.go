package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lucasll37/guia-financeiro/internal/core"
	applog "github.com/lucasll37/guia-financeiro/internal/log"
)

const dateLayout = "2006-01-02"

// SQLiteRepository implements every storage interface over one SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	log *applog.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// runs pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		log: applog.ForComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- investments & returns ---

func (r *SQLiteRepository) CreateInvestment(ctx context.Context, inv *core.Investment) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO investments (id, owner_id, name, type, balance) VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.OwnerID, inv.Name, inv.Type, inv.Balance)
	if err != nil {
		return fmt.Errorf("create investment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Investment(ctx context.Context, id string) (*core.Investment, error) {
	inv := &core.Investment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, type, balance FROM investments WHERE id = ?`, id).
		Scan(&inv.ID, &inv.OwnerID, &inv.Name, &inv.Type, &inv.Balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get investment: %w", err)
	}
	return inv, nil
}

func (r *SQLiteRepository) InvestmentsForOwner(ctx context.Context, ownerID string) ([]core.Investment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, type, balance FROM investments WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []core.Investment
	for rows.Next() {
		var inv core.Investment
		if err := rows.Scan(&inv.ID, &inv.OwnerID, &inv.Name, &inv.Type, &inv.Balance); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed investment row", "owner_id", ownerID, applog.FieldError, err)
			continue
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpsertMonthlyReturn normalizes the month to its first day before writing, so
// the (investment, month) uniqueness holds regardless of the input day.
func (r *SQLiteRepository) UpsertMonthlyReturn(ctx context.Context, ret core.MonthlyReturn) error {
	if !core.IsFinite(ret.BalanceAfter) || !core.IsFinite(ret.ActualReturn) {
		return core.ErrInvalidAmount
	}
	month := core.MonthStart(ret.Month).Format(dateLayout)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monthly_returns (investment_id, month, balance_after, actual_return)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (investment_id, month) DO UPDATE SET
		   balance_after = excluded.balance_after,
		   actual_return = excluded.actual_return`,
		ret.InvestmentID, month, ret.BalanceAfter, ret.ActualReturn)
	if err != nil {
		return fmt.Errorf("upsert monthly return: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReturnsForInvestment(ctx context.Context, investmentID string) ([]core.MonthlyReturn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT investment_id, month, balance_after, actual_return
		 FROM monthly_returns WHERE investment_id = ? ORDER BY month`, investmentID)
	if err != nil {
		return nil, fmt.Errorf("list monthly returns: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyReturn
	for rows.Next() {
		var (
			ret   core.MonthlyReturn
			month string
		)
		if err := rows.Scan(&ret.InvestmentID, &month, &ret.BalanceAfter, &ret.ActualReturn); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed return row", "investment_id", investmentID, applog.FieldError, err)
			continue
		}
		ret.Month, err = time.Parse(dateLayout, month)
		if err != nil {
			r.log.WarnContext(ctx, "Skipping return row with bad month", "investment_id", investmentID, "month", month)
			continue
		}
		out = append(out, ret)
	}
	return out, rows.Err()
}

// --- accounts & members ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, id, name string, typ core.AccountType) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, type) VALUES (?, ?, ?)`, id, name, string(typ))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AccountType(ctx context.Context, accountID string) (core.AccountType, error) {
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT type FROM accounts WHERE id = ?`, accountID).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get account type: %w", err)
	}
	return core.AccountType(typ), nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.SplitMember) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_members (account_id, user_id, name, email, weight)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, user_id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, weight = excluded.weight`,
		m.AccountID, m.UserID, m.Name, m.Email, m.Weight)
	if err != nil {
		return fmt.Errorf("add account member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MembersForAccount(ctx context.Context, accountID string) ([]core.SplitMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, user_id, name, email, weight
		 FROM account_members WHERE account_id = ? ORDER BY user_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account members: %w", err)
	}
	defer rows.Close()

	var out []core.SplitMember
	for rows.Next() {
		var m core.SplitMember
		if err := rows.Scan(&m.AccountID, &m.UserID, &m.Name, &m.Email, &m.Weight); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed member row", applog.FieldAccountID, accountID, applog.FieldError, err)
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- budgets & transactions ---

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (account_id, category_id, period, amount_planned)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id, category_id, period) DO UPDATE SET
		   amount_planned = excluded.amount_planned`,
		b.AccountID, b.CategoryID, b.Period, b.AmountPlanned)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BudgetsForAccount(ctx context.Context, accountID, period string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, category_id, period, amount_planned
		 FROM budgets WHERE account_id = ? AND period = ? ORDER BY category_id`, accountID, period)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	return r.scanBudgets(ctx, rows)
}

// BudgetsForPeriod scopes to one account when accountID is set, otherwise to
// every account the user is a member of.
func (r *SQLiteRepository) BudgetsForPeriod(ctx context.Context, userID, accountID, period string) ([]core.Budget, error) {
	if accountID != "" {
		return r.BudgetsForAccount(ctx, accountID, period)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.account_id, b.category_id, b.period, b.amount_planned
		 FROM budgets b
		 JOIN account_members m ON m.account_id = b.account_id
		 WHERE m.user_id = ? AND b.period = ?
		 ORDER BY b.account_id, b.category_id`, userID, period)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()
	return r.scanBudgets(ctx, rows)
}

func (r *SQLiteRepository) scanBudgets(ctx context.Context, rows *sql.Rows) ([]core.Budget, error) {
	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.AccountID, &b.CategoryID, &b.Period, &b.AmountPlanned); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed budget row", applog.FieldError, err)
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx *core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, category_id, type, amount, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.CategoryID, string(tx.Type), tx.Amount, tx.Date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) TransactionsForAccount(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, category_id, type, amount, date
		 FROM transactions WHERE account_id = ? ORDER BY date`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return r.scanTransactions(ctx, rows)
}

// TransactionsForPeriods returns movements falling in any of the YYYY-MM
// periods, scoped like BudgetsForPeriod.
func (r *SQLiteRepository) TransactionsForPeriods(ctx context.Context, userID, accountID string, periods ...string) ([]core.Transaction, error) {
	if len(periods) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(periods)), ", ")
	args := make([]any, 0, len(periods)+1)

	var query string
	if accountID != "" {
		query = `SELECT id, account_id, category_id, type, amount, date
		 FROM transactions
		 WHERE account_id = ? AND substr(date, 1, 7) IN (` + placeholders + `)
		 ORDER BY date`
		args = append(args, accountID)
	} else {
		query = `SELECT t.id, t.account_id, t.category_id, t.type, t.amount, t.date
		 FROM transactions t
		 JOIN account_members m ON m.account_id = t.account_id
		 WHERE m.user_id = ? AND substr(t.date, 1, 7) IN (` + placeholders + `)
		 ORDER BY t.date`
		args = append(args, userID)
	}
	for _, p := range periods {
		args = append(args, p)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return r.scanTransactions(ctx, rows)
}

func (r *SQLiteRepository) scanTransactions(ctx context.Context, rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			tx   core.Transaction
			typ  string
			date string
		)
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.CategoryID, &typ, &tx.Amount, &date); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed transaction row", applog.FieldError, err)
			continue
		}
		tx.Type = core.TransactionType(typ)
		var err error
		tx.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			r.log.WarnContext(ctx, "Skipping transaction with bad date", "id", tx.ID, "date", date)
			continue
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- goals ---

func (r *SQLiteRepository) CreateGoal(ctx context.Context, g *core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	var deadline sql.NullString
	if g.Deadline != nil {
		deadline = sql.NullString{String: g.Deadline.Format(dateLayout), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, owner_id, name, target_amount, current_amount, deadline)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Name, g.TargetAmount, g.CurrentAmount, deadline)
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GoalsForOwner(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, target_amount, current_amount, deadline
		 FROM goals WHERE owner_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g        core.Goal
			deadline sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed goal row", "owner_id", userID, applog.FieldError, err)
			continue
		}
		if deadline.Valid {
			t, err := time.Parse(dateLayout, deadline.String)
			if err != nil {
				r.log.WarnContext(ctx, "Skipping goal with bad deadline", "id", g.ID, "deadline", deadline.String)
				continue
			}
			g.Deadline = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// --- notifications ---

// CreateNotification persists n, assigning ID and CreatedAt when unset. The
// notifications table is append-only from the engine's side.
func (r *SQLiteRepository) CreateNotification(ctx context.Context, n *core.Notification) error {
	if n.UserID == "" {
		return core.ErrEmptyUserID
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	metadata := []byte("{}")
	if n.Metadata != nil {
		var err error
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshal notification metadata: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, message, metadata, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Type), n.Message, string(metadata), n.Read, n.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	r.log.InfoContext(ctx, "Notification saved",
		"id", n.ID,
		applog.FieldUserID, n.UserID,
		"type", n.Type)
	return nil
}

func (r *SQLiteRepository) RecentNotifications(ctx context.Context, userID string, since time.Time) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, message, metadata, is_read, created_at
		 FROM notifications
		 WHERE user_id = ? AND created_at >= ?
		 ORDER BY created_at DESC`, userID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("list recent notifications: %w", err)
	}
	defer rows.Close()
	return r.scanNotifications(ctx, rows)
}

func (r *SQLiteRepository) NotificationsForUser(ctx context.Context, userID string, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, message, metadata, is_read, created_at
		 FROM notifications
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return r.scanNotifications(ctx, rows)
}

func (r *SQLiteRepository) scanNotifications(ctx context.Context, rows *sql.Rows) ([]core.Notification, error) {
	var out []core.Notification
	for rows.Next() {
		var (
			n        core.Notification
			typ      string
			metadata string
			created  int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Message, &metadata, &n.Read, &created); err != nil {
			r.log.WarnContext(ctx, "Skipping malformed notification row", applog.FieldError, err)
			continue
		}
		n.Type = core.NotificationType(typ)
		n.CreatedAt = time.Unix(created, 0).UTC()
		if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
			r.log.WarnContext(ctx, "Skipping notification with bad metadata", "id", n.ID, applog.FieldError, err)
			continue
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- settings ---

func (r *SQLiteRepository) SavePreferences(ctx context.Context, p core.AlertPreferences) error {
	if p.UserID == "" {
		return core.ErrEmptyUserID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, budget_alerts, goal_alerts, variance_alerts)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   budget_alerts = excluded.budget_alerts,
		   goal_alerts = excluded.goal_alerts,
		   variance_alerts = excluded.variance_alerts`,
		p.UserID, p.BudgetAlerts, p.GoalAlerts, p.VarianceAlerts)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Preferences returns the stored toggles, or the enabled-everything defaults
// for users without a settings row.
func (r *SQLiteRepository) Preferences(ctx context.Context, userID string) (core.AlertPreferences, error) {
	p := core.AlertPreferences{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT budget_alerts, goal_alerts, variance_alerts FROM user_settings WHERE user_id = ?`, userID).
		Scan(&p.BudgetAlerts, &p.GoalAlerts, &p.VarianceAlerts)
	if err == sql.ErrNoRows {
		return core.DefaultPreferences(userID), nil
	}
	if err != nil {
		return core.AlertPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// AccountsForUser lists the ids of the accounts the user is a member of.
func (r *SQLiteRepository) AccountsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id FROM account_members WHERE user_id = ? ORDER BY account_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user accounts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Users lists every user id known to the system, for the worker's sweep.
func (r *SQLiteRepository) Users(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM account_members
		 UNION
		 SELECT user_id FROM user_settings
		 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
