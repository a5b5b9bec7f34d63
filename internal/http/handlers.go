package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/analytics"
	"github.com/lucasll37/guia-financeiro/internal/core"
	applog "github.com/lucasll37/guia-financeiro/internal/log"
)

type projectionsResponse struct {
	OwnerID  string                            `json:"owner_id"`
	Horizons map[int][]analytics.ProjectionRow `json:"horizons"`
	// Degraded lists investments whose return history could not be read;
	// their columns fall back to the flat principal balance.
	Degraded []string `json:"degraded,omitempty"`
}

// handleProjections returns the combined projection table for every
// investment of one owner, at the standard horizons. A failed history read
// degrades that one investment to its principal instead of failing the page.
func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "missing owner parameter")
		return
	}

	if cached, ok := s.projectionCache.Get(ownerID); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	invs, err := s.store.InvestmentsForOwner(r.Context(), ownerID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list investments", "owner_id", ownerID, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	seriesByInvestment := make(map[string][]core.MonthlyReturn, len(invs))
	var degraded []string
	for _, inv := range invs {
		series, err := s.store.ReturnsForInvestment(r.Context(), inv.ID)
		if err != nil {
			// An empty series projects the flat principal, so one broken
			// history never blocks the rest of the table.
			s.log.WarnContext(r.Context(), "Failed to list returns, degrading to principal",
				"investment_id", inv.ID, applog.FieldError, err)
			degraded = append(degraded, inv.ID)
			continue
		}
		seriesByInvestment[inv.ID] = series
	}

	resp := projectionsResponse{
		OwnerID:  ownerID,
		Horizons: analytics.ProjectAll(r.Context(), invs, seriesByInvestment, nil),
		Degraded: degraded,
	}
	// Degraded tables are not cached, so recovery shows up on the next load.
	if len(degraded) == 0 {
		s.projectionCache.Set(ownerID, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

type valueResponse struct {
	InvestmentID string  `json:"investment_id"`
	Name         string  `json:"name"`
	CurrentValue float64 `json:"current_value"`
	Degraded     bool    `json:"degraded,omitempty"`
}

// handleInvestmentValue returns one investment's current value: the latest
// recorded balance, or the principal when no returns exist yet. When the
// return history cannot be read the principal is served, flagged Degraded.
func (s *Server) handleInvestmentValue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	inv, err := s.store.Investment(r.Context(), id)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to get investment", "investment_id", id, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "investment not found")
		return
	}

	series, err := s.store.ReturnsForInvestment(r.Context(), id)
	degraded := err != nil
	if err != nil {
		s.log.WarnContext(r.Context(), "Failed to list returns, degrading to principal",
			"investment_id", id, applog.FieldError, err)
		series = nil
	}

	writeJSON(w, http.StatusOK, valueResponse{
		InvestmentID: inv.ID,
		Name:         inv.Name,
		CurrentValue: analytics.CurrentValue(*inv, series),
		Degraded:     degraded,
	})
}

type splitResponse struct {
	AccountID string                 `json:"account_id"`
	Total     float64                `json:"total"`
	Shares    []analytics.SplitShare `json:"shares"`
}

// handleSplit allocates a target total across the weighted members of a
// shared account.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account parameter")
		return
	}
	total, err := strconv.ParseFloat(r.URL.Query().Get("total"), 64)
	if err != nil || !core.IsFinite(total) {
		writeError(w, http.StatusBadRequest, "invalid total parameter")
		return
	}

	typ, err := s.store.AccountType(r.Context(), accountID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to get account", applog.FieldAccountID, accountID, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	if typ == "" {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if typ != core.AccountShared {
		writeError(w, http.StatusBadRequest, "revenue split applies to shared accounts only")
		return
	}

	members, err := s.store.MembersForAccount(r.Context(), accountID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list members", applog.FieldAccountID, accountID, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, splitResponse{
		AccountID: accountID,
		Total:     total,
		Shares:    analytics.CalculateSplit(members, total),
	})
}

// handleVariance returns the budget variance report for one account and
// period. Period defaults to the current calendar month.
func (s *Server) handleVariance(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account parameter")
		return
	}
	period := r.URL.Query().Get("period")
	if period == "" {
		period = core.PeriodOf(time.Now())
	} else if _, err := core.ParsePeriod(period); err != nil {
		writeError(w, http.StatusBadRequest, "invalid period parameter, want YYYY-MM")
		return
	}

	cacheKey := accountID + "|" + period
	if cached, ok := s.varianceCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	budgets, err := s.store.BudgetsForAccount(r.Context(), accountID, period)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list budgets",
			applog.FieldAccountID, accountID, applog.FieldPeriod, period, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	// The moving-average suggestion needs the account's full expense
	// history, not just the report period.
	txns, err := s.store.TransactionsForAccount(r.Context(), accountID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list transactions", applog.FieldAccountID, accountID, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	report := analytics.AnalyzeBudgets(txns, budgets, period)
	s.varianceCache.Set(cacheKey, report)
	writeJSON(w, http.StatusOK, report)
}

type evaluateRequest struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
}

type notificationJSON struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

func toNotificationJSON(ns []core.Notification) []notificationJSON {
	out := make([]notificationJSON, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationJSON{
			ID:        n.ID,
			UserID:    n.UserID,
			Type:      string(n.Type),
			Message:   n.Message,
			Metadata:  n.Metadata,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type evaluateResponse struct {
	Created     []notificationJSON `json:"created"`
	Suppressed  int                `json:"suppressed"`
	FailedRules []string           `json:"failed_rules,omitempty"`
}

// handleEvaluateAlerts runs one alert evaluation pass for a user, optionally
// scoped to one account. Suppressed duplicates are reported as a count so the
// caller can tell "already alerted" from "nothing fired".
func (s *Server) handleEvaluateAlerts(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.evaluator.Evaluate(r.Context(), req.UserID, req.AccountID, time.Now())
	if err != nil {
		if errors.Is(err, core.ErrEmptyUserID) {
			writeError(w, http.StatusBadRequest, "missing user_id")
			return
		}
		s.log.ErrorContext(r.Context(), "Alert evaluation failed", applog.FieldUserID, req.UserID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	resp := evaluateResponse{
		Created:    toNotificationJSON(result.Created),
		Suppressed: len(result.Suppressed),
	}
	for _, f := range result.Failed {
		resp.FailedRules = append(resp.FailedRules, f.Rule)
	}

	status := http.StatusOK
	if result.SinkFailed() {
		// Some notifications could not be persisted; the caller should retry.
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type notificationsResponse struct {
	UserID        string             `json:"user_id"`
	Notifications []notificationJSON `json:"notifications"`
}

// handleListNotifications returns a user's notifications, newest first.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	ns, err := s.store.NotificationsForUser(r.Context(), userID, limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list notifications", applog.FieldUserID, userID, applog.FieldError, err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, notificationsResponse{
		UserID:        userID,
		Notifications: toNotificationJSON(ns),
	})
}
