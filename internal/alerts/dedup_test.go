package alerts

import (
	"testing"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

func goalCandidate(goalID string, pct float64) Candidate {
	return Candidate{
		UserID:   "u1",
		Type:     core.TypeGoal,
		Message:  "A meta passou do prazo",
		Metadata: map[string]any{"goal_id": goalID, "percentage": pct},
	}
}

func TestDedupe(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		candidate      Candidate
		recent         []core.Notification
		wantSuppressed bool
	}{
		{
			name:      "identical payload one hour ago is suppressed",
			candidate: goalCandidate("g1", 40),
			recent: []core.Notification{{
				UserID:    "u1",
				Type:      core.TypeGoal,
				Metadata:  map[string]any{"goal_id": "g1", "percentage": 40.0},
				CreatedAt: now.Add(-1 * time.Hour),
			}},
			wantSuppressed: true,
		},
		{
			name:      "identical payload 25 hours ago is not suppressed",
			candidate: goalCandidate("g1", 40),
			recent: []core.Notification{{
				UserID:    "u1",
				Type:      core.TypeGoal,
				Metadata:  map[string]any{"goal_id": "g1", "percentage": 40.0},
				CreatedAt: now.Add(-25 * time.Hour),
			}},
			wantSuppressed: false,
		},
		{
			name:      "changed percentage is not suppressed",
			candidate: goalCandidate("g1", 40),
			recent: []core.Notification{{
				UserID:    "u1",
				Type:      core.TypeGoal,
				Metadata:  map[string]any{"goal_id": "g1", "percentage": 41.0},
				CreatedAt: now.Add(-1 * time.Hour),
			}},
			wantSuppressed: false,
		},
		{
			name:      "same payload but different type is not suppressed",
			candidate: goalCandidate("g1", 40),
			recent: []core.Notification{{
				UserID:    "u1",
				Type:      core.TypeBudgetAlert,
				Metadata:  map[string]any{"goal_id": "g1", "percentage": 40.0},
				CreatedAt: now.Add(-1 * time.Hour),
			}},
			wantSuppressed: false,
		},
		{
			name:           "no recent notifications",
			candidate:      goalCandidate("g1", 40),
			recent:         nil,
			wantSuppressed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keep, suppressed := Dedupe([]Candidate{tt.candidate}, tt.recent, now, DefaultDedupWindow)

			if tt.wantSuppressed {
				if len(suppressed) != 1 || len(keep) != 0 {
					t.Errorf("keep=%d suppressed=%d, want 0/1", len(keep), len(suppressed))
				}
			} else {
				if len(keep) != 1 || len(suppressed) != 0 {
					t.Errorf("keep=%d suppressed=%d, want 1/0", len(keep), len(suppressed))
				}
			}
		})
	}
}

func TestDedupe_KeyOrderIndependent(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	// Same structural payload, keys written in a different order. Go maps have
	// no order anyway, but the stored copy went through a JSON round trip and
	// comes back with float64 numbers; both must still compare equal.
	candidate := Candidate{
		UserID: "u1",
		Type:   core.TypeBudgetAlert,
		Metadata: map[string]any{
			"category_id": "food",
			"planned":     500.0,
			"spent":       650.0,
			"excess":      150.0,
		},
	}
	stored := core.Notification{
		UserID: "u1",
		Type:   core.TypeBudgetAlert,
		Metadata: map[string]any{
			"excess":      float64(150),
			"spent":       float64(650),
			"planned":     float64(500),
			"category_id": "food",
		},
		CreatedAt: now.Add(-2 * time.Hour),
	}

	keep, suppressed := Dedupe([]Candidate{candidate}, []core.Notification{stored}, now, 0)

	if len(suppressed) != 1 || len(keep) != 0 {
		t.Errorf("keep=%d suppressed=%d, want 0/1", len(keep), len(suppressed))
	}
}

func TestDedupe_PreservesOrderOfKept(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c1 := goalCandidate("g1", 10)
	c2 := goalCandidate("g2", 20)
	c3 := goalCandidate("g3", 30)
	recent := []core.Notification{{
		Type:      core.TypeGoal,
		Metadata:  map[string]any{"goal_id": "g2", "percentage": 20.0},
		CreatedAt: now.Add(-time.Hour),
	}}

	keep, suppressed := Dedupe([]Candidate{c1, c2, c3}, recent, now, DefaultDedupWindow)

	if len(keep) != 2 || keep[0].Metadata["goal_id"] != "g1" || keep[1].Metadata["goal_id"] != "g3" {
		t.Errorf("kept order broken: %+v", keep)
	}
	if len(suppressed) != 1 || suppressed[0].Metadata["goal_id"] != "g2" {
		t.Errorf("suppressed = %+v, want g2", suppressed)
	}
}
