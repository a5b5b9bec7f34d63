package alerts

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/lucasll37/guia-financeiro/internal/core"
)

// DefaultDedupWindow is how far back a matching notification suppresses a
// new candidate.
const DefaultDedupWindow = 24 * time.Hour

// Dedupe splits candidates into the ones to persist and the ones suppressed
// because an identical alert was already raised inside the window. A
// candidate is a duplicate when some recent notification has the same type
// and a structurally equal metadata payload, whatever the key order.
//
// recent must already be the same user's notifications; now is passed in
// explicitly so runs are deterministic and testable. A non-positive window
// falls back to DefaultDedupWindow.
func Dedupe(candidates []Candidate, recent []core.Notification, now time.Time, window time.Duration) (keep, suppressed []Candidate) {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	cutoff := now.Add(-window)

	for _, c := range candidates {
		if isDuplicate(c, recent, cutoff) {
			suppressed = append(suppressed, c)
		} else {
			keep = append(keep, c)
		}
	}
	return keep, suppressed
}

func isDuplicate(c Candidate, recent []core.Notification, cutoff time.Time) bool {
	for _, n := range recent {
		if n.Type != c.Type || n.CreatedAt.Before(cutoff) {
			continue
		}
		if metadataEqual(c.Metadata, n.Metadata) {
			return true
		}
	}
	return false
}

// metadataEqual compares two payloads structurally. Both sides are rendered
// as canonical JSON (encoding/json sorts map keys), which makes the check
// independent of key order and of int-vs-float representation of the same
// number.
func metadataEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	aj, erra := json.Marshal(a)
	bj, errb := json.Marshal(b)
	if erra != nil || errb != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
