package analytics

import (
	"github.com/lucasll37/guia-financeiro/internal/core"
)

// SplitShare is one participant's slice of a shared account's expense total.
type SplitShare struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Weight     float64 `json:"weight"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// CalculateSplit allocates a target expense total across the weighted members
// of a shared account. Each member receives weight/totalWeight of the total;
// percentages always sum to 100 and amounts to the target, up to floating
// rounding.
//
// An empty member set, or one whose weights sum to zero, yields an empty
// result rather than a division error. Members with non-positive or
// non-numeric weights are left out of the allocation.
func CalculateSplit(members []core.SplitMember, totalExpenseTarget float64) []SplitShare {
	var totalWeight float64
	for _, m := range members {
		if !core.IsFinite(m.Weight) || m.Weight <= 0 {
			continue
		}
		totalWeight += m.Weight
	}
	if totalWeight == 0 {
		return nil
	}

	shares := make([]SplitShare, 0, len(members))
	for _, m := range members {
		if !core.IsFinite(m.Weight) || m.Weight <= 0 {
			continue
		}
		shares = append(shares, SplitShare{
			UserID:     m.UserID,
			Name:       m.Name,
			Email:      m.Email,
			Weight:     m.Weight,
			Percentage: 100 * m.Weight / totalWeight,
			Amount:     totalExpenseTarget * m.Weight / totalWeight,
		})
	}
	return shares
}
