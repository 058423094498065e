package pipeline

import (
	"sort"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// TieBreak selects the secondary sort key for equal-priority campaigns.
type TieBreak string

const (
	// TieBreakID orders equal priorities by campaign ID ascending.
	TieBreakID TieBreak = "id"
	// TieBreakCreatedAt orders equal priorities oldest-first.
	TieBreakCreatedAt TieBreak = "created_at"
)

// Rank orders campaigns by priority descending. Ties are broken by a
// stable deterministic secondary key so repeated calls with the same
// eligible set return an identical order. The input slice is not
// mutated.
func Rank(campaigns []campaign.Campaign, tieBreak TieBreak) []campaign.Campaign {
	ranked := make([]campaign.Campaign, len(campaigns))
	copy(ranked, campaigns)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		if tieBreak == TieBreakCreatedAt && !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}
