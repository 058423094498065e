// Package experiment collapses A/B variant campaigns into a single
// frequency-cap identity and deterministically assigns visitors to
// variants. It uses consistent hashing so that:
//   - Same visitor always gets the same variant for an experiment
//   - Variants distribute approximately uniformly in aggregate
//   - A visitor is never reassigned while the experiment runs
package experiment

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// DedupKey returns the identity under which frequency counters are
// tracked for a campaign: the experiment ID when the campaign belongs
// to an experiment, otherwise the campaign ID. Two variants of one
// experiment therefore always share one frequency budget.
func DedupKey(c campaign.Campaign) string {
	if c.ExperimentID != "" {
		return c.ExperimentID
	}
	return c.ID
}

// Bucket returns a deterministic bucket (0-99) for the given visitor
// and experiment. The same visitorID + experimentID + salt combination
// always returns the same bucket. Returns -1 when visitorID is empty.
func Bucket(visitorID, experimentID, salt string) int {
	if visitorID == "" {
		return -1
	}
	key := visitorID + ":" + experimentID + ":" + salt
	hash := xxhash.Sum64String(key)
	return int(hash % 100)
}

// ResolveVariant returns the variant key the visitor is locked into
// for the experiment. Candidates are bucketed with equal weight; the
// candidate order does not matter (keys are sorted before slicing the
// bucket space). Returns "" when there are no candidates or no visitor
// context.
func ResolveVariant(visitorID, experimentID string, candidates []string, salt string) string {
	if len(candidates) == 0 {
		return ""
	}
	bucket := Bucket(visitorID, experimentID, salt)
	if bucket < 0 {
		return ""
	}

	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	width := 100 / len(sorted)
	if width == 0 {
		width = 1
	}
	idx := bucket / width
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// PickVariantCampaign selects, from a set of campaigns sharing one
// experiment, the one whose variant key the visitor is assigned to.
// Campaigns without an experiment pass through unchanged by callers;
// this helper only deals with sibling variant sets.
func PickVariantCampaign(visitorID string, siblings []campaign.Campaign, salt string) (campaign.Campaign, bool) {
	if len(siblings) == 0 {
		return campaign.Campaign{}, false
	}
	if len(siblings) == 1 {
		return siblings[0], true
	}

	keys := make([]string, 0, len(siblings))
	for _, c := range siblings {
		keys = append(keys, c.VariantKey)
	}
	want := ResolveVariant(visitorID, siblings[0].ExperimentID, keys, salt)
	if want == "" {
		// No visitor context: fall back to the first variant by key so
		// the response is still deterministic.
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].VariantKey < siblings[j].VariantKey })
		return siblings[0], true
	}
	for _, c := range siblings {
		if c.VariantKey == want {
			return c, true
		}
	}
	return siblings[0], true
}
