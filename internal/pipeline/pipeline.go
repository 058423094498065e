// Package pipeline composes targeting, experiment dedup, frequency
// capping and priority ranking into the campaign admission contract:
// given a store's active campaigns and one visitor's request context,
// return the ranked set of campaigns that may be shown right now.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/experiment"
	"github.com/popsmart/campaign-engine/internal/frequency"
	"github.com/popsmart/campaign-engine/internal/targeting"
	"github.com/popsmart/campaign-engine/internal/telemetry"
)

// Options configures a Pipeline.
type Options struct {
	// BucketSalt seeds deterministic variant assignment.
	BucketSalt string
	// TieBreak selects the secondary priority sort key.
	TieBreak TieBreak
	// VisitorImpressionCap is a store-wide daily cap on impressions per
	// visitor. 0 disables it.
	VisitorImpressionCap int
}

// Pipeline is the admission orchestrator. It is stateless per request
// apart from the shared counter store.
type Pipeline struct {
	caps frequency.Store
	opts Options
	log  zerolog.Logger
}

// New creates a Pipeline over the given counter store.
func New(caps frequency.Store, opts Options, log zerolog.Logger) *Pipeline {
	if opts.TieBreak == "" {
		opts.TieBreak = TieBreakID
	}
	return &Pipeline{caps: caps, opts: opts, log: log}
}

// Filter returns the ranked list of campaigns admissible for the
// request. The contract is "always return a valid, possibly-empty
// list": single-campaign evaluation failures are logged and excluded,
// a counter-store outage disables capping for the request, and an
// unresolvable store or an exceeded store-wide impression cap yields
// an empty list.
//
// Preview requests bypass targeting and capping entirely and return
// the previewed campaign as a singleton.
func (p *Pipeline) Filter(ctx context.Context, campaigns []campaign.Campaign, rc campaign.RequestContext) []campaign.Campaign {
	if rc.IsPreview() {
		return p.preview(campaigns, rc)
	}
	if rc.StoreID == "" {
		return []campaign.Campaign{}
	}

	if p.opts.VisitorImpressionCap > 0 && rc.VisitorID != "" {
		total, err := p.caps.VisitorImpressions(ctx, rc.StoreID, rc.VisitorID)
		if err != nil {
			p.log.Warn().Err(err).Msg("visitor impression count unavailable, skipping store-wide cap")
		} else if total >= p.opts.VisitorImpressionCap {
			return []campaign.Campaign{}
		}
	}

	results := p.Evaluate(ctx, campaigns, rc)
	eligible := make([]campaign.Campaign, 0, len(results))
	for _, res := range results {
		if res.Reason == "" {
			eligible = append(eligible, res.Campaign)
		}
	}
	return Rank(p.lockVariants(eligible, rc), p.opts.TieBreak)
}

// lockVariants collapses each experiment's sibling variants to the one
// the visitor is bucketed into. Campaigns outside experiments pass
// through untouched.
func (p *Pipeline) lockVariants(eligible []campaign.Campaign, rc campaign.RequestContext) []campaign.Campaign {
	siblings := make(map[string][]campaign.Campaign)
	out := make([]campaign.Campaign, 0, len(eligible))
	for _, c := range eligible {
		if c.ExperimentID == "" {
			out = append(out, c)
			continue
		}
		siblings[c.ExperimentID] = append(siblings[c.ExperimentID], c)
	}
	for _, group := range siblings {
		if picked, ok := experiment.PickVariantCampaign(rc.VisitorID, group, p.opts.BucketSalt); ok {
			out = append(out, picked)
		}
	}
	return out
}

// Evaluate runs admission checks for every campaign and returns one
// Eligibility per input, with Reason set on exclusions. Used by Filter
// and by the dry-run CLI surface.
func (p *Pipeline) Evaluate(ctx context.Context, campaigns []campaign.Campaign, rc campaign.RequestContext) []campaign.Eligibility {
	results := make([]campaign.Eligibility, 0, len(campaigns))
	for _, c := range campaigns {
		results = append(results, p.evaluateOne(ctx, c, rc))
	}
	return results
}

func (p *Pipeline) evaluateOne(ctx context.Context, c campaign.Campaign, rc campaign.RequestContext) (result campaign.Eligibility) {
	result = campaign.Eligibility{Campaign: c}

	// A panic while evaluating one campaign must not abort the rest of
	// the request.
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("campaign", c.ID).Interface("panic", r).Msg("campaign evaluation panicked")
			result.Reason = campaign.ReasonEvalError
			telemetry.Exclusions.WithLabelValues(campaign.ReasonEvalError).Inc()
		}
	}()

	if c.Status != campaign.StatusActive {
		return p.exclude(result, campaign.ReasonInactive)
	}

	ok, err := targeting.IsEligible(c, rc)
	if err != nil {
		p.log.Warn().Err(err).Str("campaign", c.ID).Msg("targeting rule failed, excluding campaign")
		return p.exclude(result, campaign.ReasonEvalError)
	}
	if !ok {
		return p.exclude(result, campaign.ReasonTargeting)
	}

	if !c.Capping.Enabled {
		telemetry.Admissions.Inc()
		return result
	}

	// Capped campaigns require a visitor identity; without one the
	// conservative answer is deny.
	if rc.VisitorID == "" {
		return p.exclude(result, campaign.ReasonNoVisitor)
	}

	decision := p.caps.CheckAndReserve(ctx, frequency.Key{
		StoreID:   rc.StoreID,
		VisitorID: rc.VisitorID,
		DedupKey:  experiment.DedupKey(c),
		SessionID: rc.SessionID,
	}, c.Capping)
	if decision.Degraded {
		telemetry.DegradedChecks.Inc()
	}
	if !decision.Allowed {
		return p.exclude(result, campaign.ReasonCapped)
	}

	telemetry.Admissions.Inc()
	return result
}

func (p *Pipeline) exclude(result campaign.Eligibility, reason string) campaign.Eligibility {
	result.Reason = reason
	telemetry.Exclusions.WithLabelValues(reason).Inc()
	return result
}

// RecordShown records an actual render against the campaign's dedup
// identity. It must be called once per render, after the popup is on
// screen, never merely after an eligibility check.
func (p *Pipeline) RecordShown(ctx context.Context, c campaign.Campaign, rc campaign.RequestContext) error {
	if rc.VisitorID == "" {
		return fmt.Errorf("record shown: missing visitor id")
	}
	return p.caps.RecordShown(ctx, frequency.Key{
		StoreID:   rc.StoreID,
		VisitorID: rc.VisitorID,
		DedupKey:  experiment.DedupKey(c),
		SessionID: rc.SessionID,
	}, c.Capping)
}

// preview returns the previewed campaign with all checks bypassed.
func (p *Pipeline) preview(campaigns []campaign.Campaign, rc campaign.RequestContext) []campaign.Campaign {
	for _, c := range campaigns {
		if c.ID == rc.PreviewID {
			c.Preview = true
			return []campaign.Campaign{c}
		}
	}
	return []campaign.Campaign{}
}
