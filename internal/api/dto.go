package api

import (
	"github.com/popsmart/campaign-engine/internal/campaign"
	"github.com/popsmart/campaign-engine/internal/commerce"
)

// clientCampaign is the storefront-safe projection of a campaign. The
// full targeting rule set must never leak to the widget; only the
// extracted client-side triggers and the fields the local display gate
// needs are exposed. Wheel segments lose their probabilities and
// discount configs, the draw happens server-side.
type clientCampaign struct {
	ID              string               `json:"id"`
	TemplateType    string               `json:"templateType"`
	Priority        int                  `json:"priority"`
	ExperimentID    string               `json:"experimentId,omitempty"`
	VariantKey      string               `json:"variantKey,omitempty"`
	Triggers        map[string]any       `json:"triggers,omitempty"`
	CooldownSeconds int                  `json:"cooldownSeconds,omitempty"`
	Segments        []clientWheelSegment `json:"segments,omitempty"`
	Preview         bool                 `json:"preview,omitempty"`
}

type clientWheelSegment struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

func toClientCampaign(c campaign.Campaign) clientCampaign {
	out := clientCampaign{
		ID:           c.ID,
		TemplateType: c.TemplateType,
		Priority:     c.Priority,
		ExperimentID: c.ExperimentID,
		VariantKey:   c.VariantKey,
		Triggers:     c.TargetRules.Triggers,
		Preview:      c.Preview,
	}
	if c.Capping.Enabled {
		out.CooldownSeconds = c.Capping.CooldownSeconds
	}
	for _, seg := range c.Segments {
		out.Segments = append(out.Segments, clientWheelSegment{ID: seg.ID, Label: seg.Label})
	}
	return out
}

func issueRequest(c campaign.Campaign, email string, d campaign.DiscountConfig) commerce.Request {
	return commerce.Request{
		StoreID:    c.StoreID,
		CampaignID: c.ID,
		Email:      email,
		Discount:   d,
	}
}

func toClientCampaigns(campaigns []campaign.Campaign) []clientCampaign {
	out := make([]clientCampaign, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, toClientCampaign(c))
	}
	return out
}
