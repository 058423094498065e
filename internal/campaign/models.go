// Package campaign defines the core domain types shared across the
// admission pipeline: campaigns, targeting rules, frequency caps, and
// the per-request visitor context.
package campaign

import "time"

// Status represents the lifecycle state of a campaign.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusDraft    Status = "DRAFT"
	StatusArchived Status = "ARCHIVED"
)

// Template types with gamified reward mechanics.
const (
	TemplateSpinToWin   = "spin_to_win"
	TemplateScratchCard = "scratch_card"
	TemplateDiscount    = "discount"
	TemplateNewsletter  = "newsletter"
)

// Campaign is a promotional overlay definition. It is read-only to the
// admission pipeline: campaigns are treated as immutable snapshots for
// the duration of one evaluation.
type Campaign struct {
	ID           string `json:"id"`
	StoreID      string `json:"storeId"`
	Name         string `json:"name"`
	Priority     int    `json:"priority"`
	Status       Status `json:"status"`
	TemplateType string `json:"templateType"`

	TargetRules  TargetRules      `json:"targetRules"`
	ExperimentID string           `json:"experimentId,omitempty"`
	VariantKey   string           `json:"variantKey,omitempty"` // A, B, C or D
	Capping      FrequencyCapping `json:"frequencyCapping"`

	// Segments is the reward wheel for gamified template types.
	Segments []WheelSegment `json:"segments,omitempty"`

	// Preview marks a campaign returned by a preview-token request.
	// Preview campaigns bypass targeting, capping and the client gate.
	Preview bool `json:"preview,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsGamified reports whether the campaign awards a prize via a
// server-side weighted draw.
func (c Campaign) IsGamified() bool {
	return c.TemplateType == TemplateSpinToWin || c.TemplateType == TemplateScratchCard
}

// FrequencyCapping limits how often one visitor may be shown a
// campaign. Zero values for individual limits mean "no limit on that
// axis"; Enabled=false disables capping entirely.
type FrequencyCapping struct {
	Enabled               bool `json:"enabled"`
	MaxTriggersPerSession int  `json:"maxTriggersPerSession"`
	MaxTriggersPerDay     int  `json:"maxTriggersPerDay"`
	CooldownSeconds       int  `json:"cooldownSeconds"`
}

// TargetRules bundles all server-side eligibility predicates plus the
// client-safe trigger configuration that may be exposed to storefronts.
type TargetRules struct {
	Enabled  bool              `json:"enabled"`
	Pages    PageTargeting     `json:"pages"`
	Audience AudienceTargeting `json:"audience"`
	// Devices restricts the campaign to the listed device types
	// (e.g. "desktop", "mobile"). Empty means all devices.
	Devices []string `json:"devices,omitempty"`
	// Triggers holds client-side display triggers (exit intent, delay,
	// scroll depth). This is the only part of TargetRules that is safe
	// to expose to the storefront widget.
	Triggers map[string]any `json:"triggers,omitempty"`
}

// PageTargeting selects pages by type, URL wildcard pattern, or raw
// regular expression. Any exclude match disqualifies regardless of
// includes.
type PageTargeting struct {
	PageTypes    []string `json:"pageTypes,omitempty"`
	IncludeURLs  []string `json:"includeUrls,omitempty"` // wildcard patterns, * matches any run
	ExcludeURLs  []string `json:"excludeUrls,omitempty"`
	IncludeRegex []string `json:"includeRegex,omitempty"`
	ExcludeRegex []string `json:"excludeRegex,omitempty"`
}

// Combinator joins audience conditions.
type Combinator string

const (
	CombinatorAnd Combinator = "and"
	CombinatorOr  Combinator = "or"
)

// AudienceTargeting matches visitor attributes. Conditions are joined
// by Combinator; Segments matches against the visitor's segment list;
// Expression is an optional raw JSON Logic rule evaluated against the
// full attribute map. All configured parts must pass.
type AudienceTargeting struct {
	Enabled    bool        `json:"enabled"`
	Combinator Combinator  `json:"combinator,omitempty"` // defaults to "and"
	Conditions []Condition `json:"conditions,omitempty"`
	Segments   []string    `json:"segments,omitempty"`
	Expression string      `json:"expression,omitempty"`
}

// Condition is a single typed audience predicate.
type Condition struct {
	Property string   `json:"property"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Operator represents a comparison operator used in audience conditions.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "not_equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpRegex      Operator = "regex"
	OpGT         Operator = "gt"
	OpLT         Operator = "lt"
	OpGTE        Operator = "gte"
	OpLTE        Operator = "lte"
	OpInList     Operator = "in_list"
	OpNotInList  Operator = "not_in_list"
	OpVersionGT  Operator = "version_gt"
	OpVersionLT  Operator = "version_lt"
)

// WheelSegment is one reward slot on a gamified campaign. Probability
// is a non-negative weight; weights need not sum to 1.
type WheelSegment struct {
	ID          string          `json:"id"`
	Label       string          `json:"label"`
	Probability float64         `json:"probability"`
	Discount    *DiscountConfig `json:"discountConfig,omitempty"`
}

// DiscountConfig describes the discount a prize or campaign grants.
// Codes themselves are issued by the commerce collaborator.
type DiscountConfig struct {
	Type  string  `json:"type"` // "percentage" or "fixed_amount"
	Value float64 `json:"value"`
	// ExpiresInHours limits code validity; 0 means no expiry.
	ExpiresInHours int `json:"expiresInHours,omitempty"`
}

// RequestContext carries one storefront page view through the pipeline.
type RequestContext struct {
	StoreID    string `json:"storeId"`
	VisitorID  string `json:"visitorId"`
	SessionID  string `json:"sessionId"`
	PageType   string `json:"pageType"`
	PageURL    string `json:"pageUrl"`
	DeviceType string `json:"deviceType"`

	// Segments lists audience segments the visitor belongs to.
	Segments []string `json:"segments,omitempty"`
	// Attributes holds any additional visitor attributes for audience
	// condition and expression evaluation.
	Attributes map[string]any `json:"attributes,omitempty"`

	// PreviewID, when set, requests a single campaign with all
	// targeting and capping bypassed.
	PreviewID string `json:"previewId,omitempty"`
}

// IsPreview reports whether the request should bypass admission checks.
func (rc RequestContext) IsPreview() bool { return rc.PreviewID != "" }

// Exclusion reasons recorded on EligibilityResult entries.
const (
	ReasonInactive  = "INACTIVE"
	ReasonTargeting = "TARGETING_MISMATCH"
	ReasonCapped    = "FREQUENCY_CAPPED"
	ReasonNoVisitor = "NO_VISITOR_ID"
	ReasonEvalError = "EVALUATION_ERROR"
)

// Eligibility is one per-request, per-campaign admission outcome.
// Reason is populated only on exclusion, for diagnostics; eligibility
// results are never persisted.
type Eligibility struct {
	Campaign Campaign `json:"campaign"`
	Reason   string   `json:"reason,omitempty"`
}
