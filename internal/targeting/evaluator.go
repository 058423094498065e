// Package targeting evaluates campaign targeting predicates against a
// request context: page URL patterns, audience rules, and device type.
// Evaluation does no I/O and holds no shared mutable state, so it is
// safe to call concurrently.
package targeting

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// ErrMalformedRule is returned when a targeting rule cannot be
// evaluated (bad regex, invalid expression). Callers exclude the
// campaign and continue with the rest.
var ErrMalformedRule = errors.New("malformed targeting rule")

// IsEligible reports whether the campaign may be shown for the given
// request context. Predicates are evaluated in order (pages, audience,
// device) and short-circuit on the first failure. Disabled targeting
// always passes.
func IsEligible(c campaign.Campaign, rc campaign.RequestContext) (bool, error) {
	if !c.TargetRules.Enabled {
		return true, nil
	}

	ok, err := matchPages(c.TargetRules.Pages, rc)
	if err != nil || !ok {
		return false, err
	}

	ok, err = matchAudience(c.TargetRules.Audience, rc)
	if err != nil || !ok {
		return false, err
	}

	return matchDevice(c.TargetRules.Devices, rc.DeviceType), nil
}

// matchPages applies page-type and URL predicates. Any exclude match
// disqualifies regardless of includes.
func matchPages(pt campaign.PageTargeting, rc campaign.RequestContext) (bool, error) {
	for _, pattern := range pt.ExcludeURLs {
		ok, err := matchWildcard(pattern, rc.PageURL)
		if err != nil {
			return false, err
		}
		if ok {
			return false, nil
		}
	}
	for _, pattern := range pt.ExcludeRegex {
		re, err := compileCached(pattern)
		if err != nil {
			return false, fmt.Errorf("%w: exclude regex %q: %v", ErrMalformedRule, pattern, err)
		}
		if re.MatchString(rc.PageURL) {
			return false, nil
		}
	}

	if len(pt.PageTypes) > 0 && !containsFold(pt.PageTypes, rc.PageType) {
		return false, nil
	}

	if len(pt.IncludeURLs) == 0 && len(pt.IncludeRegex) == 0 {
		return true, nil
	}
	for _, pattern := range pt.IncludeURLs {
		ok, err := matchWildcard(pattern, rc.PageURL)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	for _, pattern := range pt.IncludeRegex {
		re, err := compileCached(pattern)
		if err != nil {
			return false, fmt.Errorf("%w: include regex %q: %v", ErrMalformedRule, pattern, err)
		}
		if re.MatchString(rc.PageURL) {
			return true, nil
		}
	}
	return false, nil
}

// matchAudience applies segment membership, the condition tree, and the
// optional raw expression. All configured parts must pass.
func matchAudience(at campaign.AudienceTargeting, rc campaign.RequestContext) (bool, error) {
	if !at.Enabled {
		return true, nil
	}

	if len(at.Segments) > 0 && !intersects(at.Segments, rc.Segments) {
		return false, nil
	}

	if len(at.Conditions) > 0 {
		if !matchConditions(at.Combinator, at.Conditions, rc) {
			return false, nil
		}
	}

	if at.Expression != "" {
		ok, err := EvaluateExpression(at.Expression, attributeMap(rc))
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedRule, err)
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

func matchConditions(comb campaign.Combinator, conditions []campaign.Condition, rc campaign.RequestContext) bool {
	for _, cond := range conditions {
		matched := matchCondition(cond, rc)
		if comb == campaign.CombinatorOr {
			if matched {
				return true
			}
			continue
		}
		// "and" (default)
		if !matched {
			return false
		}
	}
	return comb != campaign.CombinatorOr
}

func matchCondition(cond campaign.Condition, rc campaign.RequestContext) bool {
	visitorValue, ok := contextValue(rc, cond.Property)
	if !ok {
		return false
	}
	handler, ok := getOperatorHandler(cond.Operator)
	if !ok {
		return false
	}
	return handler.Check(visitorValue, cond.Value)
}

func contextValue(rc campaign.RequestContext, property string) (any, bool) {
	switch strings.ToLower(property) {
	case "visitor_id", "visitorid":
		if rc.VisitorID == "" {
			return nil, false
		}
		return rc.VisitorID, true
	case "page_type", "pagetype":
		if rc.PageType == "" {
			return nil, false
		}
		return rc.PageType, true
	case "page_url", "pageurl":
		if rc.PageURL == "" {
			return nil, false
		}
		return rc.PageURL, true
	case "device_type", "devicetype", "device":
		if rc.DeviceType == "" {
			return nil, false
		}
		return rc.DeviceType, true
	}
	if rc.Attributes == nil {
		return nil, false
	}
	v, ok := rc.Attributes[property]
	return v, ok
}

// attributeMap flattens the request context into the data object seen
// by raw audience expressions.
func attributeMap(rc campaign.RequestContext) map[string]any {
	m := make(map[string]any, len(rc.Attributes)+5)
	for k, v := range rc.Attributes {
		m[k] = v
	}
	m["visitorId"] = rc.VisitorID
	m["pageType"] = rc.PageType
	m["pageUrl"] = rc.PageURL
	m["deviceType"] = rc.DeviceType
	m["segments"] = rc.Segments
	return m
}

func matchDevice(devices []string, deviceType string) bool {
	if len(devices) == 0 {
		return true
	}
	return containsFold(devices, deviceType)
}

// matchWildcard matches a URL against a pattern where "*" matches any
// run of characters. Everything else is literal.
func matchWildcard(pattern, url string) (bool, error) {
	if pattern == "" {
		return false, nil
	}
	if !strings.Contains(pattern, "*") {
		return strings.Contains(url, pattern), nil
	}
	parts := strings.Split(pattern, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	re, err := compileCached("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false, fmt.Errorf("%w: url pattern %q: %v", ErrMalformedRule, pattern, err)
	}
	return re.MatchString(url), nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
