package targeting

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/popsmart/campaign-engine/internal/campaign"
)

// OperatorHandler evaluates one audience condition operator.
type OperatorHandler interface {
	Check(visitorValue, ruleValue any) bool
}

var (
	operatorHandlers = map[campaign.Operator]OperatorHandler{
		campaign.OpEquals:     equalsHandler{},
		campaign.OpNotEquals:  notEqualsHandler{},
		campaign.OpContains:   containsHandler{},
		campaign.OpStartsWith: startsWithHandler{},
		campaign.OpEndsWith:   endsWithHandler{},
		campaign.OpRegex:      regexHandler{},
		campaign.OpGT:         numericCompareHandler{cmp: func(a, b float64) bool { return a > b }},
		campaign.OpLT:         numericCompareHandler{cmp: func(a, b float64) bool { return a < b }},
		campaign.OpGTE:        numericCompareHandler{cmp: func(a, b float64) bool { return a >= b }},
		campaign.OpLTE:        numericCompareHandler{cmp: func(a, b float64) bool { return a <= b }},
		campaign.OpInList:     inListHandler{},
		campaign.OpNotInList:  notInListHandler{},
		campaign.OpVersionGT:  semverCompareHandler{cmp: func(a, b *semver.Version) bool { return a.GreaterThan(b) }},
		campaign.OpVersionLT:  semverCompareHandler{cmp: func(a, b *semver.Version) bool { return a.LessThan(b) }},
	}

	// regexCache keeps compiled patterns for the hot evaluation path.
	// Expected value type is *regexp.Regexp.
	regexCache sync.Map
)

func getOperatorHandler(op campaign.Operator) (OperatorHandler, bool) {
	normalized := campaign.Operator(strings.ToLower(strings.TrimSpace(string(op))))
	h, ok := operatorHandlers[normalized]
	return h, ok
}

func compileCached(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

type equalsHandler struct{}

func (equalsHandler) Check(visitorValue, ruleValue any) bool {
	if vn, ok := toFloat(visitorValue); ok {
		if rn, ok := toFloat(ruleValue); ok {
			return vn == rn
		}
	}
	return toString(visitorValue) == toString(ruleValue)
}

type notEqualsHandler struct{}

func (notEqualsHandler) Check(visitorValue, ruleValue any) bool {
	return !equalsHandler{}.Check(visitorValue, ruleValue)
}

type containsHandler struct{}

func (containsHandler) Check(visitorValue, ruleValue any) bool {
	return strings.Contains(toString(visitorValue), toString(ruleValue))
}

type startsWithHandler struct{}

func (startsWithHandler) Check(visitorValue, ruleValue any) bool {
	return strings.HasPrefix(toString(visitorValue), toString(ruleValue))
}

type endsWithHandler struct{}

func (endsWithHandler) Check(visitorValue, ruleValue any) bool {
	return strings.HasSuffix(toString(visitorValue), toString(ruleValue))
}

type regexHandler struct{}

func (regexHandler) Check(visitorValue, ruleValue any) bool {
	re, err := compileCached(toString(ruleValue))
	if err != nil {
		return false
	}
	return re.MatchString(toString(visitorValue))
}

type numericCompareHandler struct {
	cmp func(a, b float64) bool
}

func (h numericCompareHandler) Check(visitorValue, ruleValue any) bool {
	a, okA := toFloat(visitorValue)
	b, okB := toFloat(ruleValue)
	if !okA || !okB {
		return false
	}
	return h.cmp(a, b)
}

type inListHandler struct{}

func (inListHandler) Check(visitorValue, ruleValue any) bool {
	list, ok := toSlice(ruleValue)
	if !ok {
		return false
	}
	needle := toString(visitorValue)
	for _, item := range list {
		if toString(item) == needle {
			return true
		}
	}
	return false
}

type notInListHandler struct{}

func (notInListHandler) Check(visitorValue, ruleValue any) bool {
	if _, ok := toSlice(ruleValue); !ok {
		return false
	}
	return !inListHandler{}.Check(visitorValue, ruleValue)
}

type semverCompareHandler struct {
	cmp func(a, b *semver.Version) bool
}

func (h semverCompareHandler) Check(visitorValue, ruleValue any) bool {
	a, err := semver.NewVersion(toString(visitorValue))
	if err != nil {
		return false
	}
	b, err := semver.NewVersion(toString(ruleValue))
	if err != nil {
		return false
	}
	return h.cmp(a, b)
}

// ---- value coercion ----

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return val, true
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
