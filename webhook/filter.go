package webhook

import (
	"encoding/json"
	"strings"
)

// Filter operators.
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
)

// Filter is one predicate over the event payload. Field is a dot-notation
// path into the payload ("data.settings_count" addresses payload["data"]
// ["settings_count"]).
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Valid reports whether the filter has a field and a known operator.
func (f Filter) Valid() bool {
	if f.Field == "" {
		return false
	}
	switch f.Operator {
	case OpEquals, OpContains, OpGreaterThan:
		return true
	}
	return false
}

// Match evaluates the predicate against the payload. A path that traverses a
// missing key or a non-container value fails the predicate, as does an
// unknown operator.
func (f Filter) Match(payload map[string]any) bool {
	got, ok := lookupPath(payload, f.Field)
	if !ok {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return equals(got, f.Value)
	case OpContains:
		return contains(got, f.Value)
	case OpGreaterThan:
		a, aok := asFloat(got)
		b, bok := asFloat(f.Value)
		return aok && bok && a > b
	}
	return false
}

// lookupPath walks a dot-notation path through nested string-keyed maps.
func lookupPath(payload map[string]any, path string) (any, bool) {
	var current any = payload
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equals compares loosely: numbers compare numerically regardless of their
// concrete Go type (JSON decoding yields float64), everything else by
// stringless interface equality.
func equals(got, want any) bool {
	if a, aok := asFloat(got); aok {
		if b, bok := asFloat(want); bok {
			return a == b
		}
		return false
	}
	return got == want
}

// contains handles substring match on strings and membership on slices.
func contains(got, want any) bool {
	switch v := got.(type) {
	case string:
		s, ok := want.(string)
		return ok && strings.Contains(v, s)
	case []any:
		for _, item := range v {
			if equals(item, want) {
				return true
			}
		}
	case []string:
		s, ok := want.(string)
		if !ok {
			return false
		}
		for _, item := range v {
			if item == s {
				return true
			}
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
