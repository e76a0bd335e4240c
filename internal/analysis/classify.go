package analysis

import "strings"

// kindRule maps a header predicate to a kind. Rules are evaluated in order and
// the first match wins; reordering them changes results.
type kindRule struct {
	kind  Kind
	match func(lower string) bool
}

var kindRules = []kindRule{
	{KindSyntax, containsAny("syntax", "unexpected", "missing", "invalid")},
	{KindReference, containsAny("undefined", "nonexistent", "not found", "unset")},
	{KindType, containsAny("type")},
	{KindTimeout, containsAny("timeout", "timed out")},
	{KindWine, hasAnyPrefix("wine:", "err:", "fixme:")},
}

// Classify maps an error header to a kind. Only the header is considered.
func Classify(message string) Kind {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, r := range kindRules {
		if r.match(lower) {
			return r.kind
		}
	}
	return KindRuntime
}

func containsAny(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}
}

func hasAnyPrefix(prefixes ...string) func(string) bool {
	return func(s string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(s, p) {
				return true
			}
		}
		return false
	}
}
