package common

import "strings"

// HasAnyPrefix returns true if s starts with any of the prefixes.
func HasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// FilterPrefix returns the ids that start with any of the prefixes, in their original order.
func FilterPrefix(ids []string, prefixes ...string) []string {
	var out []string
	for _, id := range ids {
		if HasAnyPrefix(id, prefixes...) {
			out = append(out, id)
		}
	}
	return out
}
