// Package strings holds the whitespace and case rules shared by profile
// subjects and sub-template matching.
package strings

import (
	"slices"
	"strings"
)

// DedupeFold trims each value, drops empties, and removes values that repeat
// an earlier one ignoring case. The first spelling wins and order is kept.
//
//	DedupeFold([]string{" Math", "science", "math ", ""})
//	// []string{"Math", "science"}
func DedupeFold(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ContainsFold reports whether list holds v, comparing trimmed values
// case-insensitively. A blank v never matches.
func ContainsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	return slices.ContainsFunc(list, func(item string) bool {
		return strings.EqualFold(strings.TrimSpace(item), v)
	})
}
