// Package strings holds the list helpers shared by configuration parsing and
// token scope handling.
package strings

import (
	"strings"
)

// SplitList splits v on sep and passes the parts through DedupeAndTrim.
// An empty v yields an empty, non-nil list.
func SplitList(v, sep string) []string {
	if strings.TrimSpace(v) == "" {
		return []string{}
	}
	return DedupeAndTrim(strings.Split(v, sep))
}

// DedupeAndTrim trims every value and drops blanks and repeats, keeping the
// first occurrence of each.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
