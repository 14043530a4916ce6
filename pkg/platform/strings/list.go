// Package strings parses the comma-separated lists used in environment
// configuration (approvers, blocked employees, broker seeds).
package strings

import (
	"strings"
)

// SplitList splits a comma-separated value, trimming each element and
// dropping blanks and repeats. Order of first appearance is preserved.
//
//	SplitList(" a, b,,a ") // []string{"a", "b"}
func SplitList(csv string) []string {
	return dedupe(strings.Split(csv, ","), strings.TrimSpace)
}

// SplitListUpper is SplitList with each element upper-cased, for values
// compared case-insensitively such as approver roles.
func SplitListUpper(csv string) []string {
	return dedupe(strings.Split(csv, ","), func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}
	return result
}
