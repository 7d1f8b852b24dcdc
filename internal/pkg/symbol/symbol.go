// Package symbol normalizes instrument symbols as modules and the
// config file spell them.
package symbol

import "strings"

// Normalize upper-cases s and drops surrounding space.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeList normalizes every entry, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		s = Normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
