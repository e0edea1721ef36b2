package parse

import (
	"strings"
)

// SecurityCode normalizes a spoken or typed security code: surrounding
// whitespace is dropped and letters are uppercased.
func SecurityCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// SecurityCodes normalizes every code, drops empties and removes duplicates
// while keeping first-seen order.
func SecurityCodes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		c := SecurityCode(r)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// MergeCodes returns existing ∪ added, normalized, existing order first.
func MergeCodes(existing, added []string) []string {
	all := make([]string, 0, len(existing)+len(added))
	all = append(all, existing...)
	all = append(all, added...)
	return SecurityCodes(all)
}
