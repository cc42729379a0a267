package utils

import (
	"sort"
	"strings"
)

// NormalizeSkills lower-cases, trims and deduplicates skill names.
// Empty entries are dropped; the result is sorted for stable storage.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	result := make([]string, 0, len(skills))

	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, exists := seen[s]; exists {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}

	sort.Strings(result)
	return result
}
