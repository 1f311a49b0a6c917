package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions caps the number of names Suggest returns
const MaxSuggestions = 3

// Suggest returns the candidates closest to target, closest first. Package
// names are long and dotted, so the accepted edit distance grows with the
// target: a quarter of its length, at least 3.
func Suggest(target string, candidates []string) []string {
	target = strings.ToLower(target)
	limit := len(target) / 4
	if limit < 3 {
		limit = 3
	}

	type match struct {
		name string
		dist int
	}
	var matches []match
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		if d := Distance(target, strings.ToLower(c)); d <= limit {
			matches = append(matches, match{name: c, dist: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].name < matches[j].name
	})

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].name)
	}
	return out
}

// Distance is the Levenshtein distance between a and b
func Distance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
