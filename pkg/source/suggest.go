package source

import (
	"slices"
	"strings"
)

// Suggest returns function names close to name, best match first. A name
// matches when it differs by case only, contains or is contained in name, or
// is within a small edit distance.
func (f *File) Suggest(name string) []string {
	type candidate struct {
		name  string
		score int
	}

	want := strings.ToLower(name)
	limit := max(2, len(want)/3)

	var cands []candidate
	for _, fn := range f.Functions {
		have := strings.ToLower(fn.Name)
		switch {
		case have == want:
			cands = append(cands, candidate{fn.Name, 0})
		case strings.Contains(have, want) || strings.Contains(want, have):
			cands = append(cands, candidate{fn.Name, 1})
		default:
			if d := editDistance(have, want); d <= limit {
				cands = append(cands, candidate{fn.Name, 1 + d})
			}
		}
	}

	slices.SortStableFunc(cands, func(a, b candidate) int { return a.score - b.score })
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.name
	}
	return out
}

func editDistance(a, b string) int {
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
