package taxonomy

import (
	"cmp"
	"slices"

	"github.com/pbaille/medcat/internal/domain"
)

// PairCount is the number of items carrying both A and B (A < B)
type PairCount struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

// Suggestion is a cluster of tags connected by qualifying co-occurrence pairs
type Suggestion struct {
	Tags    []string       `json:"tags"`
	Pairs   []PairCount    `json:"pairs"`
	Mass    int            `json:"mass"`
	MetaTag domain.MetaTag `json:"meta_tag,omitempty"`
}

// CooccurrenceCounts counts, for every unordered pair of tags, the tag sets containing both.
// Pairs are returned sorted by count descending, then A, then B.
func CooccurrenceCounts(tagSets [][]string) []PairCount {
	counts := make(map[[2]string]int)
	for _, set := range tagSets {
		tags := domain.TagSet(set)
		for i := 0; i < len(tags); i++ {
			for j := i + 1; j < len(tags); j++ {
				counts[[2]string{tags[i], tags[j]}]++
			}
		}
	}
	pairs := make([]PairCount, 0, len(counts))
	for k, n := range counts {
		pairs = append(pairs, PairCount{A: k[0], B: k[1], Count: n})
	}
	slices.SortFunc(pairs, comparePairs)
	return pairs
}

// SuggestGroups clusters tags transitively over pairs whose co-occurrence is at
// least minCooccurrence. Suggestions are ordered by total internal co-occurrence
// mass descending, ties broken by the smallest member tag ascending. The result
// depends only on the input.
func SuggestGroups(tagSets [][]string, minCooccurrence int) []Suggestion {
	if minCooccurrence < 1 {
		minCooccurrence = 1
	}

	var qualifying []PairCount
	var members []string
	for _, p := range CooccurrenceCounts(tagSets) {
		if p.Count >= minCooccurrence {
			qualifying = append(qualifying, p)
			members = append(members, p.A, p.B)
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	uf := newUnionFind(domain.TagSet(members))
	for _, p := range qualifying {
		uf.union(p.A, p.B)
	}

	byRoot := make(map[string]*Suggestion)
	var out []*Suggestion
	for _, comp := range uf.components() {
		s := &Suggestion{Tags: comp}
		byRoot[uf.find(comp[0])] = s
		out = append(out, s)
	}
	for _, p := range qualifying {
		s := byRoot[uf.find(p.A)]
		s.Pairs = append(s.Pairs, p)
		s.Mass += p.Count
	}

	result := make([]Suggestion, len(out))
	for i, s := range out {
		result[i] = *s
	}
	slices.SortStableFunc(result, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Mass, a.Mass); c != 0 {
			return c
		}
		return cmp.Compare(a.Tags[0], b.Tags[0])
	})
	return result
}

func comparePairs(x, y PairCount) int {
	if c := cmp.Compare(y.Count, x.Count); c != 0 {
		return c
	}
	if c := cmp.Compare(x.A, y.A); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}
