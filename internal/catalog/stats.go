package catalog

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/pbaille/medcat/internal/domain"
)

// Metadata is the derived statistics block saved alongside the items
type Metadata struct {
	TotalPapers   int                               `json:"total_papers"`
	LastUpdated   time.Time                         `json:"last_updated"`
	Distributions map[domain.MetaTag]map[string]int `json:"distributions"`
}

// TagCount is a tag with the number of items carrying it
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes the catalog
type Stats struct {
	TotalPapers   int                               `json:"total_papers"`
	LastUpdated   time.Time                         `json:"last_updated"`
	ByReadStatus  map[domain.ReadStatus]int         `json:"by_read_status"`
	ByPriority    map[domain.Priority]int           `json:"by_priority"`
	Distributions map[domain.MetaTag]map[string]int `json:"distributions"`
	TopTags       []TagCount                        `json:"top_tags"`
}

func computeMetadata(f *catalogFile, now time.Time) Metadata {
	md := Metadata{
		TotalPapers:   len(f.Order),
		LastUpdated:   now,
		Distributions: make(map[domain.MetaTag]map[string]int, len(domain.MetaTags)),
	}
	for _, meta := range domain.MetaTags {
		md.Distributions[meta] = map[string]int{}
	}
	for _, it := range f.Papers {
		for meta, tag := range it.Perspectives {
			if d, ok := md.Distributions[meta]; ok && tag != "" && tag != domain.NotApplicable {
				d[tag]++
			}
		}
	}
	return md
}

// Stats computes counts over the loaded snapshot
func (s *Store) Stats() Stats {
	state := s.state
	md := computeMetadata(state, state.UpdatedAt)
	st := Stats{
		TotalPapers:   md.TotalPapers,
		LastUpdated:   state.UpdatedAt,
		ByReadStatus:  map[domain.ReadStatus]int{},
		ByPriority:    map[domain.Priority]int{},
		Distributions: md.Distributions,
	}
	tagCounts := map[string]int{}
	for _, it := range state.Papers {
		st.ByReadStatus[it.ReadStatus]++
		st.ByPriority[it.Priority]++
		for _, t := range it.Tags {
			tagCounts[t]++
		}
	}
	for _, tag := range slices.Sorted(maps.Keys(tagCounts)) {
		st.TopTags = append(st.TopTags, TagCount{Tag: tag, Count: tagCounts[tag]})
	}
	slices.SortStableFunc(st.TopTags, func(a, b TagCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return st
}

// SortedCounts returns a distribution ordered by count descending, then tag
func SortedCounts(dist map[string]int) []TagCount {
	out := make([]TagCount, 0, len(dist))
	for tag, n := range dist {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Tag, b.Tag)
	})
	return out
}
