package catalog

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"github.com/pbaille/medcat/internal/domain"
)

// Sort keys accepted by Filter.SortBy
const (
	SortID           = "id"
	SortTitle        = "title"
	SortYear         = "year"
	SortDateAdded    = "date_added"
	SortDateModified = "date_modified"
)

var sortKeys = []string{SortID, SortTitle, SortYear, SortDateAdded, SortDateModified}

// Filter selects items for List. Zero fields match everything.
type Filter struct {
	Perspectives map[domain.MetaTag]string
	YearFrom     int
	YearTo       int
	Keyword      string // case-insensitive substring of title, abstract, summary, authors or keywords
	Tag          string
	ReadStatus   domain.ReadStatus
	Priority     domain.Priority
	SortBy       string // insertion order when empty
	Desc         bool
}

// Validate rejects unknown meta-tags and sort keys
func (f Filter) Validate() error {
	for meta := range f.Perspectives {
		if !meta.Valid() {
			return domain.Errorf(domain.ErrValidation, "unknown meta-tag %q", meta)
		}
	}
	if f.SortBy != "" && !slices.Contains(sortKeys, f.SortBy) {
		return domain.Errorf(domain.ErrValidation, "unknown sort key %q (want one of %v)", f.SortBy, sortKeys)
	}
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		return domain.Errorf(domain.ErrValidation, "year range %d-%d is empty", f.YearFrom, f.YearTo)
	}
	return nil
}

// Match reports whether it passes the filter
func (f Filter) Match(it *domain.Item) bool {
	for meta, want := range f.Perspectives {
		if it.Perspectives[meta] != want {
			return false
		}
	}
	if f.YearFrom != 0 && it.Year < f.YearFrom {
		return false
	}
	if f.YearTo != 0 && it.Year > f.YearTo {
		return false
	}
	if f.Tag != "" && !it.HasTag(f.Tag) {
		return false
	}
	if f.ReadStatus != "" && it.ReadStatus != f.ReadStatus {
		return false
	}
	if f.Priority != "" && it.Priority != f.Priority {
		return false
	}
	if f.Keyword != "" && !containsKeyword(it, strings.ToLower(f.Keyword)) {
		return false
	}
	return true
}

func containsKeyword(it *domain.Item, kw string) bool {
	fields := []string{it.Title, it.Abstract, it.Summary}
	fields = append(fields, it.Authors...)
	fields = append(fields, it.Keywords...)
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), kw) {
			return true
		}
	}
	return false
}

// List yields copies of matching items. The sequence reads the snapshot
// current when iteration starts, so it can be ranged over repeatedly.
func (s *Store) List(f Filter) iter.Seq[domain.Item] {
	return func(yield func(domain.Item) bool) {
		state := s.state
		var matched []domain.Item
		for _, id := range state.Order {
			it := state.Papers[id]
			if f.Match(&it) {
				matched = append(matched, it)
			}
		}
		if f.SortBy != "" {
			slices.SortStableFunc(matched, func(a, b domain.Item) int {
				c := compareBy(f.SortBy, &a, &b)
				if f.Desc {
					c = -c
				}
				return c
			})
		}
		for _, it := range matched {
			if !yield(it.Clone()) {
				return
			}
		}
	}
}

func compareBy(key string, a, b *domain.Item) int {
	switch key {
	case SortID:
		return cmp.Compare(a.ID, b.ID)
	case SortTitle:
		return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortYear:
		return cmp.Compare(a.Year, b.Year)
	case SortDateAdded:
		return a.DateAdded.Compare(b.DateAdded)
	case SortDateModified:
		return a.DateModified.Compare(b.DateModified)
	}
	return 0
}
