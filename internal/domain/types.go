package domain

import (
	"fmt"
	"slices"
	"time"
)

// MetaTag is a top-level classification axis
type MetaTag string

const (
	MetaStudyType  MetaTag = "study_type"
	MetaDisease    MetaTag = "disease"
	MetaMethod     MetaTag = "method"
	MetaAnalysis   MetaTag = "analysis"
	MetaPopulation MetaTag = "population"
)

// MetaTags lists every meta-tag in resolution order
var MetaTags = []MetaTag{MetaStudyType, MetaDisease, MetaMethod, MetaAnalysis, MetaPopulation}

// NotApplicable marks a perspective that does not apply to an item
const NotApplicable = "not_applicable"

// ParseMetaTag validates a meta-tag name
func ParseMetaTag(s string) (MetaTag, error) {
	m := MetaTag(s)
	if !m.Valid() {
		return "", Errorf(ErrValidation, "unknown meta-tag %q (want one of %v)", s, MetaTags)
	}
	return m, nil
}

// Valid reports whether m is one of the known meta-tags
func (m MetaTag) Valid() bool {
	return slices.Contains(MetaTags, m)
}

// ReadStatus tracks reading progress
type ReadStatus string

const (
	StatusUnread  ReadStatus = "unread"
	StatusReading ReadStatus = "reading"
	StatusRead    ReadStatus = "read"
)

// ParseReadStatus validates a read status
func ParseReadStatus(s string) (ReadStatus, error) {
	switch r := ReadStatus(s); r {
	case StatusUnread, StatusReading, StatusRead:
		return r, nil
	}
	return "", Errorf(ErrValidation, "invalid read_status %q", s)
}

// Priority ranks items for reading
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", Errorf(ErrValidation, "invalid priority %q", s)
}

// Item is a cataloged paper
type Item struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    int      `json:"year,omitempty"`

	Journal string `json:"journal,omitempty"`
	Volume  string `json:"volume,omitempty"`
	Issue   string `json:"issue,omitempty"`
	Pages   string `json:"pages,omitempty"`
	DOI     string `json:"doi,omitempty"`
	PMID    string `json:"pmid,omitempty"`

	StudyDesign     string   `json:"study_design,omitempty"`
	SampleSize      *int     `json:"sample_size,omitempty"`
	StudyPopulation string   `json:"study_population,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Language        string   `json:"language,omitempty"`

	Perspectives map[MetaTag]string `json:"perspectives"`
	Tags         []string           `json:"tags"`

	Abstract string `json:"abstract,omitempty"`
	Summary  string `json:"summary,omitempty"`

	ReadStatus ReadStatus `json:"read_status"`
	Priority   Priority   `json:"priority"`

	DateAdded    time.Time `json:"date_added"`
	DateModified time.Time `json:"date_modified"`

	ArtifactPath string `json:"artifact_path,omitempty"`
}

// StudyType returns the study_type perspective
func (it *Item) StudyType() string {
	return it.Perspectives[MetaStudyType]
}

// HasTag reports whether tag is in the item's tag set
func (it *Item) HasTag(tag string) bool {
	_, found := slices.BinarySearch(it.Tags, tag)
	return found
}

// Clone returns a deep copy
func (it Item) Clone() Item {
	out := it
	out.Authors = slices.Clone(it.Authors)
	out.Keywords = slices.Clone(it.Keywords)
	out.Tags = slices.Clone(it.Tags)
	if it.SampleSize != nil {
		n := *it.SampleSize
		out.SampleSize = &n
	}
	if it.Perspectives != nil {
		out.Perspectives = make(map[MetaTag]string, len(it.Perspectives))
		for k, v := range it.Perspectives {
			out.Perspectives[k] = v
		}
	}
	return out
}

// TagSet sorts and de-duplicates tags, dropping empty entries
func TagSet(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// TagGroup is a named cluster of canonical tags under one meta-tag
type TagGroup struct {
	ID          string   `json:"id"`
	MetaTag     MetaTag  `json:"meta_tag"`
	DisplayName string   `json:"display_name"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
}

func (g TagGroup) String() string {
	return fmt.Sprintf("%s (%s)", g.ID, g.MetaTag)
}
