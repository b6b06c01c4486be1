package catalog

import (
	"strings"

	"github.com/pbaille/medcat/internal/domain"
)

// validate checks required fields, enums and tag canonicality
func (s *Store) validate(it *domain.Item) error {
	if strings.TrimSpace(it.ID) == "" {
		return domain.Errorf(domain.ErrValidation, "id is required")
	}
	if strings.TrimSpace(it.Title) == "" {
		return domain.Errorf(domain.ErrValidation, "%s: title is required", it.ID)
	}
	if it.Year < 0 {
		return domain.Errorf(domain.ErrValidation, "%s: invalid year %d", it.ID, it.Year)
	}
	if it.SampleSize != nil && *it.SampleSize < 0 {
		return domain.Errorf(domain.ErrValidation, "%s: invalid sample_size %d", it.ID, *it.SampleSize)
	}
	if _, err := domain.ParseReadStatus(string(it.ReadStatus)); err != nil {
		return domain.Errorf(domain.ErrValidation, "%s: invalid read_status %q", it.ID, it.ReadStatus)
	}
	if _, err := domain.ParsePriority(string(it.Priority)); err != nil {
		return domain.Errorf(domain.ErrValidation, "%s: invalid priority %q", it.ID, it.Priority)
	}

	st := it.StudyType()
	if st == "" || st == domain.NotApplicable {
		return domain.Errorf(domain.ErrValidation, "%s: study_type perspective is required", it.ID)
	}
	for meta, tag := range it.Perspectives {
		if !meta.Valid() {
			return domain.Errorf(domain.ErrValidation, "%s: unknown meta-tag %q", it.ID, meta)
		}
		if tag == domain.NotApplicable {
			continue
		}
		if !s.vocab.IsCanonical(meta, tag) {
			return domain.Errorf(domain.ErrValidation, "%s: perspective %s=%q is not a canonical tag", it.ID, meta, tag)
		}
	}
	for _, tag := range it.Tags {
		if len(s.vocab.MetaTagsOf(tag)) == 0 {
			return domain.Errorf(domain.ErrValidation, "%s: tag %q is not a canonical tag", it.ID, tag)
		}
	}
	return nil
}
