package taxonomy

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/logging"
)

// Normalizer resolves raw tag input to canonical tags
type Normalizer struct {
	h      *Hierarchy
	logger *log.Logger
}

// NewNormalizer creates a Normalizer over h
func NewNormalizer(h *Hierarchy, logger *log.Logger) *Normalizer {
	return &Normalizer{h: h, logger: logging.OrDiscard(logger)}
}

// Normalize resolves raw under meta. Unknown input fails with ErrUnknownTag.
func (n *Normalizer) Normalize(raw string, meta domain.MetaTag) (string, error) {
	if !meta.Valid() {
		return "", domain.Errorf(domain.ErrValidation, "unknown meta-tag %q", meta)
	}
	canonical, ok := n.h.Resolve(meta, raw)
	if !ok {
		return "", domain.Errorf(domain.ErrUnknownTag, "%q under %s", raw, meta)
	}
	if canonical != raw {
		n.logger.Debug("normalized tag", "meta", meta, "raw", raw, "canonical", canonical)
	}
	return canonical, nil
}

// NormalizeOrRegister resolves raw under meta, registering Key(raw) as a new
// canonical tag when nothing matches. Only administrative tooling should call it.
func (n *Normalizer) NormalizeOrRegister(raw string, meta domain.MetaTag) (canonical string, registered bool, err error) {
	canonical, err = n.Normalize(raw, meta)
	if err == nil {
		return canonical, false, nil
	}
	if !errors.Is(err, domain.ErrUnknownTag) {
		return "", false, err
	}
	key := Key(raw)
	if err := n.h.AddTag(meta, key); err != nil {
		return "", false, err
	}
	n.logger.Info("registered tag", "meta", meta, "tag", key)
	return key, true, nil
}

// ResolveAny resolves raw against every meta-tag in enum order and returns the first match
func (n *Normalizer) ResolveAny(raw string) (domain.MetaTag, string, error) {
	for _, meta := range domain.MetaTags {
		if canonical, ok := n.h.Resolve(meta, raw); ok {
			return meta, canonical, nil
		}
	}
	return "", "", domain.Errorf(domain.ErrUnknownTag, "%q under any meta-tag", raw)
}
