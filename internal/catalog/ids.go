package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pbaille/medcat/internal/domain"
)

// IDScheme selects how NextID generates identifiers
type IDScheme string

const (
	IDSequential IDScheme = "sequential"
	IDUUID       IDScheme = "uuid"
)

// ParseIDScheme validates an id scheme name
func ParseIDScheme(s string) (IDScheme, error) {
	switch id := IDScheme(s); id {
	case IDSequential, IDUUID:
		return id, nil
	}
	return "", domain.Errorf(domain.ErrValidation, "unknown id scheme %q", s)
}

// NextID returns an unused id: prefix plus one more than the largest numeric
// suffix in use (paper001, paper002, ...), or a random UUID
func (s *Store) NextID() string {
	if s.opts.ids == IDUUID {
		return uuid.NewString()
	}
	highest := 0
	for id := range s.state.Papers {
		rest, ok := strings.CutPrefix(id, s.opts.prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		highest = max(highest, n)
	}
	return fmt.Sprintf("%s%0*d", s.opts.prefix, s.opts.width, highest+1)
}
