// Package selection reads curated checklists naming catalog items, e.g.
//
//	- [x] [[paper001]] Gait asymmetry after stroke
//	- [ ] [[paper002|Ankle EMG]]
package selection

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pbaille/medcat/internal/domain"
)

// Entry is one checklist line referring to an item
type Entry struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Included bool   `json:"included"`
	Line     int    `json:"line"`
}

// bullet (-, *, + or "1."), checkbox, then a [[id]] or [[id|label]] link
var entryRE = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[([ xX])\]\s*\[\[([^\]|]+)(?:\|([^\]]*))?\]\]`)

// Parse returns the entries of a selection document in document order.
// Unrecognized lines are ignored. A repeated id keeps its first entry.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		m := entryRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		id := strings.TrimSpace(m[2])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		entries = append(entries, Entry{
			ID:       id,
			Label:    strings.TrimSpace(m[3]),
			Included: m[1] == "x" || m[1] == "X",
			Line:     line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.Errorf(domain.ErrMalformedSelection, "no checklist entries like \"- [x] [[id]]\" found")
	}
	return entries, nil
}

// ParseString parses an in-memory document
func ParseString(doc string) ([]Entry, error) {
	return Parse(strings.NewReader(doc))
}

// ParseFile parses the selection document at path
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open selection: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Included returns the ids of checked entries in order
func Included(entries []Entry) []string {
	var ids []string
	for _, e := range entries {
		if e.Included {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
