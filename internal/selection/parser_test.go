package selection

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pbaille/medcat/internal/domain"
)

const reviewList = `# Gait review shortlist

Notes about the review go here.

- [x] [[paper001]] Gait asymmetry after stroke
- [ ] [[paper002]]
* [X] [[paper003|Ankle EMG]] strong methods
- [ ] [[paper004]] maybe later
+ [x] [[paper005]]

- paper006 without a checkbox
- [x] paper007 without a link
`

func TestParse_CheckedAndUnchecked(t *testing.T) {
	entries, err := ParseString(reviewList)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries: %+v", len(entries), entries)
	}
	if got := Included(entries); !slices.Equal(got, []string{"paper001", "paper003", "paper005"}) {
		t.Errorf("included = %v", got)
	}

	var excluded []string
	for _, e := range entries {
		if !e.Included {
			excluded = append(excluded, e.ID)
		}
	}
	if !slices.Equal(excluded, []string{"paper002", "paper004"}) {
		t.Errorf("excluded = %v", excluded)
	}
	if entries[2].Label != "Ankle EMG" || entries[2].Line != 7 {
		t.Errorf("entry 3 = %+v", entries[2])
	}
}

func TestParse_DuplicateKeepsFirst(t *testing.T) {
	doc := "- [ ] [[paper001]]\n- [x] [[paper002]]\n- [x] [[paper001]]\n"
	entries, err := ParseString(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ID != "paper001" || entries[0].Included {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		line     string
		id       string
		included bool
	}{
		{"- [x] [[paper001]]", "paper001", true},
		{"  - [x][[paper001]]", "paper001", true},
		{"1. [x] [[paper001]]", "paper001", true},
		{"- [ ] [[ paper001 ]]", "paper001", false},
		{"\t* [X] [[smith-2020|Smith 2020]]", "smith-2020", true},
	}
	for _, tt := range tests {
		entries, err := ParseString(tt.line)
		if err != nil {
			t.Errorf("%q: %v", tt.line, err)
			continue
		}
		if entries[0].ID != tt.id || entries[0].Included != tt.included {
			t.Errorf("%q: got %+v", tt.line, entries[0])
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, doc := range []string{
		"",
		"# Title only\n\nSome prose.\n",
		"- [x] paper001\n- [[paper002]]\n- [?] [[paper003]]\n",
	} {
		if _, err := ParseString(doc); !errors.Is(err, domain.ErrMalformedSelection) {
			t.Errorf("Parse(%q) err = %v", doc, err)
		}
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.md")
	if err := os.WriteFile(path, []byte(reviewList), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := ParseFile(path)
	if err != nil || len(entries) != 5 {
		t.Errorf("ParseFile: %d entries, %v", len(entries), err)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "nope.md")); err == nil || !strings.Contains(err.Error(), "open selection") {
		t.Errorf("missing file: %v", err)
	}
}
