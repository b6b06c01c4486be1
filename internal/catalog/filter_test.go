package catalog

import (
	"errors"
	"slices"
	"testing"

	"github.com/pbaille/medcat/internal/domain"
)

func populate(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", seededVocab(t))
	if err != nil {
		t.Fatal(err)
	}
	items := []domain.Item{newItem("paper003"), newItem("paper001"), newItem("paper002")}
	items[0].Title = "Zebra crossings and elderly gait"
	items[0].Year = 2019
	items[0].Perspectives[domain.MetaDisease] = "parkinsons_disease"
	items[0].Tags = []string{"parkinsons_disease", "elderly"}

	items[1].Title = "Ankle EMG in stroke"
	items[1].Year = 2023
	items[1].Tags = []string{"stroke", "emg"}
	items[1].Keywords = []string{"tibialis anterior"}

	items[2].Title = "Motion capture reliability"
	items[2].Year = 2021
	items[2].ReadStatus = domain.StatusRead
	for _, it := range items {
		if _, err := s.Upsert(it); err != nil {
			t.Fatalf("Upsert %s: %v", it.ID, err)
		}
	}
	return s
}

func ids(seq func(func(domain.Item) bool)) []string {
	var out []string
	for it := range seq {
		out = append(out, it.ID)
	}
	return out
}

func TestStore_List(t *testing.T) {
	s := populate(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"insertion order", Filter{}, []string{"paper003", "paper001", "paper002"}},
		{"perspective", Filter{Perspectives: map[domain.MetaTag]string{domain.MetaDisease: "stroke"}}, []string{"paper001", "paper002"}},
		{"year range", Filter{YearFrom: 2020, YearTo: 2022}, []string{"paper002"}},
		{"year from", Filter{YearFrom: 2021}, []string{"paper001", "paper002"}},
		{"keyword in title", Filter{Keyword: "ZEBRA"}, []string{"paper003"}},
		{"keyword in keywords", Filter{Keyword: "tibialis"}, []string{"paper001"}},
		{"keyword in authors", Filter{Keyword: "suzuki"}, []string{"paper003", "paper001", "paper002"}},
		{"tag", Filter{Tag: "emg"}, []string{"paper001"}},
		{"read status", Filter{ReadStatus: domain.StatusRead}, []string{"paper002"}},
		{"sort by id", Filter{SortBy: SortID}, []string{"paper001", "paper002", "paper003"}},
		{"sort by year desc", Filter{SortBy: SortYear, Desc: true}, []string{"paper001", "paper002", "paper003"}},
		{"sort by title", Filter{SortBy: SortTitle}, []string{"paper001", "paper002", "paper003"}},
		{"no match", Filter{Tag: "imu"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(s.List(tt.filter)); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_ListRestartableAndDetached(t *testing.T) {
	s := populate(t)
	seq := s.List(Filter{})

	for it := range seq {
		it.Tags[0] = "mutated"
		break
	}
	first, second := ids(seq), ids(seq)
	if !slices.Equal(first, second) {
		t.Errorf("second pass %v differs from first %v", second, first)
	}
	got, _ := s.Get("paper003")
	if slices.Contains(got.Tags, "mutated") {
		t.Error("List leaked a reference into the catalog")
	}
}

func TestFilter_Validate(t *testing.T) {
	if err := (Filter{SortBy: "citations"}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown sort: %v", err)
	}
	if err := (Filter{YearFrom: 2022, YearTo: 2020}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty range: %v", err)
	}
	if err := (Filter{Perspectives: map[domain.MetaTag]string{"organ": "x"}}).Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad meta-tag: %v", err)
	}
	if err := (Filter{SortBy: SortDateAdded, YearFrom: 2020}).Validate(); err != nil {
		t.Errorf("valid filter: %v", err)
	}
}

func TestStore_StatsAndTagSets(t *testing.T) {
	s := populate(t)

	st := s.Stats()
	if st.TotalPapers != 3 {
		t.Errorf("total = %d", st.TotalPapers)
	}
	if st.ByReadStatus[domain.StatusRead] != 1 || st.ByReadStatus[domain.StatusUnread] != 2 {
		t.Errorf("by status = %v", st.ByReadStatus)
	}
	if st.Distributions[domain.MetaDisease]["stroke"] != 2 {
		t.Errorf("disease distribution = %v", st.Distributions[domain.MetaDisease])
	}
	if st.TopTags[0] != (TagCount{Tag: "stroke", Count: 2}) {
		t.Errorf("top tags = %v", st.TopTags)
	}

	sets := s.TagSets()
	if len(sets) != 3 || !slices.Equal(sets[0], []string{"elderly", "parkinsons_disease"}) {
		t.Errorf("tag sets = %v", sets)
	}

	counts := SortedCounts(map[string]int{"b": 1, "a": 1, "c": 5})
	if counts[0].Tag != "c" || counts[1].Tag != "a" {
		t.Errorf("SortedCounts = %v", counts)
	}
}
