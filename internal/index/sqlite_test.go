package index

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/pbaille/medcat/internal/domain"
)

func testDocs() []Document {
	return []Document{
		{
			ID: "paper003", Title: "Gait asymmetry after stroke", Authors: []string{"Tanaka H"}, Year: 2021,
			Abstract: "Step length asymmetry.", Tags: []string{"stroke", "gait_analysis"},
			Perspectives: map[domain.MetaTag]string{domain.MetaDisease: "stroke"},
		},
		{
			ID: "paper001", Title: "Ankle EMG", Authors: []string{"Suzuki K"}, Year: 2023,
			Content: "Tibialis anterior activity during gait.", Tags: []string{"stroke", "emg"},
			Perspectives: map[domain.MetaTag]string{domain.MetaDisease: "stroke", domain.MetaMethod: "emg"},
		},
		{
			ID: "paper002", Title: "Wearables in Parkinson's", Authors: []string{"Ito M"},
			Summary: "IMU-based gait monitoring.", Tags: []string{"parkinsons_disease", "imu"},
			Perspectives: map[domain.MetaTag]string{domain.MetaDisease: "parkinsons_disease"},
		},
	}
}

func hitIDs(hits []Hit) []string {
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestIndex_CreateAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search_index.db")
	ix, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ix.AddAll(testDocs()); err != nil {
		t.Fatalf("AddAll: %v", err)
	}
	ix.Close()

	ix, err = Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all in insertion order", Query{}, []string{"paper003", "paper001", "paper002"}},
		{"text in title", Query{Text: "ankle"}, []string{"paper001"}},
		{"text in content and summary", Query{Text: "gait"}, []string{"paper003", "paper001", "paper002"}},
		{"text in authors", Query{Text: "ito"}, []string{"paper002"}},
		{"tag", Query{Tag: "stroke"}, []string{"paper003", "paper001"}},
		{"perspective", Query{Meta: domain.MetaMethod, Value: "emg"}, []string{"paper001"}},
		{"text and tag", Query{Text: "gait", Tag: "imu"}, []string{"paper002"}},
		{"limit", Query{Limit: 2}, []string{"paper003", "paper001"}},
		{"no match", Query{Text: "cardiology"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := ix.Search(tt.q)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := hitIDs(hits); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	hits, _ := ix.Search(Query{Text: "ankle"})
	if !slices.Equal(hits[0].Tags, []string{"emg", "stroke"}) || hits[0].Year != 2023 {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestIndex_CreateReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search_index.db")
	ix, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	ix.AddAll(testDocs())
	ix.Close()

	ix, err = Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()
	hits, err := ix.Search(Query{})
	if err != nil || len(hits) != 0 {
		t.Errorf("recreated index has %d hits, %v", len(hits), err)
	}
}

func TestIndex_TagCounts(t *testing.T) {
	ix, err := Create(filepath.Join(t.TempDir(), "search_index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()
	ix.AddAll(testDocs())

	counts, err := ix.TagCounts()
	if err != nil {
		t.Fatal(err)
	}
	if counts[0] != (TagCount{Tag: "stroke", Count: 2}) || len(counts) != 5 {
		t.Errorf("counts = %+v", counts)
	}
	if counts[1].Tag != "emg" {
		t.Errorf("ties should sort by tag: %+v", counts)
	}
}

func TestOpen_Missing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.db")); err == nil {
		t.Error("expected error for missing index")
	}
}
