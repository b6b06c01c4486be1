package taxonomy

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/pbaille/medcat/internal/domain"
)

type staticTagSets [][]string

func (s staticTagSets) TagSets() [][]string { return s }

func newTestGroups(t *testing.T) (*GroupManager, string) {
	t.Helper()
	h := NewMemoryHierarchy()
	if err := h.Seed(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tag_groups.json")
	g, err := OpenGroups(path, h)
	if err != nil {
		t.Fatalf("OpenGroups: %v", err)
	}
	return g, path
}

func TestGroupManager_CreateGroup(t *testing.T) {
	g, path := newTestGroups(t)

	group, err := g.CreateGroup("neuro", domain.MetaDisease, "Neurological", []string{"stroke", "parkinsons_disease", "stroke"}, "central nervous system")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if !slices.Equal(group.Tags, []string{"parkinsons_disease", "stroke"}) {
		t.Errorf("tags = %v", group.Tags)
	}

	h := NewMemoryHierarchy()
	h.Seed()
	reopened, err := OpenGroups(path, h)
	if err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Group("neuro")
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if got.DisplayName != "Neurological" || got.MetaTag != domain.MetaDisease {
		t.Errorf("reloaded group = %+v", got)
	}
}

func TestGroupManager_CreateGroupErrors(t *testing.T) {
	g, _ := newTestGroups(t)
	if _, err := g.CreateGroup("neuro", domain.MetaDisease, "", []string{"stroke"}, ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		id      string
		meta    domain.MetaTag
		tags    []string
		wantErr error
	}{
		{"duplicate id", "neuro", domain.MetaDisease, []string{"cerebral_palsy"}, domain.ErrDuplicateGroup},
		{"alias not canonical", "x", domain.MetaDisease, []string{"CVA"}, domain.ErrUnknownTag},
		{"wrong meta-tag", "y", domain.MetaMethod, []string{"stroke"}, domain.ErrUnknownTag},
		{"empty id", " ", domain.MetaDisease, []string{"stroke"}, domain.ErrValidation},
		{"no tags", "z", domain.MetaDisease, nil, domain.ErrValidation},
		{"bad meta", "w", domain.MetaTag("organ"), []string{"stroke"}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.CreateGroup(tt.id, tt.meta, "", tt.tags, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := len(g.Groups()); n != 1 {
		t.Errorf("failed creates left %d groups", n)
	}
}

func TestGroupManager_Queries(t *testing.T) {
	g, _ := newTestGroups(t)
	g.CreateGroup("neuro", domain.MetaDisease, "", []string{"stroke", "parkinsons_disease"}, "")
	g.CreateGroup("acute", domain.MetaDisease, "", []string{"stroke", "spinal_cord_injury"}, "")
	g.CreateGroup("ortho", domain.MetaDisease, "", []string{"osteoarthritis"}, "")

	var ids []string
	for _, group := range g.GroupsForTag("stroke") {
		ids = append(ids, group.ID)
	}
	if !slices.Equal(ids, []string{"acute", "neuro"}) {
		t.Errorf("GroupsForTag = %v", ids)
	}
	if got := g.RelatedTags("stroke"); !slices.Equal(got, []string{"parkinsons_disease", "spinal_cord_injury"}) {
		t.Errorf("RelatedTags = %v", got)
	}
	if _, err := g.Group("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing group: %v", err)
	}
}

func TestGroupManager_SuggestGroupsMetaTag(t *testing.T) {
	g, _ := newTestGroups(t)
	source := staticTagSets{
		{"stroke", "parkinsons_disease"},
		{"stroke", "parkinsons_disease"},
		{"gait_analysis", "elderly"},
	}
	got := g.SuggestGroups(source, 1)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].MetaTag != domain.MetaDisease {
		t.Errorf("single meta-tag cluster: %q", got[0].MetaTag)
	}
	if got[1].MetaTag != "" {
		t.Errorf("mixed cluster should have no meta-tag, got %q", got[1].MetaTag)
	}
	if len(g.Groups()) != 0 {
		t.Error("suggesting must not create groups")
	}
}
