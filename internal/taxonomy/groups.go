package taxonomy

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/fsutil"
)

// Vocabulary answers canonical-tag membership questions
type Vocabulary interface {
	IsCanonical(meta domain.MetaTag, tag string) bool
	MetaTagsOf(tag string) []domain.MetaTag
}

// TagSetSource supplies the tag set of every cataloged item
type TagSetSource interface {
	TagSets() [][]string
}

type groupsFile struct {
	Revision  int64                      `json:"revision"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Groups    map[string]domain.TagGroup `json:"groups"`
}

// GroupManager manages tag groups, backed by a JSON file
type GroupManager struct {
	path     string
	vocab    Vocabulary
	opts     options
	revision int64
	groups   map[string]domain.TagGroup
}

// OpenGroups loads the group file at path. A missing file yields no groups.
func OpenGroups(path string, vocab Vocabulary, opts ...Option) (*GroupManager, error) {
	g := &GroupManager{path: path, vocab: vocab, opts: buildOptions(opts)}
	f, err := g.load()
	if err != nil {
		return nil, err
	}
	g.revision, g.groups = f.Revision, f.Groups
	return g, nil
}

func (g *GroupManager) load() (groupsFile, error) {
	f := groupsFile{Groups: map[string]domain.TagGroup{}}
	if g.path == "" {
		f.Revision, f.Groups = g.revision, maps.Clone(g.groups)
		if f.Groups == nil {
			f.Groups = map[string]domain.TagGroup{}
		}
		return f, nil
	}
	if err := fsutil.ReadJSON(g.path, &f); err != nil {
		if os.IsNotExist(err) {
			return groupsFile{Groups: map[string]domain.TagGroup{}}, nil
		}
		return groupsFile{}, fmt.Errorf("load tag groups: %w", err)
	}
	if f.Groups == nil {
		f.Groups = map[string]domain.TagGroup{}
	}
	return f, nil
}

// CreateGroup adds a group whose tags must all be canonical under meta
func (g *GroupManager) CreateGroup(id string, meta domain.MetaTag, displayName string, tags []string, description string) (domain.TagGroup, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TagGroup{}, domain.Errorf(domain.ErrValidation, "group id is required")
	}
	if !meta.Valid() {
		return domain.TagGroup{}, domain.Errorf(domain.ErrValidation, "unknown meta-tag %q", meta)
	}
	members := domain.TagSet(tags)
	if len(members) == 0 {
		return domain.TagGroup{}, domain.Errorf(domain.ErrValidation, "group %q needs at least one tag", id)
	}
	for _, tag := range members {
		if !g.vocab.IsCanonical(meta, tag) {
			return domain.TagGroup{}, domain.Errorf(domain.ErrUnknownTag, "%q is not a canonical tag under %s", tag, meta)
		}
	}
	if displayName == "" {
		displayName = id
	}
	group := domain.TagGroup{
		ID:          id,
		MetaTag:     meta,
		DisplayName: displayName,
		Tags:        members,
		Description: description,
	}

	f, err := g.load()
	if err != nil {
		return domain.TagGroup{}, err
	}
	if _, exists := f.Groups[id]; exists {
		return domain.TagGroup{}, domain.Errorf(domain.ErrDuplicateGroup, "%q already exists", id)
	}
	base := f.Revision
	f.Groups[id] = group
	f.Revision = base + 1
	f.UpdatedAt = g.opts.now().UTC()

	if g.path != "" {
		data, err := fsutil.MarshalStable(f)
		if err != nil {
			return domain.TagGroup{}, fmt.Errorf("marshal tag groups: %w", err)
		}
		err = fsutil.WriteFileAtomicFunc(g.path, data, 0o644, func() error {
			return g.checkRevision(base)
		})
		if err != nil {
			return domain.TagGroup{}, fmt.Errorf("save tag groups: %w", err)
		}
		g.opts.logger.Info("saved tag groups", "path", g.path, "revision", f.Revision, "group", id)
	}
	g.revision, g.groups = f.Revision, f.Groups
	return group, nil
}

func (g *GroupManager) checkRevision(base int64) error {
	var f struct {
		Revision int64 `json:"revision"`
	}
	if err := fsutil.ReadJSON(g.path, &f); err != nil && !os.IsNotExist(err) {
		return err
	}
	if f.Revision != base {
		return domain.Errorf(domain.ErrConflict, "tag groups revision moved from %d to %d", base, f.Revision)
	}
	return nil
}

// Group returns a group by id
func (g *GroupManager) Group(id string) (domain.TagGroup, error) {
	group, ok := g.groups[id]
	if !ok {
		return domain.TagGroup{}, domain.Errorf(domain.ErrNotFound, "group %q", id)
	}
	return group, nil
}

// Groups returns every group ordered by id
func (g *GroupManager) Groups() []domain.TagGroup {
	ids := slices.Sorted(maps.Keys(g.groups))
	out := make([]domain.TagGroup, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.groups[id])
	}
	return out
}

// GroupsForTag returns the groups containing tag, ordered by id
func (g *GroupManager) GroupsForTag(tag string) []domain.TagGroup {
	var out []domain.TagGroup
	for _, group := range g.Groups() {
		if slices.Contains(group.Tags, tag) {
			out = append(out, group)
		}
	}
	return out
}

// RelatedTags returns the other members of every group containing tag
func (g *GroupManager) RelatedTags(tag string) []string {
	var related []string
	for _, group := range g.GroupsForTag(tag) {
		for _, t := range group.Tags {
			if t != tag {
				related = append(related, t)
			}
		}
	}
	return domain.TagSet(related)
}

// SuggestGroups proposes groups from co-occurrence over the source's tag sets.
// It reads state only; nothing is created.
func (g *GroupManager) SuggestGroups(source TagSetSource, minCooccurrence int) []Suggestion {
	suggestions := SuggestGroups(source.TagSets(), minCooccurrence)
	for i := range suggestions {
		suggestions[i].MetaTag = g.commonMetaTag(suggestions[i].Tags)
	}
	return suggestions
}

func (g *GroupManager) commonMetaTag(tags []string) domain.MetaTag {
	var common []domain.MetaTag
	for i, tag := range tags {
		metas := g.vocab.MetaTagsOf(tag)
		if i == 0 {
			common = metas
			continue
		}
		common = slices.DeleteFunc(common, func(m domain.MetaTag) bool {
			return !slices.Contains(metas, m)
		})
	}
	if len(common) == 0 {
		return ""
	}
	return common[0]
}
