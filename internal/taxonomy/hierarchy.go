package taxonomy

import (
	"fmt"
	"iter"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/fsutil"
	"github.com/pbaille/medcat/internal/logging"
)

// Tag is a canonical tag with its aliases
type Tag struct {
	MetaTag domain.MetaTag `json:"meta_tag"`
	Name    string         `json:"name"`
	Aliases []string       `json:"aliases,omitempty"`
}

// Option configures a Hierarchy or GroupManager
type Option func(*options)

type options struct {
	logger *log.Logger
	now    func() time.Time
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDiscard(o.logger)
	return o
}

// hierarchyFile is the on-disk layout of tag_hierarchy.json
type hierarchyFile struct {
	Revision  int64                                  `json:"revision"`
	UpdatedAt time.Time                              `json:"updated_at"`
	MetaTags  map[domain.MetaTag]map[string][]string `json:"meta_tags"`
}

// vocab is the validated in-memory form of a hierarchy file
type vocab struct {
	revision int64
	tags     map[domain.MetaTag]map[string][]string // canonical -> aliases
	index    map[domain.MetaTag]map[string]string   // alias key -> canonical
}

func newVocab() *vocab {
	v := &vocab{
		tags:  make(map[domain.MetaTag]map[string][]string),
		index: make(map[domain.MetaTag]map[string]string),
	}
	for _, m := range domain.MetaTags {
		v.tags[m] = make(map[string][]string)
		v.index[m] = make(map[string]string)
	}
	return v
}

func vocabFromFile(f hierarchyFile) (*vocab, error) {
	v := newVocab()
	v.revision = f.Revision
	for meta, canon := range f.MetaTags {
		if !meta.Valid() {
			return nil, domain.Errorf(domain.ErrValidation, "hierarchy: unknown meta-tag %q", meta)
		}
		names := make([]string, 0, len(canon))
		for name := range canon {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if Key(name) != name {
				return nil, domain.Errorf(domain.ErrValidation, "hierarchy: canonical tag %q is not in normalized form", name)
			}
			if err := v.addTag(meta, name, canon[name]); err != nil {
				return nil, fmt.Errorf("hierarchy: %w", err)
			}
		}
	}
	return v, nil
}

func (v *vocab) toFile() hierarchyFile {
	f := hierarchyFile{
		Revision: v.revision,
		MetaTags: make(map[domain.MetaTag]map[string][]string, len(v.tags)),
	}
	for meta, canon := range v.tags {
		m := make(map[string][]string, len(canon))
		for name, aliases := range canon {
			if aliases == nil {
				aliases = []string{}
			}
			m[name] = slices.Clone(aliases)
		}
		f.MetaTags[meta] = m
	}
	return f
}

func (v *vocab) resolve(meta domain.MetaTag, raw string) (string, bool) {
	c, ok := v.index[meta][Key(raw)]
	return c, ok
}

func (v *vocab) addTag(meta domain.MetaTag, canonical string, aliases []string) error {
	ck := Key(canonical)
	if ck == "" {
		return domain.Errorf(domain.ErrValidation, "empty canonical tag %q", canonical)
	}
	if _, exists := v.tags[meta][ck]; exists {
		return domain.Errorf(domain.ErrDuplicateTag, "%q already exists under %s", ck, meta)
	}
	if owner, bound := v.index[meta][ck]; bound {
		return domain.Errorf(domain.ErrDuplicateTag, "%q is already an alias of %q under %s", ck, owner, meta)
	}

	var kept []string
	seen := map[string]bool{ck: true}
	for _, alias := range aliases {
		ak := Key(alias)
		if ak == "" {
			return domain.Errorf(domain.ErrValidation, "empty alias %q for %q", alias, ck)
		}
		if owner, bound := v.index[meta][ak]; bound && owner != ck {
			return domain.Errorf(domain.ErrDuplicateTag, "alias %q is already bound to %q under %s", alias, owner, meta)
		}
		if seen[ak] {
			continue
		}
		seen[ak] = true
		kept = append(kept, alias)
	}

	v.tags[meta][ck] = kept
	v.index[meta][ck] = ck
	for _, alias := range kept {
		v.index[meta][Key(alias)] = ck
	}
	return nil
}

// addAlias reports whether the vocabulary changed
func (v *vocab) addAlias(meta domain.MetaTag, canonical, alias string) (bool, error) {
	ck := Key(canonical)
	if _, exists := v.tags[meta][ck]; !exists {
		return false, domain.Errorf(domain.ErrUnknownTag, "%q is not a canonical tag under %s", canonical, meta)
	}
	ak := Key(alias)
	if ak == "" {
		return false, domain.Errorf(domain.ErrValidation, "empty alias %q", alias)
	}
	if owner, bound := v.index[meta][ak]; bound {
		if owner == ck {
			return false, nil
		}
		return false, domain.Errorf(domain.ErrAliasConflict, "alias %q is already bound to %q under %s", alias, owner, meta)
	}
	v.tags[meta][ck] = append(v.tags[meta][ck], alias)
	v.index[meta][ak] = ck
	return true, nil
}

// Hierarchy holds canonical tags and aliases per meta-tag, backed by a JSON file
type Hierarchy struct {
	path string
	opts options
	v    *vocab
}

// OpenHierarchy loads the hierarchy at path. A missing file yields an empty hierarchy.
func OpenHierarchy(path string, opts ...Option) (*Hierarchy, error) {
	h := &Hierarchy{path: path, opts: buildOptions(opts)}
	v, err := h.load()
	if err != nil {
		return nil, err
	}
	h.v = v
	return h, nil
}

// NewMemoryHierarchy builds an unpersisted hierarchy, mainly for tests and seeding previews
func NewMemoryHierarchy(opts ...Option) *Hierarchy {
	return &Hierarchy{opts: buildOptions(opts), v: newVocab()}
}

// Path returns the backing file path ("" for memory hierarchies)
func (h *Hierarchy) Path() string { return h.path }

// Revision returns the revision of the loaded state
func (h *Hierarchy) Revision() int64 { return h.v.revision }

func (h *Hierarchy) load() (*vocab, error) {
	if h.path == "" {
		if h.v == nil {
			return newVocab(), nil
		}
		return h.v, nil
	}
	var f hierarchyFile
	if err := fsutil.ReadJSON(h.path, &f); err != nil {
		if os.IsNotExist(err) {
			return newVocab(), nil
		}
		return nil, fmt.Errorf("load tag hierarchy: %w", err)
	}
	return vocabFromFile(f)
}

func (h *Hierarchy) diskRevision() (int64, error) {
	var f struct {
		Revision int64 `json:"revision"`
	}
	if err := fsutil.ReadJSON(h.path, &f); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return f.Revision, nil
}

// mutate runs fn against freshly loaded state and commits it atomically.
// fn returning changed=false skips the write.
func (h *Hierarchy) mutate(fn func(v *vocab) (bool, error)) error {
	var v *vocab
	if h.path == "" {
		v = h.v.clone()
	} else {
		loaded, err := h.load()
		if err != nil {
			return err
		}
		v = loaded
	}
	base := v.revision

	changed, err := fn(v)
	if err != nil {
		return err
	}
	if !changed {
		h.v = v
		return nil
	}
	v.revision = base + 1

	if h.path != "" {
		f := v.toFile()
		f.UpdatedAt = h.opts.now().UTC()
		data, err := fsutil.MarshalStable(f)
		if err != nil {
			return fmt.Errorf("marshal tag hierarchy: %w", err)
		}
		err = fsutil.WriteFileAtomicFunc(h.path, data, 0o644, func() error {
			rev, err := h.diskRevision()
			if err != nil {
				return err
			}
			if rev != base {
				return domain.Errorf(domain.ErrConflict, "tag hierarchy revision moved from %d to %d", base, rev)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("save tag hierarchy: %w", err)
		}
		h.opts.logger.Info("saved tag hierarchy", "path", h.path, "revision", v.revision)
	}
	h.v = v
	return nil
}

func (v *vocab) clone() *vocab {
	out := newVocab()
	out.revision = v.revision
	for meta, canon := range v.tags {
		for name, aliases := range canon {
			out.tags[meta][name] = slices.Clone(aliases)
		}
	}
	for meta, idx := range v.index {
		for k, c := range idx {
			out.index[meta][k] = c
		}
	}
	return out
}

// Reload re-reads the backing file
func (h *Hierarchy) Reload() error {
	v, err := h.load()
	if err != nil {
		return err
	}
	h.v = v
	return nil
}

// Resolve maps a raw string to its canonical tag under meta
func (h *Hierarchy) Resolve(meta domain.MetaTag, raw string) (string, bool) {
	return h.v.resolve(meta, raw)
}

// IsCanonical reports whether tag is a canonical tag under meta, exactly as spelled
func (h *Hierarchy) IsCanonical(meta domain.MetaTag, tag string) bool {
	_, ok := h.v.tags[meta][tag]
	return ok
}

// MetaTagsOf lists the meta-tags under which tag is canonical, in enum order
func (h *Hierarchy) MetaTagsOf(tag string) []domain.MetaTag {
	var out []domain.MetaTag
	for _, m := range domain.MetaTags {
		if _, ok := h.v.tags[m][tag]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Aliases returns the aliases registered for a canonical tag
func (h *Hierarchy) Aliases(meta domain.MetaTag, canonical string) []string {
	return slices.Clone(h.v.tags[meta][canonical])
}

// AddTag registers a new canonical tag with its aliases
func (h *Hierarchy) AddTag(meta domain.MetaTag, canonical string, aliases ...string) error {
	if !meta.Valid() {
		return domain.Errorf(domain.ErrValidation, "unknown meta-tag %q", meta)
	}
	return h.mutate(func(v *vocab) (bool, error) {
		return true, v.addTag(meta, canonical, aliases)
	})
}

// AddAlias binds alias to an existing canonical tag
func (h *Hierarchy) AddAlias(meta domain.MetaTag, canonical, alias string) error {
	if !meta.Valid() {
		return domain.Errorf(domain.ErrValidation, "unknown meta-tag %q", meta)
	}
	return h.mutate(func(v *vocab) (bool, error) {
		return v.addAlias(meta, canonical, alias)
	})
}

// Tags yields the canonical tags of meta ordered by name. An empty meta yields
// every meta-tag in enum order. Each range over the sequence reads current state.
func (h *Hierarchy) Tags(meta domain.MetaTag) iter.Seq[Tag] {
	return func(yield func(Tag) bool) {
		metas := domain.MetaTags
		if meta != "" {
			metas = []domain.MetaTag{meta}
		}
		v := h.v
		for _, m := range metas {
			names := make([]string, 0, len(v.tags[m]))
			for name := range v.tags[m] {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				if !yield(Tag{MetaTag: m, Name: name, Aliases: slices.Clone(v.tags[m][name])}) {
					return
				}
			}
		}
	}
}

// Count returns the number of canonical tags under meta, or overall for ""
func (h *Hierarchy) Count(meta domain.MetaTag) int {
	if meta != "" {
		return len(h.v.tags[meta])
	}
	n := 0
	for _, canon := range h.v.tags {
		n += len(canon)
	}
	return n
}

// IsEmpty reports whether no tags are registered
func (h *Hierarchy) IsEmpty() bool { return h.Count("") == 0 }
