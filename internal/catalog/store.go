package catalog

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/fsutil"
	"github.com/pbaille/medcat/internal/logging"
)

// Vocabulary answers whether tags are canonical
type Vocabulary interface {
	IsCanonical(meta domain.MetaTag, tag string) bool
	MetaTagsOf(tag string) []domain.MetaTag
}

// Option configures a Store
type Option func(*options)

type options struct {
	logger *log.Logger
	now    func() time.Time
	ids    IDScheme
	prefix string
	width  int
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs selects the id scheme used by NextID
func WithIDs(scheme IDScheme, prefix string, width int) Option {
	return func(o *options) {
		o.ids = scheme
		if prefix != "" {
			o.prefix = prefix
		}
		if width > 0 {
			o.width = width
		}
	}
}

// catalogFile is the on-disk layout of catalog.json
type catalogFile struct {
	Revision  int64                  `json:"revision"`
	UpdatedAt time.Time              `json:"updated_at"`
	Order     []string               `json:"order"`
	Papers    map[string]domain.Item `json:"papers"`
	Metadata  Metadata               `json:"metadata"`
}

func emptyCatalog() *catalogFile {
	return &catalogFile{Order: []string{}, Papers: map[string]domain.Item{}}
}

func (f *catalogFile) clone() *catalogFile {
	out := &catalogFile{
		Revision:  f.Revision,
		UpdatedAt: f.UpdatedAt,
		Order:     slices.Clone(f.Order),
		Papers:    make(map[string]domain.Item, len(f.Papers)),
		Metadata:  f.Metadata,
	}
	for id, it := range f.Papers {
		out.Papers[id] = it.Clone()
	}
	return out
}

// repair keeps order and papers consistent for hand-edited files
func (f *catalogFile) repair() {
	if f.Papers == nil {
		f.Papers = map[string]domain.Item{}
	}
	seen := make(map[string]bool, len(f.Order))
	order := f.Order[:0]
	for _, id := range f.Order {
		if _, ok := f.Papers[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	var missing []string
	for id := range f.Papers {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	f.Order = append(order, missing...)
}

// Store is the authoritative catalog of items, backed by a JSON file.
// Reads are served from the loaded snapshot; every mutation reloads the file
// first and commits through an atomic rename.
type Store struct {
	path  string
	vocab Vocabulary
	opts  options
	state *catalogFile
}

// Open loads the catalog at path. A missing file yields an empty catalog.
// An empty path keeps the catalog in memory only.
func Open(path string, vocab Vocabulary, opts ...Option) (*Store, error) {
	o := options{now: time.Now, ids: IDSequential, prefix: "paper", width: 3}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDiscard(o.logger)

	s := &Store{path: path, vocab: vocab, opts: o, state: emptyCatalog()}
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	s.state = state
	return s, nil
}

// Path returns the backing file path
func (s *Store) Path() string { return s.path }

// Revision returns the revision of the loaded snapshot
func (s *Store) Revision() int64 { return s.state.Revision }

// Len returns the number of items
func (s *Store) Len() int { return len(s.state.Order) }

func (s *Store) load() (*catalogFile, error) {
	if s.path == "" {
		return s.state.clone(), nil
	}
	f := emptyCatalog()
	if err := fsutil.ReadJSON(s.path, f); err != nil {
		if os.IsNotExist(err) {
			return emptyCatalog(), nil
		}
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	f.repair()
	return f, nil
}

// Reload re-reads the backing file
func (s *Store) Reload() error {
	state, err := s.load()
	if err != nil {
		return err
	}
	s.state = state
	return nil
}

func (s *Store) diskRevision() (int64, error) {
	var f struct {
		Revision int64 `json:"revision"`
	}
	if err := fsutil.ReadJSON(s.path, &f); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return f.Revision, nil
}

// mutate applies fn to freshly loaded state and commits the result.
// The snapshot is replaced only after a successful write.
func (s *Store) mutate(fn func(f *catalogFile) error) error {
	f, err := s.load()
	if err != nil {
		return err
	}
	base := f.Revision
	if err := fn(f); err != nil {
		return err
	}
	now := s.now()
	f.Revision = base + 1
	f.UpdatedAt = now
	f.Metadata = computeMetadata(f, now)

	if s.path != "" {
		data, err := fsutil.MarshalStable(f)
		if err != nil {
			return fmt.Errorf("marshal catalog: %w", err)
		}
		err = fsutil.WriteFileAtomicFunc(s.path, data, 0o644, func() error {
			rev, err := s.diskRevision()
			if err != nil {
				return err
			}
			if rev != base {
				return domain.Errorf(domain.ErrConflict, "catalog revision moved from %d to %d", base, rev)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("save catalog: %w", err)
		}
		s.opts.logger.Info("saved catalog", "path", s.path, "revision", f.Revision, "papers", len(f.Order))
	}
	s.state = f
	return nil
}

func (s *Store) now() time.Time {
	return s.opts.now().UTC().Round(0)
}

// touch returns a modification time strictly after prev
func (s *Store) touch(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// Upsert inserts or replaces an item. Tags and perspective values must already
// be canonical. date_added is kept from the existing record, date_modified
// always advances.
func (s *Store) Upsert(item domain.Item) (domain.Item, error) {
	item = item.Clone()
	item.Tags = domain.TagSet(item.Tags)
	if item.ReadStatus == "" {
		item.ReadStatus = domain.StatusUnread
	}
	if item.Priority == "" {
		item.Priority = domain.PriorityMedium
	}
	if item.Authors == nil {
		item.Authors = []string{}
	}
	if err := s.validate(&item); err != nil {
		return domain.Item{}, err
	}

	var stored domain.Item
	err := s.mutate(func(f *catalogFile) error {
		prev, exists := f.Papers[item.ID]
		if exists {
			item.DateAdded = prev.DateAdded
			item.DateModified = s.touch(prev.DateModified)
		} else {
			now := s.now()
			if item.DateAdded.IsZero() {
				item.DateAdded = now
			}
			item.DateAdded = item.DateAdded.UTC().Round(0)
			item.DateModified = s.touch(item.DateAdded.Add(-time.Microsecond))
			f.Order = append(f.Order, item.ID)
		}
		f.Papers[item.ID] = item
		stored = item.Clone()
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	s.opts.logger.Debug("upserted item", "id", item.ID)
	return stored, nil
}

// Get returns a copy of the item with the given id
func (s *Store) Get(id string) (domain.Item, error) {
	it, ok := s.state.Papers[id]
	if !ok {
		return domain.Item{}, domain.Errorf(domain.ErrNotFound, "item %q", id)
	}
	return it.Clone(), nil
}

// Has reports whether id is cataloged
func (s *Store) Has(id string) bool {
	_, ok := s.state.Papers[id]
	return ok
}

// Update applies fn to a copy of the item and commits the result if it validates.
// The id cannot be changed.
func (s *Store) Update(id string, fn func(it *domain.Item) error) (domain.Item, error) {
	var stored domain.Item
	err := s.mutate(func(f *catalogFile) error {
		prev, ok := f.Papers[id]
		if !ok {
			return domain.Errorf(domain.ErrNotFound, "item %q", id)
		}
		it := prev.Clone()
		if err := fn(&it); err != nil {
			return err
		}
		if it.ID != id {
			return domain.Errorf(domain.ErrValidation, "id of %q cannot change to %q", id, it.ID)
		}
		it.Tags = domain.TagSet(it.Tags)
		if err := s.validate(&it); err != nil {
			return err
		}
		it.DateAdded = prev.DateAdded
		it.DateModified = s.touch(prev.DateModified)
		f.Papers[id] = it
		stored = it.Clone()
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	return stored, nil
}

// SetReadStatus changes an item's read status
func (s *Store) SetReadStatus(id string, status domain.ReadStatus) (domain.Item, error) {
	if _, err := domain.ParseReadStatus(string(status)); err != nil {
		return domain.Item{}, err
	}
	return s.Update(id, func(it *domain.Item) error {
		it.ReadStatus = status
		return nil
	})
}

// SetPriority changes an item's priority
func (s *Store) SetPriority(id string, p domain.Priority) (domain.Item, error) {
	if _, err := domain.ParsePriority(string(p)); err != nil {
		return domain.Item{}, err
	}
	return s.Update(id, func(it *domain.Item) error {
		it.Priority = p
		return nil
	})
}

// SetPerspective assigns a canonical tag (or not_applicable) along one meta-tag
func (s *Store) SetPerspective(id string, meta domain.MetaTag, tag string) (domain.Item, error) {
	return s.Update(id, func(it *domain.Item) error {
		if it.Perspectives == nil {
			it.Perspectives = map[domain.MetaTag]string{}
		}
		it.Perspectives[meta] = tag
		if tag != domain.NotApplicable {
			it.Tags = append(it.Tags, tag)
		}
		return nil
	})
}

// AddTags adds canonical tags to an item's tag set
func (s *Store) AddTags(id string, tags ...string) (domain.Item, error) {
	return s.Update(id, func(it *domain.Item) error {
		it.Tags = append(it.Tags, tags...)
		return nil
	})
}

// RemoveTags drops tags from an item's tag set. Tags used as perspective values stay.
func (s *Store) RemoveTags(id string, tags ...string) (domain.Item, error) {
	return s.Update(id, func(it *domain.Item) error {
		it.Tags = slices.DeleteFunc(it.Tags, func(t string) bool {
			return slices.Contains(tags, t) && !isPerspectiveValue(it, t)
		})
		return nil
	})
}

func isPerspectiveValue(it *domain.Item, tag string) bool {
	for _, v := range it.Perspectives {
		if v == tag {
			return true
		}
	}
	return false
}

// TagSets returns every item's tag set in insertion order
func (s *Store) TagSets() [][]string {
	out := make([][]string, 0, len(s.state.Order))
	for _, id := range s.state.Order {
		out = append(out, slices.Clone(s.state.Papers[id].Tags))
	}
	return out
}
