package ingest

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/logging"
	"github.com/pbaille/medcat/internal/taxonomy"
)

// Catalog is the part of the catalog store ingestion writes to
type Catalog interface {
	Upsert(item domain.Item) (domain.Item, error)
	NextID() string
}

// Ingester turns raw records into validated catalog items
type Ingester struct {
	cat    Catalog
	norm   *taxonomy.Normalizer
	logger *log.Logger
}

// New creates an Ingester
func New(cat Catalog, norm *taxonomy.Normalizer, logger *log.Logger) *Ingester {
	return &Ingester{cat: cat, norm: norm, logger: logging.OrDiscard(logger)}
}

// Failure records a record that was not ingested
type Failure struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Result lists what an Ingest call stored and what it rejected
type Result struct {
	Added  []domain.Item `json:"added"`
	Failed []Failure     `json:"failed,omitempty"`
}

// Ingest stores each record independently. A failing record does not stop the others.
func (in *Ingester) Ingest(records []Record) Result {
	var res Result
	for i, r := range records {
		item, err := in.IngestOne(r)
		if err != nil {
			in.logger.Warn("skipped record", "index", i, "id", r.ID, "err", err)
			res.Failed = append(res.Failed, Failure{Index: i, ID: r.ID, Title: r.Title, Reason: err.Error(), Err: err})
			continue
		}
		res.Added = append(res.Added, item)
	}
	return res
}

// IngestOne normalizes a record and upserts it
func (in *Ingester) IngestOne(r Record) (domain.Item, error) {
	item, err := in.ToItem(r)
	if err != nil {
		return domain.Item{}, err
	}
	stored, err := in.cat.Upsert(item)
	if err != nil {
		return domain.Item{}, err
	}
	in.logger.Info("ingested", "id", stored.ID, "title", stored.Title)
	return stored, nil
}

// ToItem normalizes every tag value of r and assigns an id when r has none.
// Unknown tags fail with ErrUnknownTag; nothing is registered.
func (in *Ingester) ToItem(r Record) (domain.Item, error) {
	item := domain.Item{
		ID:              strings.TrimSpace(r.ID),
		Title:           strings.TrimSpace(r.Title),
		Authors:         trimAll(r.Authors),
		Year:            r.Year,
		Journal:         r.Journal,
		Volume:          r.Volume,
		Issue:           r.Issue,
		Pages:           r.Pages,
		DOI:             r.DOI,
		PMID:            r.PMID,
		StudyDesign:     r.StudyDesign,
		SampleSize:      r.SampleSize,
		StudyPopulation: r.StudyPopulation,
		Keywords:        trimAll(r.Keywords),
		Language:        r.Language,
		Abstract:        strings.TrimSpace(r.Abstract),
		Summary:         strings.TrimSpace(r.Summary),
		ArtifactPath:    r.ArtifactPath,
		Perspectives:    map[domain.MetaTag]string{},
	}
	if item.Title == "" {
		return domain.Item{}, domain.Errorf(domain.ErrValidation, "record %q: title is required", r.ID)
	}
	if item.Language == "" {
		item.Language = "en"
	}
	if r.ReadStatus != "" {
		rs, err := domain.ParseReadStatus(strings.ToLower(r.ReadStatus))
		if err != nil {
			return domain.Item{}, err
		}
		item.ReadStatus = rs
	}
	if r.Priority != "" {
		p, err := domain.ParsePriority(strings.ToLower(r.Priority))
		if err != nil {
			return domain.Item{}, err
		}
		item.Priority = p
	}

	raw := make(map[string]string, len(r.Perspectives)+1)
	for k, v := range r.Perspectives {
		raw[k] = v
	}
	if r.StudyType != "" && strings.TrimSpace(raw[string(domain.MetaStudyType)]) == "" {
		raw[string(domain.MetaStudyType)] = r.StudyType
	}
	var tags []string
	for name, value := range raw {
		meta, err := domain.ParseMetaTag(taxonomy.Key(name))
		if err != nil {
			return domain.Item{}, err
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if taxonomy.Key(value) == domain.NotApplicable {
			item.Perspectives[meta] = domain.NotApplicable
			continue
		}
		canonical, err := in.norm.Normalize(value, meta)
		if err != nil {
			return domain.Item{}, err
		}
		item.Perspectives[meta] = canonical
		tags = append(tags, canonical)
	}
	if item.Perspectives[domain.MetaStudyType] == "" {
		return domain.Item{}, domain.Errorf(domain.ErrValidation, "record %q: study_type is required", r.Title)
	}

	for _, t := range r.Tags {
		canonical, err := in.resolveTag(t)
		if err != nil {
			return domain.Item{}, err
		}
		if canonical != "" {
			tags = append(tags, canonical)
		}
	}
	item.Tags = domain.TagSet(tags)

	if item.ID == "" {
		item.ID = in.cat.NextID()
	}
	return item, nil
}

// resolveTag accepts "meta:tag" to pin a meta-tag, otherwise tries every meta-tag
func (in *Ingester) resolveTag(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if prefix, rest, ok := strings.Cut(raw, ":"); ok {
		if meta, err := domain.ParseMetaTag(taxonomy.Key(prefix)); err == nil {
			return in.norm.Normalize(rest, meta)
		}
	}
	_, canonical, err := in.norm.ResolveAny(raw)
	return canonical, err
}

func trimAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
