package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/logging"
	"github.com/pbaille/medcat/internal/selection"
	"github.com/pbaille/medcat/internal/textextract"
)

// Skip reasons recorded in the manifest
const (
	ReasonNotFound = "NotFound"
	ReasonNoText   = "NoText"
	ReasonNoPDF    = "NoPDF"
)

// DefaultTextLimit is the configured default for Options.TextLimit
const DefaultTextLimit = 5000

// Catalog resolves selected ids
type Catalog interface {
	Get(id string) (domain.Item, error)
}

// TextExtractor reads the full text of an item's artifact
type TextExtractor interface {
	Extract(ctx context.Context, item domain.Item) (string, error)
}

// Options toggles the optional export steps
type Options struct {
	FullText    bool
	SearchIndex bool
	TextLimit   int    // runes of full text per search entry; 0 keeps all of it
	CopyPDFs    bool   // copy local PDF artifacts into pdfs/
	BaseDir     string // resolves relative artifact paths for CopyPDFs
	Now         func() time.Time
	Logger      *log.Logger
}

// ManifestItem summarizes one exported item
type ManifestItem struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Authors      []string                  `json:"authors"`
	Year         int                       `json:"year,omitempty"`
	Perspectives map[domain.MetaTag]string `json:"perspectives"`
	Tags         []string                  `json:"tags"`
}

// Skip is a selected item left out of the bundle, or a text that could not be extracted
type Skip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Manifest lists the bundle contents in selection order
type Manifest struct {
	ExportedAt    time.Time      `json:"exported_at"`
	IncludedCount int            `json:"included_count"`
	Items         []ManifestItem `json:"items"`
	Skipped       []Skip         `json:"skipped"`
	TextSkipped   []Skip         `json:"text_skipped,omitempty"`
	PDFSkipped    []Skip         `json:"pdf_skipped,omitempty"`
}

// SearchEntry is one document of the search index
type SearchEntry struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Authors      []string                  `json:"authors"`
	Year         int                       `json:"year,omitempty"`
	Abstract     string                    `json:"abstract,omitempty"`
	Summary      string                    `json:"summary,omitempty"`
	Tags         []string                  `json:"tags"`
	Perspectives map[domain.MetaTag]string `json:"perspectives"`
	Keywords     []string                  `json:"keywords,omitempty"`
	Content      string                    `json:"content,omitempty"`
	FilePath     string                    `json:"file_path,omitempty"`
}

// SearchIndex is the JSON search-index artifact
type SearchIndex struct {
	IndexVersion string        `json:"index_version"`
	CreatedAt    time.Time     `json:"created_at"`
	Documents    []SearchEntry `json:"documents"`
}

// Bundle is a built export. Disabled steps leave their fields nil.
type Bundle struct {
	Manifest    Manifest
	Items       []domain.Item
	SearchIndex *SearchIndex
	Texts       map[string]string
	PDFs        map[string]string // id -> local artifact path
}

// Builder assembles bundles from a selection and the catalog
type Builder struct {
	cat    Catalog
	text   TextExtractor
	opts   Options
	logger *log.Logger
}

// NewBuilder creates a Builder. text may be nil when FullText is off.
func NewBuilder(cat Catalog, text TextExtractor, opts Options) *Builder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{cat: cat, text: text, opts: opts, logger: logging.OrDiscard(opts.Logger)}
}

// Build resolves every included entry in order. Missing items are skipped with
// reason NotFound; any other catalog error aborts the build.
func (b *Builder) Build(ctx context.Context, entries []selection.Entry) (*Bundle, error) {
	ids := selection.Included(entries)
	if len(ids) == 0 {
		return nil, domain.Errorf(domain.ErrEmptySelection, "%d entries, none checked", len(entries))
	}

	now := b.opts.Now().UTC().Round(0)
	bundle := &Bundle{
		Manifest: Manifest{ExportedAt: now, Items: []ManifestItem{}, Skipped: []Skip{}},
		Items:    []domain.Item{},
	}
	if b.opts.FullText {
		bundle.Texts = map[string]string{}
	}
	if b.opts.CopyPDFs {
		bundle.PDFs = map[string]string{}
	}
	if b.opts.SearchIndex {
		bundle.SearchIndex = &SearchIndex{IndexVersion: "1.0", CreatedAt: now, Documents: []SearchEntry{}}
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := b.cat.Get(id)
		if errors.Is(err, domain.ErrNotFound) {
			b.logger.Warn("selected item not in catalog", "id", id)
			bundle.Manifest.Skipped = append(bundle.Manifest.Skipped, Skip{ID: id, Reason: ReasonNotFound})
			continue
		}
		if err != nil {
			return nil, err
		}

		bundle.Items = append(bundle.Items, item)
		bundle.Manifest.Items = append(bundle.Manifest.Items, ManifestItem{
			ID:           item.ID,
			Title:        item.Title,
			Authors:      item.Authors,
			Year:         item.Year,
			Perspectives: item.Perspectives,
			Tags:         item.Tags,
		})

		var text string
		if b.opts.FullText {
			text = b.extract(ctx, bundle, item)
		}
		if b.opts.CopyPDFs {
			b.collectPDF(bundle, item)
		}
		if bundle.SearchIndex != nil {
			entry := SearchEntry{
				ID:           item.ID,
				Title:        item.Title,
				Authors:      item.Authors,
				Year:         item.Year,
				Abstract:     item.Abstract,
				Summary:      item.Summary,
				Tags:         item.Tags,
				Perspectives: item.Perspectives,
				Keywords:     item.Keywords,
			}
			if text != "" {
				entry.Content = textextract.Clip(text, b.opts.TextLimit)
				entry.FilePath = textPath(item.ID)
			}
			bundle.SearchIndex.Documents = append(bundle.SearchIndex.Documents, entry)
		}
	}
	bundle.Manifest.IncludedCount = len(bundle.Items)
	return bundle, nil
}

func (b *Builder) extract(ctx context.Context, bundle *Bundle, item domain.Item) string {
	if b.text == nil {
		bundle.Manifest.TextSkipped = append(bundle.Manifest.TextSkipped, Skip{ID: item.ID, Reason: ReasonNoText, Detail: "no extractor configured"})
		return ""
	}
	text, err := b.text.Extract(ctx, item)
	if err != nil {
		b.logger.Warn("text extraction failed", "id", item.ID, "err", err)
		bundle.Manifest.TextSkipped = append(bundle.Manifest.TextSkipped, Skip{ID: item.ID, Reason: ReasonNoText, Detail: err.Error()})
		return ""
	}
	bundle.Texts[item.ID] = text
	return text
}

func (b *Builder) collectPDF(bundle *Bundle, item domain.Item) {
	src := strings.TrimSpace(item.ArtifactPath)
	var detail string
	switch {
	case src == "":
		detail = "no artifact"
	case textextract.IsURL(src) || !strings.EqualFold(filepath.Ext(src), ".pdf"):
		detail = "artifact is not a local pdf"
	default:
		if !filepath.IsAbs(src) && b.opts.BaseDir != "" {
			src = filepath.Join(b.opts.BaseDir, src)
		}
		if _, err := os.Stat(src); err == nil {
			bundle.PDFs[item.ID] = src
			return
		}
		detail = "artifact not found"
	}
	b.logger.Warn("pdf not copied", "id", item.ID, "reason", detail)
	bundle.Manifest.PDFSkipped = append(bundle.Manifest.PDFSkipped, Skip{ID: item.ID, Reason: ReasonNoPDF, Detail: detail})
}
