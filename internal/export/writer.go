package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/fsutil"
	"github.com/pbaille/medcat/internal/index"
)

// ErrBundleExists is returned when the target directory already holds a bundle
var ErrBundleExists = errors.New("export bundle already exists")

// Bundle file names
const (
	ManifestFile    = "manifest.json"
	SearchIndexFile = "search_index.json"
	SQLiteIndexFile = "search_index.db"
	ReadmeFile      = "README.md"
	MetadataDir     = "metadata"
	TextsDir        = "texts"
	PDFsDir         = "pdfs"
)

// WriteOptions controls how a bundle is written
type WriteOptions struct {
	Overwrite   bool
	SQLiteIndex bool
}

// WriteBundle writes b under dir and returns the written paths relative to dir.
// The manifest is written last, so a directory without one is never a complete bundle.
// With Overwrite, every artifact of a previous bundle is removed first.
func WriteBundle(dir string, b *Bundle, opts WriteOptions) ([]string, error) {
	if err := checkFileNames(b.Items); err != nil {
		return nil, err
	}
	manifestPath := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil && !opts.Overwrite {
		return nil, fmt.Errorf("%w: %s", ErrBundleExists, manifestPath)
	}
	if opts.Overwrite {
		if err := clearBundle(dir); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, MetadataDir), 0o755); err != nil {
		return nil, fmt.Errorf("create bundle dir: %w", err)
	}

	var written []string
	write := func(rel string, data []byte) error {
		if err := fsutil.WriteFileAtomic(filepath.Join(dir, rel), data, 0o644); err != nil {
			return err
		}
		written = append(written, rel)
		return nil
	}
	writeJSON := func(rel string, v any) error {
		data, err := fsutil.MarshalStable(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", rel, err)
		}
		return write(rel, data)
	}

	for _, item := range b.Items {
		if err := writeJSON(metadataPath(item.ID), item); err != nil {
			return nil, err
		}
	}

	if b.Texts != nil {
		if err := os.MkdirAll(filepath.Join(dir, TextsDir), 0o755); err != nil {
			return nil, fmt.Errorf("create texts dir: %w", err)
		}
		for _, item := range b.Items {
			text, ok := b.Texts[item.ID]
			if !ok {
				continue
			}
			if err := write(textPath(item.ID), []byte(text+"\n")); err != nil {
				return nil, err
			}
		}
	}

	for _, item := range b.Items {
		src, ok := b.PDFs[item.ID]
		if !ok {
			continue
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("copy pdf of %s: %w", item.ID, err)
		}
		if err := write(pdfPath(item.ID), data); err != nil {
			return nil, err
		}
	}

	if b.SearchIndex != nil {
		if err := writeJSON(SearchIndexFile, b.SearchIndex); err != nil {
			return nil, err
		}
	}

	if opts.SQLiteIndex {
		if err := writeSQLite(filepath.Join(dir, SQLiteIndexFile), b); err != nil {
			return nil, err
		}
		written = append(written, SQLiteIndexFile)
	}

	if err := write(ReadmeFile, []byte(Readme(b, opts.SQLiteIndex))); err != nil {
		return nil, err
	}
	if err := writeJSON(ManifestFile, b.Manifest); err != nil {
		return nil, err
	}
	return written, nil
}

// clearBundle removes a previous bundle's artifacts, manifest first
func clearBundle(dir string) error {
	for _, name := range []string{ManifestFile, ReadmeFile, SearchIndexFile, SQLiteIndexFile, MetadataDir, TextsDir, PDFsDir} {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("clear previous bundle: %w", err)
		}
	}
	return nil
}

// checkFileNames rejects ids that would share a file inside the bundle
func checkFileNames(items []domain.Item) error {
	owner := make(map[string]string, len(items))
	for _, item := range items {
		name := fileName(item.ID)
		if prev, ok := owner[name]; ok {
			return domain.Errorf(domain.ErrValidation, "ids %q and %q map to the same bundle file %q", prev, item.ID, name)
		}
		owner[name] = item.ID
	}
	return nil
}

func writeSQLite(path string, b *Bundle) error {
	docs := make([]index.Document, 0, len(b.Items))
	for _, item := range b.Items {
		docs = append(docs, index.Document{
			ID:           item.ID,
			Title:        item.Title,
			Authors:      item.Authors,
			Year:         item.Year,
			Abstract:     item.Abstract,
			Summary:      item.Summary,
			Content:      b.Texts[item.ID],
			Tags:         item.Tags,
			Perspectives: item.Perspectives,
		})
	}
	ix, err := index.Create(path)
	if err != nil {
		return err
	}
	if err := ix.AddAll(docs); err != nil {
		ix.Close()
		return err
	}
	return ix.Close()
}

// fileName keeps ids from escaping their directory
func fileName(id string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(id)
}

func metadataPath(id string) string {
	return filepath.ToSlash(filepath.Join(MetadataDir, fileName(id)+".json"))
}

func textPath(id string) string {
	return TextsDir + "/" + fileName(id) + ".txt"
}

func pdfPath(id string) string {
	return PDFsDir + "/" + fileName(id) + ".pdf"
}

// ReadManifest loads the manifest of a written bundle
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	if err := fsutil.ReadJSON(filepath.Join(dir, ManifestFile), &m); err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, domain.Errorf(domain.ErrNotFound, "no bundle in %s", dir)
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}
