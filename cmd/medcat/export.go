package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/medcat/internal/catalog"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/export"
	"github.com/pbaille/medcat/internal/index"
	"github.com/pbaille/medcat/internal/selection"
	"github.com/pbaille/medcat/internal/textextract"
	"github.com/spf13/cobra"
)

func exportCmd(a *app) *cobra.Command {
	var (
		outDir      string
		fullText    bool
		searchIndex bool
		sqliteIndex bool
		textLimit   int
		copyPDFs    bool
		overwrite   bool
	)

	cmd := &cobra.Command{
		Use:   "export [selection.md]",
		Short: "Export the checked papers of a selection list as a bundle",
		Long: `Export the papers checked in a Markdown selection list.

Each line of the list looks like

  - [x] [[paper001]] optional label

Checked entries are exported in list order; unchecked ones are ignored.
Entries missing from the catalog are recorded in manifest.json and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("full-text") {
				fullText = a.cfg.Export.FullText
			}
			if !flags.Changed("search-index") {
				searchIndex = a.cfg.Export.SearchIndex
			}
			if !flags.Changed("sqlite-index") {
				sqliteIndex = a.cfg.Export.SQLiteIndex
			}
			if !flags.Changed("text-limit") {
				textLimit = a.cfg.Export.TextLimit
			}
			if !flags.Changed("copy-pdfs") {
				copyPDFs = a.cfg.Export.CopyPDFs
			}
			if outDir == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				outDir = filepath.Join(a.cfg.DataDir, "exports", base)
			}

			entries, err := selection.ParseFile(args[0])
			if err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}

			var text export.TextExtractor
			if fullText {
				text = textextract.New(
					textextract.WithBaseDir(a.cfg.DataDir),
					textextract.WithLogger(a.logger),
				)
			}
			bundle, err := export.NewBuilder(s, text, export.Options{
				FullText:    fullText,
				SearchIndex: searchIndex,
				TextLimit:   textLimit,
				CopyPDFs:    copyPDFs,
				BaseDir:     a.cfg.DataDir,
				Logger:      a.logger,
			}).Build(cmd.Context(), entries)
			if err != nil {
				return err
			}

			written, err := export.WriteBundle(outDir, bundle, export.WriteOptions{
				Overwrite:   overwrite,
				SQLiteIndex: sqliteIndex,
			})
			if err != nil {
				return err
			}

			m := bundle.Manifest
			fmt.Fprintf(a.out, "%s exported %d papers to %s (%d files)\n", successStyle.Render("✓"), m.IncludedCount, outDir, len(written))
			for _, sk := range m.Skipped {
				fmt.Fprintf(a.out, "  %s %s: %s\n", warnStyle.Render("skipped"), sk.ID, sk.Reason)
			}
			for _, sk := range m.TextSkipped {
				fmt.Fprintf(a.out, "  %s %s: %s\n", dimStyle.Render("no text"), sk.ID, sk.Detail)
			}
			for _, sk := range m.PDFSkipped {
				fmt.Fprintf(a.out, "  %s %s: %s\n", dimStyle.Render("no pdf"), sk.ID, sk.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "bundle directory (default: <data_dir>/exports/<selection name>)")
	cmd.Flags().BoolVar(&fullText, "full-text", false, "extract full text of each paper's artifact")
	cmd.Flags().BoolVar(&searchIndex, "search-index", true, "write search_index.json")
	cmd.Flags().BoolVar(&sqliteIndex, "sqlite-index", false, "write search_index.db")
	cmd.Flags().IntVar(&textLimit, "text-limit", export.DefaultTextLimit, "characters of full text per search entry (0 for all)")
	cmd.Flags().BoolVar(&copyPDFs, "copy-pdfs", false, "copy local PDF artifacts into pdfs/")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing bundle and its old artifacts")
	return cmd
}

func searchCmd(a *app) *cobra.Command {
	var (
		indexPath string
		tag       string
		perspect  map[string]string
		limit     int
		tagCounts bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search a SQLite index (built from the catalog when --index is not given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := index.Query{Tag: tag, Limit: limit}
			if len(args) == 1 {
				q.Text = args[0]
			}
			if len(perspect) > 1 {
				return domain.Errorf(domain.ErrValidation, "search takes one --meta filter")
			}
			for name, value := range perspect {
				meta, err := parseMetaArg(name)
				if err != nil {
					return err
				}
				q.Meta, q.Value = meta, value
			}

			if tagCounts && (q.Text != "" || q.Tag != "" || q.Meta != "") {
				return domain.Errorf(domain.ErrValidation, "--tag-counts takes no query or filters")
			}

			ix, cleanup, err := a.openIndex(indexPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if tagCounts {
				return a.printTagCounts(ix, asJSON)
			}
			hits, err := ix.Search(q)
			if err != nil {
				return err
			}
			if asJSON {
				if hits == nil {
					hits = []index.Hit{}
				}
				return printJSON(a.out, hits)
			}
			if len(hits) == 0 {
				fmt.Fprintln(a.out, "No matches.")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(a.out, "%s  %s  %s  %s\n", cell(h.ID, 10), cell(yearString(h.Year), 4), cell(h.Title, 50), tagStyle.Render(strings.Join(h.Tags, ", ")))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "", "search_index.db of an export bundle")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "papers carrying this tag")
	cmd.Flags().StringToStringVarP(&perspect, "meta", "m", nil, "perspective filter, e.g. -m method=emg")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	cmd.Flags().BoolVar(&tagCounts, "tag-counts", false, "list the indexed tags by frequency instead of searching")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func (a *app) printTagCounts(ix *index.Index, asJSON bool) error {
	counts, err := ix.TagCounts()
	if err != nil {
		return err
	}
	if asJSON {
		if counts == nil {
			counts = []index.TagCount{}
		}
		return printJSON(a.out, counts)
	}
	for _, tc := range counts {
		fmt.Fprintf(a.out, "%s %d\n", cell(tc.Tag, 24), tc.Count)
	}
	return nil
}

// openIndex opens path, or indexes the catalog metadata into a temporary file
func (a *app) openIndex(path string) (*index.Index, func(), error) {
	if path != "" {
		ix, err := index.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return ix, func() { ix.Close() }, nil
	}

	s, err := a.store()
	if err != nil {
		return nil, nil, err
	}
	dir, err := os.MkdirTemp("", "medcat-search-")
	if err != nil {
		return nil, nil, err
	}
	ix, err := index.Create(filepath.Join(dir, "search_index.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	cleanup := func() {
		ix.Close()
		os.RemoveAll(dir)
	}

	var docs []index.Document
	for it := range s.List(catalog.Filter{}) {
		docs = append(docs, index.Document{
			ID:           it.ID,
			Title:        it.Title,
			Authors:      it.Authors,
			Year:         it.Year,
			Abstract:     it.Abstract,
			Summary:      it.Summary,
			Tags:         it.Tags,
			Perspectives: it.Perspectives,
		})
	}
	if err := ix.AddAll(docs); err != nil {
		cleanup()
		return nil, nil, err
	}
	return ix, cleanup, nil
}
