package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/medcat/internal/catalog"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/ingest"
	"github.com/pbaille/medcat/internal/taxonomy"
	"github.com/spf13/cobra"
)

func initCmd(a *app) *cobra.Command {
	var empty bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and seed the tag vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(a.cfg.HierarchyPath), 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			h, err := a.hierarchy()
			if err != nil {
				return err
			}
			switch {
			case empty:
			case h.IsEmpty():
				if err := h.Seed(); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s seeded %d tags into %s\n", successStyle.Render("✓"), h.Count(""), h.Path())
			default:
				fmt.Fprintf(a.out, "%s %s already holds %d tags\n", dimStyle.Render("·"), h.Path(), h.Count(""))
			}

			s, err := a.store()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "catalog: %s (%d items)\n", s.Path(), s.Len())
			fmt.Fprintf(a.out, "groups:  %s\n", a.cfg.GroupsPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&empty, "empty", false, "do not seed the starter vocabulary")
	return cmd
}

func addCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "add [file...]",
		Short: "Add papers from YAML, JSON or Markdown front matter (- reads YAML from stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []ingest.Record
			for _, path := range args {
				var (
					recs []ingest.Record
					err  error
				)
				if path == "-" {
					recs, err = readStdinRecords(a)
				} else {
					recs, err = ingest.ParseFile(path)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				records = append(records, recs...)
			}

			s, err := a.store()
			if err != nil {
				return err
			}
			norm, err := a.normalizer()
			if err != nil {
				return err
			}
			res := ingest.New(s, norm, a.logger).Ingest(records)

			if asJSON {
				if err := printJSON(a.out, res); err != nil {
					return err
				}
			} else {
				for _, it := range res.Added {
					fmt.Fprintf(a.out, "%s %s  %s\n", successStyle.Render("+"), it.ID, truncate(it.Title, 60))
					fmt.Fprintf(a.out, "    %s\n", tagStyle.Render(fmt.Sprint(it.Tags)))
				}
				for _, f := range res.Failed {
					label := f.Title
					if label == "" {
						label = fmt.Sprintf("record %d", f.Index+1)
					}
					fmt.Fprintf(a.out, "%s %s: %s\n", warnStyle.Render("!"), truncate(label, 40), f.Reason)
				}
			}

			if len(res.Failed) > 0 {
				return &ExitError{
					Code: exitCode(res.Failed[0].Err),
					Err:  fmt.Errorf("%d of %d records rejected", len(res.Failed), len(records)),
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the ingest result as JSON")
	return cmd
}

func readStdinRecords(a *app) ([]ingest.Record, error) {
	data, err := io.ReadAll(a.in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.Errorf(domain.ErrValidation, "no input on stdin")
	}
	return ingest.ParseYAML(data)
}

func listCmd(a *app) *cobra.Command {
	var (
		f      catalog.Filter
		metas  map[string]string
		status string
		prio   string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List papers matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if f.Perspectives, err = perspectiveFilter(a, metas); err != nil {
				return err
			}
			if status != "" {
				if f.ReadStatus, err = domain.ParseReadStatus(status); err != nil {
					return err
				}
			}
			if prio != "" {
				if f.Priority, err = domain.ParsePriority(prio); err != nil {
					return err
				}
			}
			if f.Tag != "" {
				norm, err := a.normalizer()
				if err != nil {
					return err
				}
				if _, canonical, err := norm.ResolveAny(f.Tag); err == nil {
					f.Tag = canonical
				}
			}
			if err := f.Validate(); err != nil {
				return err
			}

			s, err := a.store()
			if err != nil {
				return err
			}
			var items []domain.Item
			for it := range s.List(f) {
				if limit > 0 && len(items) == limit {
					break
				}
				items = append(items, it)
			}

			if asJSON {
				if items == nil {
					items = []domain.Item{}
				}
				return printJSON(a.out, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No papers match. Use 'medcat add' to catalog one.")
				return nil
			}
			renderItemTable(a.out, items)
			fmt.Fprintln(a.out, dimStyle.Render(fmt.Sprintf("%d of %d papers", len(items), s.Len())))
			return nil
		},
	}

	cmd.Flags().StringToStringVarP(&metas, "meta", "m", nil, "perspective filter, e.g. -m disease=stroke (values may be aliases)")
	cmd.Flags().IntVar(&f.YearFrom, "year-from", 0, "earliest publication year")
	cmd.Flags().IntVar(&f.YearTo, "year-to", 0, "latest publication year")
	cmd.Flags().StringVarP(&f.Keyword, "query", "q", "", "keyword in title, abstract, summary, authors or keywords")
	cmd.Flags().StringVarP(&f.Tag, "tag", "t", "", "papers carrying this tag")
	cmd.Flags().StringVar(&status, "status", "", "read status: unread, reading, read")
	cmd.Flags().StringVar(&prio, "priority", "", "priority: low, medium, high")
	cmd.Flags().StringVar(&f.SortBy, "sort", "", "sort by id, title, year, date_added or date_modified")
	cmd.Flags().BoolVar(&f.Desc, "desc", false, "reverse the sort order")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of papers to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print papers as JSON")
	return cmd
}

// perspectiveFilter normalizes meta=value pairs so aliases filter like their canonical tag
func perspectiveFilter(a *app, metas map[string]string) (map[domain.MetaTag]string, error) {
	if len(metas) == 0 {
		return nil, nil
	}
	norm, err := a.normalizer()
	if err != nil {
		return nil, err
	}
	out := make(map[domain.MetaTag]string, len(metas))
	for name, value := range metas {
		meta, err := domain.ParseMetaTag(taxonomy.Key(name))
		if err != nil {
			return nil, err
		}
		if taxonomy.Key(value) == domain.NotApplicable {
			out[meta] = domain.NotApplicable
			continue
		}
		canonical, err := norm.Normalize(value, meta)
		if err != nil {
			return nil, err
		}
		out[meta] = canonical
	}
	return out, nil
}

func showCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show paper details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			it, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a.out, it)
			}
			renderItem(a.out, it)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the paper as JSON")
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	var prio string

	cmd := &cobra.Command{
		Use:   "status [id] [unread|reading|read]",
		Short: "Set the read status and/or priority of a paper",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && prio == "" {
				return domain.Errorf(domain.ErrValidation, "give a read status or --priority")
			}
			var (
				status   domain.ReadStatus
				priority domain.Priority
				err      error
			)
			if len(args) == 2 {
				if status, err = domain.ParseReadStatus(args[1]); err != nil {
					return err
				}
			}
			if prio != "" {
				if priority, err = domain.ParsePriority(prio); err != nil {
					return err
				}
			}

			s, err := a.store()
			if err != nil {
				return err
			}
			it, err := s.Update(args[0], func(it *domain.Item) error {
				if status != "" {
					it.ReadStatus = status
				}
				if priority != "" {
					it.Priority = priority
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s: %s / %s\n", successStyle.Render("✓"), it.ID, it.ReadStatus, it.Priority)
			return nil
		},
	}

	cmd.Flags().StringVarP(&prio, "priority", "p", "", "priority: low, medium, high")
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	var (
		top    int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			st := s.Stats()
			if asJSON {
				return printJSON(a.out, st)
			}

			fmt.Fprintln(a.out, titleStyle.Render(fmt.Sprintf("%d papers", st.TotalPapers)))
			if !st.LastUpdated.IsZero() {
				fmt.Fprintln(a.out, dimStyle.Render("last updated "+st.LastUpdated.Format("2006-01-02 15:04:05")))
			}
			fmt.Fprintf(a.out, "\nread:     unread %d · reading %d · read %d\n",
				st.ByReadStatus[domain.StatusUnread], st.ByReadStatus[domain.StatusReading], st.ByReadStatus[domain.StatusRead])
			fmt.Fprintf(a.out, "priority: high %d · medium %d · low %d\n",
				st.ByPriority[domain.PriorityHigh], st.ByPriority[domain.PriorityMedium], st.ByPriority[domain.PriorityLow])

			for _, meta := range domain.MetaTags {
				dist := st.Distributions[meta]
				if len(dist) == 0 {
					continue
				}
				fmt.Fprintf(a.out, "\n%s\n", headerStyle.Render(string(meta)))
				for _, tc := range catalog.SortedCounts(dist) {
					fmt.Fprintf(a.out, "  %s %3d %s\n", cell(tc.Tag, 24), tc.Count, tagStyle.Render(bar(tc.Count, st.TotalPapers)))
				}
			}

			if len(st.TopTags) > 0 {
				fmt.Fprintf(a.out, "\n%s\n", headerStyle.Render("top tags"))
				for i, tc := range st.TopTags {
					if i == top {
						break
					}
					fmt.Fprintf(a.out, "  %s %3d\n", cell(tc.Tag, 24), tc.Count)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&top, "top", 10, "number of top tags to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

// bar draws a proportional bar at most 20 cells wide
func bar(n, total int) string {
	if total == 0 {
		return ""
	}
	return strings.Repeat("█", max(1, n*20/total))
}

func retagCmd(a *app) *cobra.Command {
	var (
		add    []string
		remove []string
		set    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "retag [id]",
		Short: "Change a paper's perspectives and free tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(add)+len(remove)+len(set) == 0 {
				return domain.Errorf(domain.ErrValidation, "nothing to change: use --set, --add or --remove")
			}
			id := args[0]
			s, err := a.store()
			if err != nil {
				return err
			}
			norm, err := a.normalizer()
			if err != nil {
				return err
			}

			perspectives, err := perspectiveFilter(a, set)
			if err != nil {
				return err
			}
			var it domain.Item
			for _, meta := range domain.MetaTags {
				value, ok := perspectives[meta]
				if !ok {
					continue
				}
				if it, err = s.SetPerspective(id, meta, value); err != nil {
					return err
				}
			}
			if len(add) > 0 {
				tags, err := resolveAll(norm, add)
				if err != nil {
					return err
				}
				if it, err = s.AddTags(id, tags...); err != nil {
					return err
				}
			}
			if len(remove) > 0 {
				tags, err := resolveAll(norm, remove)
				if err != nil {
					return err
				}
				if it, err = s.RemoveTags(id, tags...); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "%s %s %s\n", successStyle.Render("✓"), it.ID, tagStyle.Render(fmt.Sprint(it.Tags)))
			return nil
		},
	}

	cmd.Flags().StringToStringVarP(&set, "set", "s", nil, "set a perspective, e.g. --set disease=CVA")
	cmd.Flags().StringSliceVar(&add, "add", nil, "tags to add (aliases are resolved)")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "tags to remove; perspective values are kept")
	return cmd
}

func resolveAll(norm *taxonomy.Normalizer, raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		_, canonical, err := norm.ResolveAny(r)
		if err != nil {
			return nil, err
		}
		out = append(out, canonical)
	}
	return out, nil
}
