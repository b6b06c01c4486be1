package main

import (
	"fmt"
	"strings"

	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/taxonomy"
	"github.com/spf13/cobra"
)

func tagsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Inspect and edit the tag vocabulary",
	}
	cmd.AddCommand(tagsListCmd(a))
	cmd.AddCommand(tagsAddCmd(a))
	cmd.AddCommand(tagsAliasCmd(a))
	cmd.AddCommand(tagsNormalizeCmd(a))
	return cmd
}

func parseMetaArg(s string) (domain.MetaTag, error) {
	return domain.ParseMetaTag(taxonomy.Key(s))
}

func tagsListCmd(a *app) *cobra.Command {
	var (
		metaName string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List canonical tags and their aliases per meta-tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var meta domain.MetaTag
			if metaName != "" {
				var err error
				if meta, err = parseMetaArg(metaName); err != nil {
					return err
				}
			}
			h, err := a.hierarchy()
			if err != nil {
				return err
			}

			if asJSON {
				tags := []taxonomy.Tag{}
				for t := range h.Tags(meta) {
					tags = append(tags, t)
				}
				return printJSON(a.out, tags)
			}
			if h.IsEmpty() {
				fmt.Fprintln(a.out, "No tags yet. Run 'medcat init' to seed the starter vocabulary.")
				return nil
			}

			// Print tree
			var current domain.MetaTag
			for t := range h.Tags(meta) {
				if t.MetaTag != current {
					current = t.MetaTag
					fmt.Fprintf(a.out, "%s %s\n", titleStyle.Render(string(current)), dimStyle.Render(fmt.Sprintf("(%d)", h.Count(current))))
				}
				line := "  " + tagStyle.Render(t.Name)
				if len(t.Aliases) > 0 {
					line += " " + dimStyle.Render("← "+strings.Join(t.Aliases, ", "))
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&metaName, "meta", "m", "", "only this meta-tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tags as JSON")
	return cmd
}

func tagsAddCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "add [meta-tag] [name] [alias...]",
		Short: "Register a canonical tag",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseMetaArg(args[0])
			if err != nil {
				return err
			}
			name, aliases := taxonomy.Key(args[1]), args[2:]
			if name == "" {
				return domain.Errorf(domain.ErrValidation, "empty tag name %q", args[1])
			}
			h, err := a.hierarchy()
			if err != nil {
				return err
			}
			if h.IsCanonical(meta, name) {
				return domain.Errorf(domain.ErrDuplicateTag, "%q already exists under %s", name, meta)
			}

			desc := "no aliases"
			if len(aliases) > 0 {
				desc = "aliases: " + strings.Join(aliases, ", ")
			}
			if err := a.confirm(fmt.Sprintf("Add %s:%s?", meta, name), desc, yes); err != nil {
				return err
			}
			if err := h.AddTag(meta, args[1], aliases...); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s:%s\n", successStyle.Render("+"), meta, name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func tagsAliasCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "alias [meta-tag] [canonical] [alias]",
		Short: "Bind an alias to a canonical tag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseMetaArg(args[0])
			if err != nil {
				return err
			}
			h, err := a.hierarchy()
			if err != nil {
				return err
			}
			if err := h.AddAlias(meta, args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %q → %s:%s\n", successStyle.Render("✓"), args[2], meta, taxonomy.Key(args[1]))
			return nil
		},
	}
}

func tagsNormalizeCmd(a *app) *cobra.Command {
	var (
		metaName string
		register bool
	)

	cmd := &cobra.Command{
		Use:   "normalize [value...]",
		Short: "Resolve raw tag strings to canonical tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			norm, err := a.normalizer()
			if err != nil {
				return err
			}
			var meta domain.MetaTag
			if metaName != "" {
				if meta, err = parseMetaArg(metaName); err != nil {
					return err
				}
			} else if register {
				return domain.Errorf(domain.ErrValidation, "--register needs --meta")
			}

			var firstErr error
			for _, raw := range args {
				var (
					canonical string
					added     bool
				)
				found := meta
				switch {
				case register:
					canonical, added, err = norm.NormalizeOrRegister(raw, meta)
				case meta != "":
					canonical, err = norm.Normalize(raw, meta)
				default:
					found, canonical, err = norm.ResolveAny(raw)
				}
				if err != nil {
					fmt.Fprintf(a.out, "%s %q: %v\n", warnStyle.Render("!"), raw, err)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				note := ""
				if added {
					note = " " + dimStyle.Render("(registered)")
				}
				fmt.Fprintf(a.out, "%q → %s:%s%s\n", raw, found, tagStyle.Render(canonical), note)
			}
			return firstErr
		},
	}

	cmd.Flags().StringVarP(&metaName, "meta", "m", "", "resolve under this meta-tag only")
	cmd.Flags().BoolVar(&register, "register", false, "register unknown values as new canonical tags")
	return cmd
}
