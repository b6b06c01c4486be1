package main

import (
	"fmt"
	"strings"

	"github.com/pbaille/medcat/internal/domain"
	"github.com/spf13/cobra"
)

func groupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage tag groups",
	}
	cmd.AddCommand(groupsListCmd(a))
	cmd.AddCommand(groupsCreateCmd(a))
	cmd.AddCommand(groupsSuggestCmd(a))
	return cmd
}

func groupsListCmd(a *app) *cobra.Command {
	var (
		tag    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tag groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.groupManager()
			if err != nil {
				return err
			}
			var groups []domain.TagGroup
			if tag != "" {
				groups = g.GroupsForTag(tag)
			} else {
				groups = g.Groups()
			}

			if asJSON {
				if groups == nil {
					groups = []domain.TagGroup{}
				}
				return printJSON(a.out, groups)
			}
			if len(groups) == 0 {
				fmt.Fprintln(a.out, "No groups. Try 'medcat groups suggest'.")
				return nil
			}
			for _, grp := range groups {
				fmt.Fprintf(a.out, "%s %s %s\n", titleStyle.Render(grp.ID), dimStyle.Render("("+string(grp.MetaTag)+")"), grp.DisplayName)
				fmt.Fprintf(a.out, "  %s\n", tagStyle.Render(strings.Join(grp.Tags, ", ")))
				if grp.Description != "" {
					fmt.Fprintf(a.out, "  %s\n", dimStyle.Render(grp.Description))
				}
			}
			if tag != "" {
				if related := g.RelatedTags(tag); len(related) > 0 {
					fmt.Fprintf(a.out, "\nrelated to %s: %s\n", tag, tagStyle.Render(strings.Join(related, ", ")))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only groups containing this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print groups as JSON")
	return cmd
}

func groupsCreateCmd(a *app) *cobra.Command {
	var (
		metaName    string
		displayName string
		description string
		tags        []string
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "create [id]",
		Short: "Create a group of canonical tags under one meta-tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := parseMetaArg(metaName)
			if err != nil {
				return err
			}
			g, err := a.groupManager()
			if err != nil {
				return err
			}
			members := domain.TagSet(tags)
			if err := a.confirm(fmt.Sprintf("Create group %s (%s)?", args[0], meta), strings.Join(members, ", "), yes); err != nil {
				return err
			}
			grp, err := g.CreateGroup(args[0], meta, displayName, members, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s: %s\n", successStyle.Render("+"), grp, strings.Join(grp.Tags, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&metaName, "meta", "m", "", "meta-tag all members belong to (required)")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "canonical member tags, comma separated (required)")
	cmd.Flags().StringVar(&displayName, "name", "", "display name (defaults to the id)")
	cmd.Flags().StringVar(&description, "description", "", "free text description")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.MarkFlagRequired("meta")
	cmd.MarkFlagRequired("tags")
	return cmd
}

func groupsSuggestCmd(a *app) *cobra.Command {
	var (
		minCount int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest groups from tag co-occurrence across the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minCount < 0 {
				return domain.Errorf(domain.ErrValidation, "--min must not be negative")
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			g, err := a.groupManager()
			if err != nil {
				return err
			}
			suggestions := g.SuggestGroups(s, minCount)

			if asJSON {
				return printJSON(a.out, suggestions)
			}
			if len(suggestions) == 0 {
				fmt.Fprintf(a.out, "No tag pairs co-occur in %d or more papers.\n", max(minCount, 1))
				return nil
			}
			for i, sg := range suggestions {
				meta := "mixed"
				if sg.MetaTag != "" {
					meta = string(sg.MetaTag)
				}
				fmt.Fprintf(a.out, "%s %s %s\n",
					titleStyle.Render(fmt.Sprintf("#%d", i+1)),
					tagStyle.Render(strings.Join(sg.Tags, ", ")),
					dimStyle.Render(fmt.Sprintf("(%s, mass %d)", meta, sg.Mass)))
				for _, p := range sg.Pairs {
					fmt.Fprintf(a.out, "    %s + %s: %d\n", p.A, p.B, p.Count)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minCount, "min", 2, "minimum number of papers a pair must share")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print suggestions as JSON")
	return cmd
}
