package export

import (
	"fmt"
	"strconv"
	"strings"
)

// Readme renders the bundle's README.md
func Readme(b *Bundle, sqlite bool) string {
	var sb strings.Builder
	sb.WriteString("# Exported Papers\n\n")
	fmt.Fprintf(&sb, "**Export Date**: %s\n", b.Manifest.ExportedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "**Total Papers**: %d\n", b.Manifest.IncludedCount)
	if n := len(b.Manifest.Skipped); n > 0 {
		fmt.Fprintf(&sb, "**Skipped**: %d (see manifest.json)\n", n)
	}

	sb.WriteString("\n## Papers List\n\n")
	sb.WriteString("| ID | Title | Authors | Year |\n")
	sb.WriteString("|----|-------|---------|------|\n")
	for _, item := range b.Items {
		year := ""
		if item.Year != 0 {
			year = strconv.Itoa(item.Year)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", item.ID, cell(item.Title), cell(shortAuthors(item.Authors)), year)
	}

	sb.WriteString("\n## Directory Structure\n\n```\n.\n")
	sb.WriteString("├── README.md            # This file\n")
	sb.WriteString("├── manifest.json        # Export manifest\n")
	if b.SearchIndex != nil {
		sb.WriteString("├── search_index.json    # Search index\n")
	}
	if sqlite {
		sb.WriteString("├── search_index.db      # SQLite search index\n")
	}
	if b.Texts != nil {
		sb.WriteString("├── texts/               # Full text extracts\n")
	}
	if b.PDFs != nil {
		sb.WriteString("├── pdfs/                # Paper PDFs\n")
	}
	sb.WriteString("└── metadata/            # Metadata JSON per paper\n```\n")

	if b.SearchIndex != nil || sqlite {
		sb.WriteString("\n## Usage\n\n")
		if b.SearchIndex != nil {
			sb.WriteString("`search_index.json` lists each paper with its tags, abstract and the first part of its full text.\n")
		}
		if sqlite {
			sb.WriteString("`search_index.db` can be queried with `medcat search --index search_index.db <text>`.\n")
		}
	}
	return sb.String()
}

func shortAuthors(authors []string) string {
	if len(authors) <= 2 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:2], ", ") + " et al."
}

// cell escapes table delimiters
func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
