package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/pbaille/medcat/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#737373"))
	tagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

// truncate shortens s to maxLen terminal cells, counting wide CJK runes as two
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) > maxLen {
		return runewidth.Truncate(s, maxLen, "…")
	}
	return s
}

// cell pads s to width cells after truncating it
func cell(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func yearString(y int) string {
	if y == 0 {
		return "-"
	}
	return strconv.Itoa(y)
}

func renderItemTable(w io.Writer, items []domain.Item) {
	fmt.Fprintln(w, headerStyle.Render(cell("ID", 10)+"  "+cell("YEAR", 4)+"  "+cell("TITLE", 50)+"  "+cell("STUDY TYPE", 18)+"  STATUS"))
	for _, it := range items {
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			cell(it.ID, 10),
			cell(yearString(it.Year), 4),
			cell(it.Title, 50),
			tagStyle.Render(cell(it.StudyType(), 18)),
			dimStyle.Render(string(it.ReadStatus)),
		)
	}
}

func renderItem(w io.Writer, it domain.Item) {
	fmt.Fprintln(w, titleStyle.Render(it.Title))
	field := func(name, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render(runewidth.FillRight(name+":", 14)), value)
	}
	field("ID", it.ID)
	field("Authors", strings.Join(it.Authors, ", "))
	if it.Year != 0 {
		field("Year", strconv.Itoa(it.Year))
	}
	field("Journal", it.Journal)
	field("DOI", it.DOI)
	field("PMID", it.PMID)
	field("Design", it.StudyDesign)
	if it.SampleSize != nil {
		field("Sample size", strconv.Itoa(*it.SampleSize))
	}
	field("Population", it.StudyPopulation)
	field("Status", string(it.ReadStatus)+" / "+string(it.Priority))
	field("Artifact", it.ArtifactPath)
	field("Added", it.DateAdded.Format("2006-01-02 15:04:05"))
	field("Modified", it.DateModified.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Perspectives"))
	for _, meta := range domain.MetaTags {
		value, ok := it.Perspectives[meta]
		if !ok {
			continue
		}
		style := tagStyle
		if value == domain.NotApplicable {
			style = dimStyle
		}
		fmt.Fprintf(w, "  %s %s\n", runewidth.FillRight(string(meta), 12), style.Render(value))
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", headerStyle.Render("Tags"), tagStyle.Render(strings.Join(it.Tags, ", ")))
	}
	if len(it.Keywords) > 0 {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Keywords:"), strings.Join(it.Keywords, ", "))
	}
	if it.Abstract != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", headerStyle.Render("Abstract"), it.Abstract)
	}
	if it.Summary != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", headerStyle.Render("Summary"), it.Summary)
	}
}
