package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pbaille/medcat/internal/catalog"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/export"
	"github.com/pbaille/medcat/internal/index"
	"github.com/pbaille/medcat/internal/taxonomy"
)

const papersYAML = `
- title: Ankle EMG in stroke
  authors: [Tanaka H]
  year: 2022
  study_type: cross-sectional study
  perspectives:
    disease: CVA
    method: sEMG
  tags: [gait]
- title: Gait in stroke survivors
  authors: Suzuki K, Ito M
  year: 2019
  perspectives:
    study_type: RCT
    disease: stroke
    method: gait
`

// workspace isolates config lookup and points the data dir at a temp directory
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("MEDCAT_CONFIG", "")
	t.Setenv("MEDCAT_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("MEDCAT_LOG_LEVEL", "error")
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("medcat %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T) string {
	t.Helper()
	dir := workspace(t)
	mustRun(t, "init")
	mustRun(t, "add", writeFile(t, filepath.Join(dir, "papers.yaml"), papersYAML))
	return dir
}

func TestInitSeedsOnce(t *testing.T) {
	dir := workspace(t)
	out := mustRun(t, "init")
	if !strings.Contains(out, "seeded") {
		t.Errorf("first init: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "tag_hierarchy.json")); err != nil {
		t.Errorf("hierarchy not written: %v", err)
	}
	out = mustRun(t, "init")
	if !strings.Contains(out, "already holds") {
		t.Errorf("second init: %s", out)
	}
}

func TestAddListShowStatus(t *testing.T) {
	setup(t)

	var items []domain.Item
	if err := json.Unmarshal([]byte(mustRun(t, "list", "-m", "method=EMG", "--json")), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "paper001" {
		t.Errorf("alias filter = %+v", items)
	}

	out := mustRun(t, "list", "--sort", "year")
	if strings.Index(out, "paper002") > strings.Index(out, "paper001") {
		t.Errorf("sort by year:\n%s", out)
	}

	mustRun(t, "status", "paper001", "read", "-p", "high")
	var it domain.Item
	if err := json.Unmarshal([]byte(mustRun(t, "show", "paper001", "--json")), &it); err != nil {
		t.Fatal(err)
	}
	if it.ReadStatus != domain.StatusRead || it.Priority != domain.PriorityHigh {
		t.Errorf("status not saved: %+v", it)
	}
	if !slices.Equal(it.Tags, []string{"cross_sectional", "emg", "gait_analysis", "stroke"}) {
		t.Errorf("tags = %v", it.Tags)
	}

	out = mustRun(t, "show", "paper002")
	if !strings.Contains(out, "Gait in stroke survivors") || !strings.Contains(out, "Suzuki K, Ito M") {
		t.Errorf("show:\n%s", out)
	}
}

func TestAddFromStdin(t *testing.T) {
	workspace(t)
	mustRun(t, "init")
	out, err := run(t, "title: Wearables in PD\nstudy_type: rct\nperspectives:\n  disease: PD\n", "add", "-")
	if err != nil {
		t.Fatalf("add -: %v", err)
	}
	if !strings.Contains(out, "paper001") || !strings.Contains(out, "parkinsons_disease") {
		t.Errorf("stdin add:\n%s", out)
	}
}

func TestTagsAndGroups(t *testing.T) {
	setup(t)

	mustRun(t, "tags", "add", "disease", "Multiple Sclerosis", "MS", "--yes")
	mustRun(t, "tags", "alias", "disease", "stroke", "brain attack")

	out := mustRun(t, "tags", "normalize", "brain attack", "ms")
	if !strings.Contains(out, "disease:stroke") || !strings.Contains(out, "disease:multiple_sclerosis") {
		t.Errorf("normalize:\n%s", out)
	}

	var tags []taxonomy.Tag
	if err := json.Unmarshal([]byte(mustRun(t, "tags", "list", "-m", "disease", "--json")), &tags); err != nil {
		t.Fatal(err)
	}
	if !slices.ContainsFunc(tags, func(tg taxonomy.Tag) bool { return tg.Name == "multiple_sclerosis" }) {
		t.Errorf("tags = %+v", tags)
	}

	mustRun(t, "groups", "create", "neuro", "-m", "disease", "-t", "stroke,multiple_sclerosis", "--yes")
	var groups []domain.TagGroup
	if err := json.Unmarshal([]byte(mustRun(t, "groups", "list", "--tag", "stroke", "--json")), &groups); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || !slices.Equal(groups[0].Tags, []string{"multiple_sclerosis", "stroke"}) {
		t.Errorf("groups = %+v", groups)
	}

	var sugg []taxonomy.Suggestion
	if err := json.Unmarshal([]byte(mustRun(t, "groups", "suggest", "--json")), &sugg); err != nil {
		t.Fatal(err)
	}
	if len(sugg) != 1 || !slices.Equal(sugg[0].Tags, []string{"gait_analysis", "stroke"}) || sugg[0].Mass != 2 {
		t.Errorf("suggestions = %+v", sugg)
	}
}

func TestStats(t *testing.T) {
	setup(t)
	var st catalog.Stats
	if err := json.Unmarshal([]byte(mustRun(t, "stats", "--json")), &st); err != nil {
		t.Fatal(err)
	}
	if st.TotalPapers != 2 || st.Distributions[domain.MetaStudyType]["rct"] != 1 {
		t.Errorf("stats = %+v", st)
	}
	if out := mustRun(t, "stats"); !strings.Contains(out, "2 papers") {
		t.Errorf("stats:\n%s", out)
	}
}

func TestExportAndSearch(t *testing.T) {
	dir := setup(t)
	sel := writeFile(t, filepath.Join(dir, "reading.md"), "# Reading list\n- [x] [[paper002|gait]]\n- [x] [[paper404]]\n- [ ] [[paper001]]\n")
	bundle := filepath.Join(dir, "bundle")

	out := mustRun(t, "export", sel, "-o", bundle, "--sqlite-index")
	if !strings.Contains(out, "exported 1 papers") || !strings.Contains(out, "paper404") {
		t.Errorf("export:\n%s", out)
	}
	m, err := export.ReadManifest(bundle)
	if err != nil {
		t.Fatal(err)
	}
	if m.IncludedCount != 1 || m.Items[0].ID != "paper002" || m.Skipped[0].Reason != export.ReasonNotFound {
		t.Errorf("manifest = %+v", m)
	}

	_, err = run(t, "", "export", sel, "-o", bundle)
	if !errors.Is(err, export.ErrBundleExists) || exitCode(err) != exitSelection {
		t.Errorf("second export: %v", err)
	}

	var hits []index.Hit
	if err := json.Unmarshal([]byte(mustRun(t, "search", "survivors", "--index", filepath.Join(bundle, export.SQLiteIndexFile), "--json")), &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "paper002" {
		t.Errorf("bundle search = %+v", hits)
	}

	if err := json.Unmarshal([]byte(mustRun(t, "search", "-m", "method=emg", "--json")), &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "paper001" {
		t.Errorf("catalog search = %+v", hits)
	}

	var counts []index.TagCount
	if err := json.Unmarshal([]byte(mustRun(t, "search", "--tag-counts", "--index", filepath.Join(bundle, export.SQLiteIndexFile), "--json")), &counts); err != nil {
		t.Fatal(err)
	}
	if len(counts) != 3 || counts[0] != (index.TagCount{Tag: "gait_analysis", Count: 1}) {
		t.Errorf("tag counts = %+v", counts)
	}
	if _, err := run(t, "", "search", "stroke", "--tag-counts"); exitCode(err) != exitValidation {
		t.Errorf("tag counts with query: %v", err)
	}

	mustRun(t, "export", sel, "-o", bundle, "--overwrite", "--search-index=false")
	for _, name := range []string{export.SearchIndexFile, export.SQLiteIndexFile} {
		if _, err := os.Stat(filepath.Join(bundle, name)); !os.IsNotExist(err) {
			t.Errorf("%s left behind by --overwrite", name)
		}
	}
}

func TestExitCodes(t *testing.T) {
	dir := setup(t)
	unknown := writeFile(t, filepath.Join(dir, "unknown.yaml"), "title: Flu vaccines\nstudy_type: rct\nperspectives:\n  disease: influenza\n")
	noneChecked := writeFile(t, filepath.Join(dir, "none.md"), "- [ ] [[paper001]]\n")
	garbage := writeFile(t, filepath.Join(dir, "garbage.md"), "just some notes\n")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"bad status", []string{"status", "paper001", "skimmed"}, exitValidation},
		{"unknown meta", []string{"list", "-m", "color=red"}, exitValidation},
		{"unknown tag on ingest", []string{"add", unknown}, exitTaxonomy},
		{"alias conflict", []string{"tags", "alias", "disease", "parkinsons_disease", "CVA"}, exitTaxonomy},
		{"duplicate tag", []string{"tags", "add", "disease", "stroke", "--yes"}, exitTaxonomy},
		{"group with alias", []string{"groups", "create", "g", "-m", "disease", "-t", "CVA", "--yes"}, exitTaxonomy},
		{"missing paper", []string{"show", "paper999"}, exitNotFound},
		{"nothing checked", []string{"export", noneChecked, "-o", filepath.Join(dir, "x")}, exitSelection},
		{"malformed selection", []string{"export", garbage, "-o", filepath.Join(dir, "y")}, exitSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if got := exitCode(err); got != tt.want {
				t.Errorf("exit code = %d, want %d (err: %v)", got, tt.want, err)
			}
		})
	}
}

func TestExitCode_ExitError(t *testing.T) {
	err := &ExitError{Code: 7, Err: errors.New("boom")}
	if exitCode(err) != 7 || err.Error() != "boom" {
		t.Errorf("ExitError = %d %q", exitCode(err), err)
	}
	if exitCode(domain.Errorf(domain.ErrConflict, "catalog moved")) != exitConflict {
		t.Error("conflict should map to its own exit code")
	}
	if exitCode(nil) != exitOK {
		t.Error("nil error should exit 0")
	}
}

func TestRetag(t *testing.T) {
	setup(t)

	mustRun(t, "retag", "paper002", "--set", "population=elderly", "--add", "EMG", "--remove", "stroke,gait")
	var it domain.Item
	if err := json.Unmarshal([]byte(mustRun(t, "show", "paper002", "--json")), &it); err != nil {
		t.Fatal(err)
	}
	if it.Perspectives[domain.MetaPopulation] != "elderly" {
		t.Errorf("perspectives = %v", it.Perspectives)
	}
	// perspective values survive --remove
	if !slices.Equal(it.Tags, []string{"elderly", "emg", "gait_analysis", "rct", "stroke"}) {
		t.Errorf("tags = %v", it.Tags)
	}

	if _, err := run(t, "", "retag", "paper002"); exitCode(err) != exitValidation {
		t.Errorf("empty retag: %v", err)
	}
	if _, err := run(t, "", "retag", "paper999", "--add", "emg"); exitCode(err) != exitNotFound {
		t.Errorf("missing paper: %v", err)
	}
	if _, err := run(t, "", "retag", "paper002", "--add", "influenza"); exitCode(err) != exitTaxonomy {
		t.Errorf("unknown tag: %v", err)
	}
}
