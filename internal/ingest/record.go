package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbaille/medcat/internal/domain"
	"gopkg.in/yaml.v3"
)

// Record is one paper's metadata as written by hand or generated elsewhere.
// Tag values are raw and get normalized before they reach the catalog.
type Record struct {
	ID      string     `yaml:"id" json:"id"`
	Title   string     `yaml:"title" json:"title"`
	Authors StringList `yaml:"authors" json:"authors"`
	Year    int        `yaml:"year" json:"year"`

	Journal string `yaml:"journal" json:"journal"`
	Volume  string `yaml:"volume" json:"volume"`
	Issue   string `yaml:"issue" json:"issue"`
	Pages   string `yaml:"pages" json:"pages"`
	DOI     string `yaml:"doi" json:"doi"`
	PMID    string `yaml:"pmid" json:"pmid"`

	StudyType       string     `yaml:"study_type" json:"study_type"`
	StudyDesign     string     `yaml:"study_design" json:"study_design"`
	SampleSize      *int       `yaml:"sample_size" json:"sample_size"`
	StudyPopulation string     `yaml:"study_population" json:"study_population"`
	Keywords        StringList `yaml:"keywords" json:"keywords"`
	Language        string     `yaml:"language" json:"language"`

	Perspectives map[string]string `yaml:"perspectives" json:"perspectives"`
	Tags         StringList        `yaml:"tags" json:"tags"`

	Abstract string `yaml:"abstract" json:"abstract"`
	Summary  string `yaml:"summary" json:"summary"`

	ReadStatus   string `yaml:"read_status" json:"read_status"`
	Priority     string `yaml:"priority" json:"priority"`
	ArtifactPath string `yaml:"artifact_path" json:"artifact_path"`
}

// StringList accepts either a sequence or a single comma-separated string
type StringList []string

func splitList(s string) StringList {
	var out StringList
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*l = splitList(n.Value)
		return nil
	}
	var items []string
	if err := n.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

func (l *StringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = splitList(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// ParseYAML reads one record, a list of records, or a stream of documents
func ParseYAML(data []byte) ([]Record, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var records []Record
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.Errorf(domain.ErrValidation, "parse yaml: %v", err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			var list []Record
			if err := root.Decode(&list); err != nil {
				return nil, domain.Errorf(domain.ErrValidation, "decode records: %v", err)
			}
			records = append(records, list...)
		case yaml.MappingNode:
			var r Record
			if err := root.Decode(&r); err != nil {
				return nil, domain.Errorf(domain.ErrValidation, "decode record: %v", err)
			}
			records = append(records, r)
		default:
			return nil, domain.Errorf(domain.ErrValidation, "expected a mapping or a list at line %d", root.Line)
		}
	}
	if len(records) == 0 {
		return nil, domain.Errorf(domain.ErrValidation, "no records found")
	}
	return records, nil
}

// ParseJSON reads one record or a list of records
func ParseJSON(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Record
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, domain.Errorf(domain.ErrValidation, "parse json: %v", err)
		}
		if len(list) == 0 {
			return nil, domain.Errorf(domain.ErrValidation, "no records found")
		}
		return list, nil
	}
	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "parse json: %v", err)
	}
	return []Record{r}, nil
}

// ParseFrontMatter reads the YAML block at the head of a Markdown document
func ParseFrontMatter(data []byte) ([]Record, error) {
	text := strings.TrimLeft(string(data), "\ufeff \t\r\n")
	rest, ok := strings.CutPrefix(text, "---")
	if !ok {
		return nil, domain.Errorf(domain.ErrValidation, "markdown has no front matter")
	}
	block, _, found := strings.Cut(rest, "\n---")
	if !found {
		return nil, domain.Errorf(domain.ErrValidation, "front matter is not closed")
	}
	return ParseYAML([]byte(block))
}

// ParseFile picks a parser from the file extension
func ParseFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".md", ".markdown":
		return ParseFrontMatter(data)
	default:
		return ParseYAML(data)
	}
}
