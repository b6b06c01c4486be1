package index

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/medcat/internal/domain"
)

//go:embed schema.sql
var schema string

// Document is one paper as stored in the search index
type Document struct {
	ID           string
	Title        string
	Authors      []string
	Year         int
	Abstract     string
	Summary      string
	Content      string
	Tags         []string
	Perspectives map[domain.MetaTag]string
}

// Hit is a search result
type Hit struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Year  int      `json:"year,omitempty"`
	Tags  []string `json:"tags"`
}

// Query narrows a search. Empty fields match everything.
type Query struct {
	Text  string
	Tag   string
	Meta  domain.MetaTag
	Value string // perspective value under Meta
	Limit int
}

// Index is a SQLite search index built at export time
type Index struct {
	db *sql.DB
}

// Create writes a fresh index at path, replacing any previous file
func Create(path string) (*Index, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove old index: %w", err)
	}
	return open(path)
}

// Open opens an existing index
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return open(path)
}

func open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection
func (ix *Index) Close() error {
	return ix.db.Close()
}

// AddAll inserts docs in one transaction, keeping their order as the result order
func (ix *Index) AddAll(docs []Document) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var base int
	if err := tx.QueryRow("SELECT COALESCE(MAX(position), -1) + 1 FROM papers").Scan(&base); err != nil {
		return fmt.Errorf("next position: %w", err)
	}

	for i, d := range docs {
		var year any
		if d.Year != 0 {
			year = d.Year
		}
		_, err := tx.Exec(
			"INSERT INTO papers (id, position, title, authors, year, abstract, summary, content) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			d.ID, base+i, d.Title, strings.Join(d.Authors, "; "), year, d.Abstract, d.Summary, d.Content,
		)
		if err != nil {
			return fmt.Errorf("insert paper %s: %w", d.ID, err)
		}
		for _, tag := range d.Tags {
			if _, err := tx.Exec("INSERT OR IGNORE INTO paper_tags (paper_id, tag) VALUES (?, ?)", d.ID, tag); err != nil {
				return fmt.Errorf("link tag: %w", err)
			}
		}
		for meta, tag := range d.Perspectives {
			if _, err := tx.Exec("INSERT INTO perspectives (paper_id, meta_tag, tag) VALUES (?, ?, ?)", d.ID, string(meta), tag); err != nil {
				return fmt.Errorf("insert perspective: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Search performs a simple substring search over title, authors, abstract,
// summary and content, in insertion order
func (ix *Index) Search(q Query) ([]Hit, error) {
	var where []string
	var args []any
	if q.Text != "" {
		like := "%" + q.Text + "%"
		where = append(where, "(p.title LIKE ? OR p.authors LIKE ? OR p.abstract LIKE ? OR p.summary LIKE ? OR p.content LIKE ?)")
		args = append(args, like, like, like, like, like)
	}
	if q.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM paper_tags t WHERE t.paper_id = p.id AND t.tag = ?)")
		args = append(args, q.Tag)
	}
	if q.Meta != "" {
		where = append(where, "EXISTS (SELECT 1 FROM perspectives s WHERE s.paper_id = p.id AND s.meta_tag = ? AND s.tag = ?)")
		args = append(args, string(q.Meta), q.Value)
	}

	stmt := "SELECT p.id, p.title, COALESCE(p.year, 0) FROM papers p"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY p.position"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := ix.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Title, &h.Year); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}

	for i := range hits {
		tags, err := ix.tags(hits[i].ID)
		if err != nil {
			return nil, err
		}
		hits[i].Tags = tags
	}
	return hits, nil
}

func (ix *Index) tags(paperID string) ([]string, error) {
	rows, err := ix.db.Query("SELECT tag FROM paper_tags WHERE paper_id = ? ORDER BY tag", paperID)
	if err != nil {
		return nil, fmt.Errorf("get paper tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// TagCount is a tag with the number of indexed papers carrying it
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagCounts returns tag frequencies, most common first
func (ix *Index) TagCounts() ([]TagCount, error) {
	rows, err := ix.db.Query("SELECT tag, COUNT(*) FROM paper_tags GROUP BY tag ORDER BY COUNT(*) DESC, tag")
	if err != nil {
		return nil, fmt.Errorf("count tags: %w", err)
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}
