package textextract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pbaille/medcat/internal/domain"
	"github.com/pbaille/medcat/internal/logging"
)

var (
	// ErrNoSource is returned when an item has no artifact to read
	ErrNoSource = errors.New("no artifact")
	// ErrUnsupported is returned for artifacts whose text cannot be read
	ErrUnsupported = errors.New("unsupported artifact")
	// ErrEmpty is returned when an artifact holds no readable text
	ErrEmpty = errors.New("no text content found")
)

const defaultMaxBytes = 5 * 1024 * 1024

// Extractor reads the full text of an item's artifact
type Extractor struct {
	client   *http.Client
	baseDir  string
	maxBytes int64
	logger   *log.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithHTTPClient replaces the default client (30s timeout)
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) { e.client = c }
}

// WithBaseDir resolves relative artifact paths against dir
func WithBaseDir(dir string) Option {
	return func(e *Extractor) { e.baseDir = dir }
}

// WithMaxBytes caps how much of an artifact is read
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) { e.maxBytes = n }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e
}

// Extract returns the text behind the item's artifact_path
func (e *Extractor) Extract(ctx context.Context, item domain.Item) (string, error) {
	if strings.TrimSpace(item.ArtifactPath) == "" {
		return "", fmt.Errorf("%s: %w", item.ID, ErrNoSource)
	}
	text, err := e.ExtractSource(ctx, item.ArtifactPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", item.ID, err)
	}
	return text, nil
}

// ExtractSource reads text from a URL or a local file. PDFs are read through
// their text layer, falling back to a sibling .txt file.
func (e *Extractor) ExtractSource(ctx context.Context, src string) (string, error) {
	src = strings.TrimSpace(src)
	if IsURL(src) {
		return e.fetch(ctx, src)
	}
	path := src
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return e.readPlain(path)
	case ".html", ".htm", ".xhtml":
		data, err := e.readFile(path)
		if err != nil {
			return "", err
		}
		return nonEmpty(extractText(string(data)))
	case ".pdf":
		return e.readPDF(path)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
}

func (e *Extractor) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, e.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (e *Extractor) readPlain(path string) (string, error) {
	data, err := e.readFile(path)
	if err != nil {
		return "", err
	}
	return nonEmpty(normalizeSpace(string(data)))
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %s", ErrUnsupported, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "medcat/1.0 (paper-catalog)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	ct := resp.Header.Get("Content-Type")
	limit := e.maxBytes
	pdfDoc := isPDFResponse(ct, u.Path)
	if pdfDoc {
		limit = maxPDFBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	e.logger.Debug("fetched artifact", "url", u.String(), "bytes", len(body))

	if pdfDoc {
		return e.pdfBody(body)
	}
	if strings.HasPrefix(ct, "text/plain") {
		return nonEmpty(normalizeSpace(string(body)))
	}
	return nonEmpty(extractText(string(body)))
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

func nonEmpty(text string) (string, error) {
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// Clip returns at most limit runes of text; limit <= 0 means no limit
func Clip(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}
