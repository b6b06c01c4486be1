package textextract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFBytes caps PDFs fetched over HTTP; local files are read in place
const maxPDFBytes = 64 * 1024 * 1024

// readPDF extracts the text layer of a local PDF. When the PDF has no usable
// text layer, a sibling .txt produced by an external converter is used instead.
func (e *Extractor) readPDF(path string) (string, error) {
	text, err := e.pdfFile(path)
	if err == nil {
		return text, nil
	}
	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	if text, serr := e.readPlain(sidecar); serr == nil {
		e.logger.Debug("using pdf text sidecar", "path", sidecar, "err", err)
		return text, nil
	}
	return "", err
}

func (e *Extractor) pdfFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	text, err := pdfText(f, info.Size(), e.maxBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsupported, filepath.Base(path), err)
	}
	return text, nil
}

// pdfText returns the plain text of every page, reading at most limit bytes of text
func pdfText(r io.ReaderAt, size, limit int64) (text string, err error) {
	// the parser panics on some malformed files
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", err
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(plain, limit))
	if err != nil {
		return "", err
	}
	return nonEmpty(normalizeSpace(string(data)))
}

func isPDFResponse(contentType, path string) bool {
	return strings.HasPrefix(contentType, "application/pdf") ||
		strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (e *Extractor) pdfBody(body []byte) (string, error) {
	text, err := pdfText(bytes.NewReader(body), int64(len(body)), e.maxBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return text, nil
}
