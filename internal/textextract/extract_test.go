package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pbaille/medcat/internal/domain"
)

const page = `<!doctype html>
<html><head><title>t</title><style>p{color:red}</style><script>var x = 1;</script></head>
<body>
<nav>Home | About</nav>
<article>
  <h1>Gait asymmetry</h1>
  <p>Step   length was
     measured.</p>
  <p>Results <b>improved</b>.</p>
</article>
<footer>Copyright</footer>
</body></html>`

// onePagePDF builds a minimal single-page PDF showing text in Helvetica
func onePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	got := extractText(page)
	want := "t\nGait asymmetry\nStep length was measured.\nResults improved ."
	if got != want {
		t.Errorf("extractText =\n%q\nwant\n%q", got, want)
	}
	for _, banned := range []string{"Home", "Copyright", "var x", "color:red"} {
		if strings.Contains(got, banned) {
			t.Errorf("extracted text contains %q", banned)
		}
	}
}

func TestExtractSource_Files(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("notes.txt", "first  line\n\n\nsecond line\n")
	write("page.html", page)
	write("paper001.pdf", "%PDF-1.7 binary")
	write("paper001.txt", "converted pdf text")
	write("paper002.pdf", "%PDF-1.7 binary")
	write("blank.md", "   \n\n")

	e := New(WithBaseDir(dir))
	ctx := context.Background()

	tests := []struct {
		src     string
		want    string
		wantErr error
	}{
		{"notes.txt", "first line\nsecond line", nil},
		{filepath.Join(dir, "notes.txt"), "first line\nsecond line", nil},
		{"paper001.pdf", "converted pdf text", nil},
		{"paper002.pdf", "", ErrUnsupported},
		{"figure.png", "", ErrUnsupported},
		{"blank.md", "", ErrEmpty},
		{"missing.txt", "", os.ErrNotExist},
	}
	for _, tt := range tests {
		got, err := e.ExtractSource(ctx, tt.src)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: err = %v, want %v", tt.src, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %q, %v; want %q", tt.src, got, err, tt.want)
		}
	}

	if got, err := e.ExtractSource(ctx, "page.html"); err != nil || !strings.Contains(got, "Step length was measured.") {
		t.Errorf("html file: %q, %v", got, err)
	}
}

func TestExtractSource_PDF(t *testing.T) {
	dir := t.TempDir()
	doc := onePagePDF("Tibialis anterior activation")
	if err := os.WriteFile(filepath.Join(dir, "paper003.pdf"), doc, 0o644); err != nil {
		t.Fatal(err)
	}
	// a readable text layer wins over the sidecar
	if err := os.WriteFile(filepath.Join(dir, "paper003.txt"), []byte("sidecar text"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New(WithBaseDir(dir))
	got, err := e.ExtractSource(context.Background(), "paper003.pdf")
	if err != nil || !strings.Contains(got, "Tibialis anterior activation") {
		t.Errorf("pdf text layer: %q, %v", got, err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(doc)
	}))
	defer srv.Close()
	got, err = New(WithHTTPClient(srv.Client())).ExtractSource(context.Background(), srv.URL+"/download")
	if err != nil || !strings.Contains(got, "Tibialis anterior activation") {
		t.Errorf("pdf over http: %q, %v", got, err)
	}
}

func TestExtractSource_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(page))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("<b>not html</b>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := New(WithHTTPClient(srv.Client()))
	ctx := context.Background()

	got, err := e.ExtractSource(ctx, srv.URL+"/paper")
	if err != nil || !strings.HasPrefix(got, "t\nGait asymmetry") {
		t.Errorf("html page: %q, %v", got, err)
	}
	got, err = e.ExtractSource(ctx, srv.URL+"/plain")
	if err != nil || got != "<b>not html</b>" {
		t.Errorf("plain page: %q, %v", got, err)
	}
	if _, err := e.ExtractSource(ctx, srv.URL+"/gone"); err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("404: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.ExtractSource(cancelled, srv.URL+"/paper"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: %v", err)
	}
}

func TestExtract_Item(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), domain.Item{ID: "paper001"})
	if !errors.Is(err, ErrNoSource) || !strings.HasPrefix(err.Error(), "paper001:") {
		t.Errorf("no artifact: %v", err)
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{"abcdef", 3, "abc"},
		{"abc", 10, "abc"},
		{"脳卒中の歩行", 3, "脳卒中"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := Clip(tt.text, tt.limit); got != tt.want {
			t.Errorf("Clip(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}
