// Package loader reads uploaded documents into per-page text.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/bull/docchat/internal/domain"
	"github.com/bull/docchat/internal/markdown"
)

// Page is the extracted text of one page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Loader extracts pages from a file on disk.
type Loader interface {
	Load(ctx context.Context, path string) ([]Page, error)
}

// Kind identifies a supported document type.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindMarkdown Kind = "markdown"
)

var extensions = map[string]Kind{
	".pdf":      KindPDF,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
}

// Detect returns the document kind for a file name.
func Detect(name string) (Kind, error) {
	if strings.TrimSpace(name) == "" {
		return "", domain.Invalid("file", "No file selected")
	}
	kind, ok := extensions[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", domain.Invalid("file", "Invalid file type")
	}
	return kind, nil
}

// ForKind returns the loader for a document kind.
func ForKind(kind Kind) Loader {
	if kind == KindMarkdown {
		return NewMarkdownLoader()
	}
	return &PDFLoader{}
}

// PDFLoader extracts page text with github.com/ledongthuc/pdf.
type PDFLoader struct{}

// Load returns every non-empty page. Parser failures, including panics from
// malformed files, surface as *domain.LoadError.
func (l *PDFLoader) Load(ctx context.Context, path string) (pages []Page, err error) {
	name := filepath.Base(path)

	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &domain.LoadError{Name: name, Err: fmt.Errorf("pdf parser panic: %v", r)}
		}
	}()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Name: name, Err: err}
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &domain.LoadError{Name: name, Err: fmt.Errorf("create PDF reader: %w", err)}
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			return nil, &domain.LoadError{Name: name, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// MarkdownLoader treats each H1/H2 section as a page.
type MarkdownLoader struct {
	splitter *markdown.Splitter
}

// NewMarkdownLoader creates a loader splitting at H1 and H2 headings.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{splitter: markdown.NewSplitter()}
}

func (l *MarkdownLoader) Load(ctx context.Context, path string) ([]Page, error) {
	name := filepath.Base(path)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.LoadError{Name: name, Err: err}
	}

	sections, err := l.splitter.Split(content)
	if err != nil {
		return nil, &domain.LoadError{Name: name, Err: err}
	}

	pages := make([]Page, len(sections))
	for i, s := range sections {
		pages[i] = Page{Number: i + 1, Text: s.Content}
	}
	return pages, nil
}
