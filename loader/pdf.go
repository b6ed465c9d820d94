package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/flarexio/docblade/document"
)

// PDFLoader extracts page-level text documents from PDF files.
type PDFLoader struct{}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// LoadDirectory loads every .pdf file in dir, in lexical order. A directory
// without PDF files yields no documents and no error; an unreadable PDF
// aborts the load.
func (l *PDFLoader) LoadDirectory(ctx context.Context, dir string) ([]document.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	var docs []document.Document
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pages, err := l.LoadFile(ctx, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		docs = append(docs, pages...)
	}

	return docs, nil
}

// LoadFile extracts one document per page of the PDF at path.
func (l *PDFLoader) LoadFile(ctx context.Context, path string) ([]document.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var docs []document.Document
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract text from %s page %d: %w", path, i, err)
		}

		docs = append(docs, document.Document{
			Content: text,
			Source:  path,
			Page:    i,
		})
	}

	return docs, nil
}
