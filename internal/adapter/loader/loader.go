// Package loader turns a directory of source files into Documents.
package loader

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// Extractor reads one file and returns its documents.
type Extractor func(path string) ([]domain.Document, error)

// Loader walks a directory and extracts text from every supported file.
// PDFs produce one Document per page; plain text files produce one Document.
type Loader struct {
	walker     port.FileWalker
	extractors map[string]Extractor
}

var _ port.DocumentLoader = (*Loader)(nil)

func NewLoader(walker port.FileWalker) *Loader {
	return &Loader{
		walker: walker,
		extractors: map[string]Extractor{
			".pdf": ExtractPDF,
			".txt": ExtractText,
			".md":  ExtractText,
		},
	}
}

// RegisterExtractor adds or replaces the extractor for a file extension.
func (l *Loader) RegisterExtractor(ext string, fn Extractor) {
	l.extractors[strings.ToLower(ext)] = fn
}

// Load yields documents lazily in path order. The first error ends the sequence.
func (l *Loader) Load(ctx context.Context, dir string) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		info, err := os.Stat(dir)
		if err != nil {
			yield(domain.Document{}, fmt.Errorf("%w: %v", domain.ErrLoad, err))
			return
		}
		if !info.IsDir() {
			yield(domain.Document{}, fmt.Errorf("%w: not a directory: %s", domain.ErrLoad, dir))
			return
		}

		files, err := l.walker.Walk(dir)
		if err != nil {
			yield(domain.Document{}, fmt.Errorf("%w: walk %s: %v", domain.ErrLoad, dir, err))
			return
		}

		for _, file := range files {
			if err := ctx.Err(); err != nil {
				yield(domain.Document{}, err)
				return
			}

			extract, ok := l.extractors[strings.ToLower(filepath.Ext(file.Path))]
			if !ok {
				continue
			}

			docs, err := extract(file.Path)
			if err != nil {
				yield(domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrLoad, file.Path, err))
				return
			}
			for _, doc := range docs {
				if !yield(doc, nil) {
					return
				}
			}
		}
	}
}

// LoadAll drains Load into a slice.
func LoadAll(ctx context.Context, l port.DocumentLoader, dir string) ([]domain.Document, error) {
	var docs []domain.Document
	for doc, err := range l.Load(ctx, dir) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func ExtractText(path string) ([]domain.Document, error) {
	content, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []domain.Document{{Source: path, Text: content}}, nil
}

// ExtractPDF returns one Document per page. Pages without a content stream
// yield empty text and are dropped later by the chunker.
func ExtractPDF(path string) (docs []domain.Document, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			docs = append(docs, domain.Document{Source: path, Page: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		docs = append(docs, domain.Document{Source: path, Page: i, Text: text})
	}
	return docs, nil
}
