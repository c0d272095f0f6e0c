package port

import (
	"context"
	"iter"

	"docqa/internal/domain"
)

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// DocumentLoader lazily yields the documents found under a directory.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) iter.Seq2[domain.Document, error]
}
