package chunker

import (
	"errors"
	"strconv"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const DefaultChunkSize = 500

var errInvalidSize = errors.New("chunk size must be > 0")

// WindowChunker slices documents into consecutive, non-overlapping windows of
// at most size characters. Characters are runes, so multi-byte text is never
// split inside a code point.
type WindowChunker struct {
	size int
}

var _ port.Chunker = (*WindowChunker)(nil)

func NewWindowChunker(size int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, errInvalidSize
	}
	return &WindowChunker{size: size}, nil
}

func (c *WindowChunker) Size() int { return c.size }

// Chunk numbers chunks sequentially across all documents. Documents whose
// text is empty or whitespace-only produce no chunks, and neither do
// whitespace-only windows inside a longer document: the embedder rejects
// blank input.
func (c *WindowChunker) Chunk(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, text := range c.Split(doc.Text) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Position: len(chunks),
				Source:   sourceLabel(doc),
				Text:     text,
			})
		}
	}
	return chunks
}

// Split returns the windows of a single text.
func (c *WindowChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	windows := make([]string, 0, (len(runes)+c.size-1)/c.size)
	for start := 0; start < len(runes); start += c.size {
		end := min(start+c.size, len(runes))
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

func sourceLabel(doc domain.Document) string {
	if doc.Page > 0 {
		return doc.Source + "#page=" + strconv.Itoa(doc.Page)
	}
	return doc.Source
}
