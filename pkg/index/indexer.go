package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IndexerConfig configures a new [Indexer].
type IndexerConfig struct {
	// Embedder converts chunks and queries to vectors. Required.
	Embedder Embedder

	// Index stores and searches the vectors. Required.
	Index *VectorIndex

	// ChunkSize is the window size in runes. Default 800.
	ChunkSize int

	// ChunkOverlap is the window overlap in runes. Default 200.
	ChunkOverlap int
}

// Indexer turns documents into searchable rows: chunk, embed, insert.
// One Indexer wraps one [VectorIndex]; queries embed the question and
// run a similarity search over it.
type Indexer struct {
	embedder Embedder
	index    *VectorIndex
	size     int
	overlap  int
}

// NewIndexer creates an Indexer with the given configuration.
func NewIndexer(cfg IndexerConfig) *Indexer {
	size := cfg.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap <= 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &Indexer{
		embedder: cfg.Embedder,
		index:    cfg.Index,
		size:     size,
		overlap:  overlap,
	}
}

// Index returns the underlying vector index.
func (ix *Indexer) Index() *VectorIndex { return ix.index }

// IndexText chunks and embeds text under the given source name. Rows
// from a previous run of the same source are replaced, so re-indexing
// a shrunk document leaves no stale chunks behind. It returns the
// number of rows written.
func (ix *Indexer) IndexText(ctx context.Context, source, text string) (int, error) {
	chunks := ChunkText(text, ix.size, ix.overlap)
	if _, err := ix.index.DeleteSource(ctx, source); err != nil {
		return 0, fmt.Errorf("index %s: %w", source, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("index %s: %w", source, err)
	}
	rows := make([]Row, len(chunks))
	for i, chunk := range chunks {
		rows[i] = Row{
			ID:     fmt.Sprintf("%s#%d", source, i),
			Source: source,
			Chunk:  chunk,
			Vector: vectors[i],
		}
	}
	if err := ix.index.BatchInsert(ctx, rows); err != nil {
		return 0, fmt.Errorf("index %s: %w", source, err)
	}
	return len(rows), nil
}

// IndexFile reads path and indexes it under its base name.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return ix.IndexText(ctx, filepath.Base(path), string(data))
}

// Query embeds the question and returns the topK closest rows.
func (ix *Indexer) Query(ctx context.Context, question string, topK int) ([]Match, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyInput
	}
	if topK <= 0 {
		topK = 5
	}
	vec, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return ix.index.Search(vec, topK), nil
}

// Remove deletes every row of a source.
func (ix *Indexer) Remove(ctx context.Context, source string) error {
	_, err := ix.index.DeleteSource(ctx, source)
	return err
}

// Context formats matches as a context block for a chat prompt. Each
// match becomes a bracketed source header followed by its chunk.
func Context(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", m.Source, m.Chunk)
	}
	return b.String()
}
