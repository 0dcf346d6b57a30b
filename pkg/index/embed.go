// Package index provides local retrieval: text is chunked, embedded
// and stored in a brute-force cosine index persisted to kv. Query
// embeds the question and returns the best-scoring chunks, which chat
// handlers inject as context.
package index

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	// Implementations may split large batches into smaller API calls
	// transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = errors.New("index: empty input")

type embedConfig struct {
	model string
	dim   int
}

// EmbedOption configures an embedder.
type EmbedOption func(*embedConfig)

// WithEmbedModel sets the embedding model name.
func WithEmbedModel(model string) EmbedOption {
	return func(c *embedConfig) { c.model = model }
}

// WithEmbedDimension sets the output vector dimensionality, for models
// that support shortening.
func WithEmbedDimension(dim int) EmbedOption {
	return func(c *embedConfig) { c.dim = dim }
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
