package index

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// ModelGeminiEmbedding is the current Gemini embedding model.
const ModelGeminiEmbedding = "gemini-embedding-001"

// The Gemini API accepts up to 100 contents per embed request.
const geminiMaxBatch = 100

// GeminiEmbedder implements Embedder using the Gemini API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder over an existing client.
// Defaults: gemini-embedding-001 shortened to 1536 dimensions.
func NewGeminiEmbedder(client *genai.Client, opts ...EmbedOption) *GeminiEmbedder {
	cfg := embedConfig{
		model: ModelGeminiEmbedding,
		dim:   1536,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &GeminiEmbedder{
		client: client,
		model:  cfg.model,
		dim:    cfg.dim,
	}
}

// Model returns the model identifier.
func (e *GeminiEmbedder) Model() string { return e.model }

// Dimension returns the configured vector dimensionality.
func (e *GeminiEmbedder) Dimension() int { return e.dim }

// Embed returns the embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts. Batches beyond the
// API limit are split into multiple calls.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += geminiMaxBatch {
		end := min(i+geminiMaxBatch, len(texts))
		vecs, err := e.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("index: embed batch [%d:%d]: %w", i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (e *GeminiEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	var cfg *genai.EmbedContentConfig
	if e.dim > 0 {
		dim := int32(e.dim)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("index: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("index: missing embedding for input %d", i)
		}
		vecs[i] = emb.Values
	}
	return vecs, nil
}
