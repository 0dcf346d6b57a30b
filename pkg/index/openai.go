package index

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAI embedding models.
const (
	ModelOpenAI3Small = "text-embedding-3-small"
	ModelOpenAI3Large = "text-embedding-3-large"
)

const (
	// The embeddings endpoint accepts up to 2048 inputs per request.
	openAIMaxBatch   = 2048
	openAIDefaultDim = 1536
)

// OpenAIEmbedder implements Embedder using the OpenAI embeddings API.
// Any OpenAI-compatible endpoint works when the client carries a
// custom base URL.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder over an existing client.
// Defaults: text-embedding-3-small at 1536 dimensions.
func NewOpenAIEmbedder(client *openai.Client, opts ...EmbedOption) *OpenAIEmbedder {
	cfg := embedConfig{
		model: ModelOpenAI3Small,
		dim:   openAIDefaultDim,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &OpenAIEmbedder{
		client: client,
		model:  cfg.model,
		dim:    cfg.dim,
	}
}

// Model returns the model identifier.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Dimension returns the configured vector dimensionality.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
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
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := min(i+openAIMaxBatch, len(texts))
		vecs, err := e.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("index: embed batch [%d:%d]: %w", i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (e *OpenAIEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          e.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dim > 0 {
		params.Dimensions = openai.Int(int64(e.dim))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("index: unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vecs[idx] = float64sToFloat32s(item.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("index: missing embedding for input %d", i)
		}
	}
	return vecs, nil
}
