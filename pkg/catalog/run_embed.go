package catalog

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/parleyhq/parley/pkg/index"
)

func init() {
	RegisterRunHandler("embed", runEmbed)
}

func runEmbed(ctx context.Context, c *Catalog, doc Document) (*RunResult, error) {
	texts := doc.GetStrings("texts")
	if text := doc.GetString("text"); text != "" {
		texts = append([]string{text}, texts...)
	}
	if len(texts) == 0 {
		return nil, errors.New("embed: missing 'text' or 'texts'")
	}

	embedder, err := c.BuildEmbedder(ctx, doc.GetString("model"))
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	return &RunResult{
		Kind:   doc.Kind,
		Status: "ok",
		Data: map[string]any{
			"model":     doc.GetString("model"),
			"dimension": embedder.Dimension(),
			"count":     len(vectors),
			"vectors":   vectors,
		},
	}, nil
}

// BuildEmbedder resolves a model document (provider openai or google)
// into an embedding client.
func (c *Catalog) BuildEmbedder(ctx context.Context, modelName string) (index.Embedder, error) {
	if modelName == "" {
		return nil, errors.New("missing 'model'")
	}
	modelDoc, err := c.Get(ctx, "model/"+modelName)
	if err != nil {
		return nil, fmt.Errorf("lookup model %q: %w", modelName, err)
	}
	cred, err := c.ResolveCred(ctx, modelDoc.GetString("cred"))
	if err != nil {
		return nil, err
	}

	var opts []index.EmbedOption
	if m := modelDoc.GetString("model"); m != "" {
		opts = append(opts, index.WithEmbedModel(m))
	}

	switch provider := modelDoc.GetString("provider"); provider {
	case "openai":
		client := newOpenAIClient(cred.GetString("api_key"), cred.GetString("base_url"))
		return index.NewOpenAIEmbedder(client, opts...), nil

	case "google":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cred.GetString("api_key")})
		if err != nil {
			return nil, fmt.Errorf("provider google: %w", err)
		}
		return index.NewGeminiEmbedder(client, opts...), nil

	default:
		return nil, fmt.Errorf("no embedder for provider %q", provider)
	}
}
