package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/parleyhq/parley/pkg/anthropic"
	"github.com/parleyhq/parley/pkg/chat"
)

func init() {
	RegisterRunHandler("chat", runChat)
	RegisterRunHandler("chat-stream", runChatStream)
}

// maxToolRounds caps the tool-call loop for chat requests.
const maxToolRounds = 8

// Base URLs for OpenAI-compatible providers.
const (
	ollamaBaseURL = "http://localhost:11434/v1"
	xaiBaseURL    = "https://api.x.ai/v1"
)

func runChat(ctx context.Context, c *Catalog, doc Document) (*RunResult, error) {
	gen, mctx, err := c.buildChatRequest(ctx, doc)
	if err != nil {
		return nil, err
	}

	var (
		msg   *chat.Message
		usage chat.Usage
	)
	if len(mctx.Tools) > 0 {
		msg, usage, err = chat.RunTools(ctx, gen, mctx, maxToolRounds)
	} else {
		msg, err = gen.Invoke(ctx, mctx)
	}
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	return &RunResult{
		Kind:   doc.Kind,
		Status: "ok",
		Text:   msg.Text(),
		Usage:  usage.String(),
	}, nil
}

func runChatStream(ctx context.Context, c *Catalog, doc Document) (*RunResult, error) {
	gen, mctx, err := c.buildChatRequest(ctx, doc)
	if err != nil {
		return nil, err
	}

	stream, err := gen.GenerateStream(ctx, mctx)
	if err != nil {
		return nil, fmt.Errorf("chat-stream: %w", err)
	}
	defer stream.Close()

	w := c.streamWriter()
	var sb strings.Builder
	var usage chat.Usage
	for {
		chunk, err := stream.Next()
		if err != nil {
			var state *chat.State
			if errors.As(err, &state) {
				usage = state.Usage()
				if state.Status() == chat.StatusDone {
					break
				}
			}
			return nil, fmt.Errorf("chat-stream: %w", err)
		}
		if text, ok := chunk.Part.(chat.Text); ok {
			sb.WriteString(string(text))
			io.WriteString(w, string(text))
		}
	}

	return &RunResult{
		Kind:   doc.Kind,
		Status: "ok",
		Text:   sb.String(),
		Usage:  usage.String(),
	}, nil
}

// buildChatRequest resolves the preset/model chain of a chat request
// document into a generator and model context.
func (c *Catalog) buildChatRequest(ctx context.Context, doc Document) (chat.Generator, *chat.ModelContext, error) {
	modelName := doc.GetString("model")
	system := doc.GetString("system")
	params := docParams(doc)
	pluginNames := doc.GetStrings("plugins")

	if presetName := doc.GetString("preset"); presetName != "" {
		preset, err := c.Get(ctx, "preset/"+presetName)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: lookup preset %q: %w", doc.Kind, presetName, err)
		}
		if modelName == "" {
			modelName = preset.GetString("model")
		}
		if system == "" {
			system = preset.GetString("system")
		}
		if params == nil {
			params = docParams(*preset)
		}
		if len(pluginNames) == 0 {
			pluginNames = preset.GetStrings("plugins")
		}
	}
	if modelName == "" {
		return nil, nil, fmt.Errorf("%s: missing 'model' (or a 'preset' that names one)", doc.Kind)
	}

	gen, modelDoc, err := c.BuildGenerator(ctx, modelName)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", doc.Kind, err)
	}
	if params == nil {
		params = docParams(*modelDoc)
	}

	mctx := &chat.ModelContext{Params: params}
	if system != "" {
		mctx.PromptText("system", system)
	}
	if err := appendRequestMessages(mctx, doc); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", doc.Kind, err)
	}

	if len(pluginNames) > 0 {
		tools, err := c.pluginRegistry().Tools(pluginNames...)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", doc.Kind, err)
		}
		for _, tool := range tools {
			mctx.AddTool(tool)
		}
	}
	return gen, mctx, nil
}

// appendRequestMessages adds the request's conversation to mctx: either
// a single "text" user message or a "messages" list of {role, text}.
func appendRequestMessages(mctx *chat.ModelContext, doc Document) error {
	if text := doc.GetString("text"); text != "" {
		mctx.UserText("", text)
		return nil
	}

	raw, ok := doc.Fields["messages"].([]any)
	if !ok || len(raw) == 0 {
		return errors.New("missing 'text' or 'messages'")
	}
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("messages[%d]: not a map", i)
		}
		text, _ := m["text"].(string)
		if text == "" {
			return fmt.Errorf("messages[%d]: missing 'text'", i)
		}
		role, _ := m["role"].(string)
		switch role {
		case "", "user":
			mctx.UserText("", text)
		case "model", "assistant":
			mctx.ModelText("", text)
		default:
			return fmt.Errorf("messages[%d]: unknown role %q", i, role)
		}
	}
	return nil
}

// BuildGenerator resolves a model document and its credential into a
// provider generator. The model name may carry the "model/" prefix.
func (c *Catalog) BuildGenerator(ctx context.Context, modelName string) (chat.Generator, *Document, error) {
	name := strings.TrimPrefix(modelName, "model/")
	modelDoc, err := c.Get(ctx, "model/"+name)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup model %q: %w", name, err)
	}

	provider := modelDoc.GetString("provider")
	modelID := modelDoc.GetString("model")
	credRef := modelDoc.GetString("cred")

	var cred *Document
	if credRef != "" {
		cred, err = c.ResolveCred(ctx, credRef)
		if err != nil {
			return nil, nil, err
		}
	}

	gen, err := newProviderGenerator(ctx, provider, modelID, modelDoc, cred)
	if err != nil {
		return nil, nil, fmt.Errorf("model %q: %w", name, err)
	}
	return gen, modelDoc, nil
}

func newProviderGenerator(ctx context.Context, provider, modelID string, modelDoc, cred *Document) (chat.Generator, error) {
	apiKey := ""
	baseURL := modelDoc.GetString("base_url")
	if cred != nil {
		apiKey = cred.GetString("api_key")
		if baseURL == "" {
			baseURL = cred.GetString("base_url")
		}
	}

	switch provider {
	case "openai", "ollama", "xai":
		if baseURL == "" {
			switch provider {
			case "ollama":
				baseURL = ollamaBaseURL
			case "xai":
				baseURL = xaiBaseURL
			}
		}
		if apiKey == "" {
			if provider != "ollama" {
				return nil, fmt.Errorf("provider %s: missing api_key", provider)
			}
			// Ollama ignores auth but the client requires a key.
			apiKey = "ollama"
		}
		client := newOpenAIClient(apiKey, baseURL)
		return &chat.OpenAIGenerator{
			Client:            client,
			ModelID:           modelID,
			SupportToolCalls:  modelDoc.GetBool("tools"),
			SupportJSONOutput: provider == "openai",
			UseSystemRole:     true,
		}, nil

	case "anthropic":
		if apiKey == "" {
			return nil, errors.New("provider anthropic: missing api_key")
		}
		var opts []anthropic.Option
		if baseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(baseURL))
		}
		if cred != nil {
			if v := cred.GetString("version"); v != "" {
				opts = append(opts, anthropic.WithVersion(v))
			}
		}
		return &chat.AnthropicGenerator{
			Client:  anthropic.NewClient(apiKey, opts...),
			ModelID: modelID,
		}, nil

	case "google":
		if apiKey == "" {
			return nil, errors.New("provider google: missing api_key")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("provider google: %w", err)
		}
		return &chat.GeminiGenerator{
			Client:  client,
			ModelID: modelID,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

// docParams reads sampling parameters from a document, or nil if the
// document sets none.
func docParams(doc Document) *chat.ModelParams {
	var params chat.ModelParams
	set := false
	if _, ok := doc.Fields["temperature"]; ok {
		params.Temperature = float32(doc.GetFloat("temperature"))
		set = true
	}
	if _, ok := doc.Fields["max_tokens"]; ok {
		params.MaxTokens = doc.GetInt("max_tokens")
		set = true
	}
	if _, ok := doc.Fields["top_p"]; ok {
		params.TopP = float32(doc.GetFloat("top_p"))
		set = true
	}
	if !set {
		return nil
	}
	return &params
}
