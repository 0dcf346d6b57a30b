package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator implements Generator using the Google Gemini API.
type GeminiGenerator struct {
	Client *genai.Client `json:"-"`

	GenerateParams *ModelParams `json:"generate_params,omitzero"`
	InvokeParams   *ModelParams `json:"invoke_params,omitzero"`

	// ModelID should not start with "models/".
	ModelID string `json:"model"`
}

func (g *GeminiGenerator) Model() string {
	return g.ModelID
}

func (g *GeminiGenerator) GenerateStream(ctx context.Context, mctx *ModelContext) (Stream, error) {
	cfg, contents, err := g.convModelContext(mctx, g.GenerateParams)
	if err != nil {
		return nil, err
	}
	sb := NewStreamBuilder(mctx, 32)
	go func() {
		if err := geminiPull(sb, g.Client.Models.GenerateContentStream(ctx, g.ModelID, contents, cfg)); err != nil {
			sb.Abort(err)
		}
	}()
	return sb.Stream(), nil
}

func (g *GeminiGenerator) Invoke(ctx context.Context, mctx *ModelContext) (*Message, error) {
	cfg, contents, err := g.convModelContext(mctx, g.InvokeParams)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Models.GenerateContent(ctx, g.ModelID, contents, cfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("chat: no candidates")
	}
	t := resp.Candidates[0]
	switch t.FinishReason {
	case genai.FinishReasonStop:
	case genai.FinishReasonMaxTokens:
		return nil, Truncated(geminiConvUsage(resp.UsageMetadata))
	case genai.FinishReasonSafety:
		return nil, Blocked(geminiConvUsage(resp.UsageMetadata), geminiBlockedReason(t))
	default:
		return nil, fmt.Errorf("chat: unexpected finish reason: %s", t.FinishReason)
	}

	var sb strings.Builder
	for _, p := range t.Content.Parts {
		if p.FunctionCall != nil {
			b, _ := json.Marshal(p.FunctionCall.Args)
			call := &ToolCall{
				ID: p.FunctionCall.Name,
				FuncCall: &FuncCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(b),
				},
			}
			if tool := mctx.findTool(call.FuncCall.Name); tool != nil {
				call.FuncCall.tool = tool
			}
			return &Message{Role: RoleModel, Payload: call}, nil
		}
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, errors.New("chat: no content")
	}
	return &Message{Role: RoleModel, Payload: Contents{Text(sb.String())}}, nil
}

func geminiPull(builder *StreamBuilder, itr iter.Seq2[*genai.GenerateContentResponse, error]) error {
	var selIdx int32
	for chunk, err := range itr {
		if err != nil {
			if e, ok := err.(*apierror.APIError); ok {
				err = e.Unwrap()
			}
			return err
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		var sel *genai.Candidate
		if selIdx == 0 {
			selIdx = chunk.Candidates[0].Index
			sel = chunk.Candidates[0]
		} else {
			for _, c := range chunk.Candidates {
				if c.Index == selIdx {
					sel = c
					break
				}
			}
			if sel == nil {
				continue
			}
		}

		var (
			sb     strings.Builder
			blobs  = make(map[string]*bytes.Buffer)
			chunks = []*MessageChunk{}
		)
		for _, p := range sel.Content.Parts {
			switch {
			case p.Text != "":
				sb.WriteString(p.Text)
			case p.InlineData != nil:
				if _, ok := blobs[p.InlineData.MIMEType]; !ok {
					blobs[p.InlineData.MIMEType] = &bytes.Buffer{}
				}
				blobs[p.InlineData.MIMEType].Write(p.InlineData.Data)
			case p.FunctionCall != nil:
				b, _ := json.Marshal(p.FunctionCall.Args)
				chunks = append(chunks, &MessageChunk{
					Role: RoleModel,
					ToolCall: &ToolCall{
						ID: p.FunctionCall.Name,
						FuncCall: &FuncCall{
							Name:      p.FunctionCall.Name,
							Arguments: string(b),
						},
					},
				})
			default:
				return fmt.Errorf("chat: unexpected part type: %T", p)
			}
		}
		if sb.Len() > 0 {
			chunks = append(chunks, &MessageChunk{
				Role: RoleModel,
				Part: Text(sb.String()),
			})
		}
		for mime, blob := range blobs {
			chunks = append(chunks, &MessageChunk{
				Role: RoleModel,
				Part: &Blob{
					MIMEType: mime,
					Data:     blob.Bytes(),
				},
			})
		}
		if err := builder.Add(chunks...); err != nil {
			return err
		}
		switch sel.FinishReason {
		default:
			return builder.Unexpected(
				geminiConvUsage(chunk.UsageMetadata),
				fmt.Errorf("chat: unexpected finish reason: %s", sel.FinishReason),
			)
		case genai.FinishReasonUnspecified, "":
			// continue
		case genai.FinishReasonStop:
			return builder.Done(geminiConvUsage(chunk.UsageMetadata))
		case genai.FinishReasonMaxTokens:
			return builder.Truncated(geminiConvUsage(chunk.UsageMetadata))
		case genai.FinishReasonSafety:
			return builder.Blocked(
				geminiConvUsage(chunk.UsageMetadata),
				geminiBlockedReason(sel),
			)
		}
	}
	return errors.New("chat: unexpected end of stream: no finish reason")
}

func geminiBlockedReason(sel *genai.Candidate) string {
	var cats []string
	for _, sr := range sel.SafetyRatings {
		if sr.Blocked {
			cats = append(cats, string(sr.Category))
		}
	}
	return "blocked by " + strings.Join(cats, ", ")
}

func geminiConvMessage(last *genai.Content, msg *Message) (next *genai.Content, err error) {
	var (
		role  string
		parts []*genai.Part
	)
	switch t := msg.Payload.(type) {
	default:
		return nil, fmt.Errorf("chat: unexpected message type: %T", t)
	case Contents:
		switch msg.Role {
		default:
			return nil, fmt.Errorf("chat: mismatched role and type: role=%s, type=%T", msg.Role, msg.Payload)
		case RoleUser:
			role = "user"
		case RoleModel:
			role = "model"
		}

		for _, c := range msg.Payload.(Contents) {
			switch v := c.(type) {
			case Text:
				parts = append(parts, genai.NewPartFromText(string(v)))
			case *Blob:
				parts = append(parts, genai.NewPartFromBytes(v.Data, v.MIMEType))
			}
		}
	case *ToolCall:
		role = "model"
		var args map[string]any
		if err := json.Unmarshal([]byte(t.FuncCall.Arguments), &args); err != nil {
			args = map[string]any{
				"text": t.FuncCall.Arguments,
			}
		}
		parts = append(parts, genai.NewPartFromFunctionCall(t.ID, args))
	case *ToolResult:
		role = "user"
		var result map[string]any
		if err := json.Unmarshal([]byte(t.Result), &result); err != nil {
			result = map[string]any{
				"text": t.Result,
			}
		}
		parts = append(parts, genai.NewPartFromFunctionResponse(t.ID, result))
	}
	if last == nil || last.Role != role {
		return &genai.Content{
			Role:  role,
			Parts: parts,
		}, nil
	}
	last.Parts = append(last.Parts, parts...)
	return nil, nil
}

func (g *GeminiGenerator) convModelContext(mctx *ModelContext, fallback *ModelParams) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{
				Category:  genai.HarmCategoryHateSpeech,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryHarassment,
				Threshold: genai.HarmBlockThresholdOff,
			},
			{
				Category:  genai.HarmCategoryDangerousContent,
				Threshold: genai.HarmBlockThresholdOff,
			},
		},
	}
	prompts := []*genai.Part{}
	for _, p := range mctx.Prompts {
		prompts = append(prompts, genai.NewPartFromText(p.Text))
	}
	if len(prompts) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: prompts}
	}
	if mp := mctx.params(fallback); mp != nil {
		cfg.MaxOutputTokens = int32(mp.MaxTokens)
		cfg.Temperature = &mp.Temperature
		cfg.TopP = &mp.TopP
		cfg.TopK = &mp.TopK
	}

	if out := mctx.Output; out != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = geminiConvSchema(out.Argument)
	} else {
		tools := []*genai.Tool{}
		for _, t := range mctx.Tools {
			tools = append(tools, &genai.Tool{
				FunctionDeclarations: []*genai.FunctionDeclaration{
					{
						Name:        t.Name,
						Description: t.Description,
						Parameters:  geminiConvSchema(t.Argument),
					},
				},
			})
		}
		if len(tools) > 0 {
			cfg.Tools = tools
		}
	}

	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for _, msg := range mctx.Messages {
		next, err := geminiConvMessage(last, msg)
		if err != nil {
			return nil, nil, err
		}
		if next != nil {
			contents = append(contents, next)
			last = next
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("chat: no contents")
	}

	return &cfg, contents, nil
}

func geminiConvSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       geminiConvSchema(schema.Items),
		Required:    schema.Required,
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}

func geminiConvUsage(usage *genai.GenerateContentResponseUsageMetadata) Usage {
	if usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokenCount:        int64(usage.PromptTokenCount),
		CachedContentTokenCount: int64(usage.CachedContentTokenCount),
		GeneratedTokenCount:     int64(usage.CandidatesTokenCount),
	}
}
