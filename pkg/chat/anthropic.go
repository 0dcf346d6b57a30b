package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/parleyhq/parley/pkg/anthropic"
)

var _ Generator = (*AnthropicGenerator)(nil)

// The messages endpoint requires max_tokens; used when no params set it.
const anthDefaultMaxTokens = 4096

// AnthropicGenerator implements Generator using the Anthropic Messages
// API via pkg/anthropic.
type AnthropicGenerator struct {
	Client *anthropic.Client `json:"-"`

	ModelID string `json:"model"`

	GenerateParams *ModelParams `json:"generate_params,omitzero"`
	InvokeParams   *ModelParams `json:"invoke_params,omitzero"`
}

func (g *AnthropicGenerator) Model() string {
	return g.ModelID
}

func (g *AnthropicGenerator) GenerateStream(ctx context.Context, mctx *ModelContext) (Stream, error) {
	req, err := g.convModelContext(mctx, g.GenerateParams)
	if err != nil {
		return nil, err
	}
	sb := NewStreamBuilder(mctx, 32)
	go func() {
		if err := anthPull(sb, g.Client.MessagesStream(ctx, req)); err != nil {
			sb.Abort(err)
		}
	}()
	return sb.Stream(), nil
}

func (g *AnthropicGenerator) Invoke(ctx context.Context, mctx *ModelContext) (*Message, error) {
	req, err := g.convModelContext(mctx, g.InvokeParams)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Messages(ctx, req)
	if err != nil {
		return nil, err
	}
	usage := anthConvUsage(&resp.Usage)
	switch resp.StopReason {
	case anthropic.StopEndTurn, anthropic.StopStopSequence:
		txt := resp.Text()
		if txt == "" {
			return nil, errors.New("chat: no content")
		}
		return &Message{Role: RoleModel, Payload: Contents{Text(txt)}}, nil
	case anthropic.StopToolUse:
		use, ok := resp.ToolUse()
		if !ok {
			return nil, errors.New("chat: no tool use block")
		}
		// A forced output schema comes back as a tool use; unwrap it to
		// plain JSON contents.
		if mctx.Output != nil && use.Name == mctx.Output.Name {
			return &Message{Role: RoleModel, Payload: Contents{Text(string(use.Input))}}, nil
		}
		call := &ToolCall{
			ID:       use.ID,
			FuncCall: &FuncCall{Name: use.Name, Arguments: string(use.Input)},
		}
		if t := mctx.findTool(use.Name); t != nil {
			call.FuncCall.tool = t
		}
		return &Message{Role: RoleModel, Payload: call}, nil
	case anthropic.StopMaxTokens:
		return nil, Truncated(usage)
	case anthropic.StopRefusal:
		return nil, Blocked(usage, "refused")
	default:
		return nil, fmt.Errorf("chat: unexpected stop reason: %s", resp.StopReason)
	}
}

func anthPull(sb *StreamBuilder, itr iter.Seq2[*anthropic.StreamEvent, error]) error {
	var (
		usage      Usage
		stopReason string
		tool       *anthropic.ContentBlock
		toolJSON   strings.Builder
	)
	commitTool := func() error {
		if tool == nil {
			return nil
		}
		args := toolJSON.String()
		if args == "" {
			args = string(tool.Input)
		}
		if args == "" {
			args = "{}"
		}
		err := sb.Add(&MessageChunk{
			Role: RoleModel,
			ToolCall: &ToolCall{
				ID:       tool.ID,
				FuncCall: &FuncCall{Name: tool.Name, Arguments: args},
			},
		})
		tool = nil
		toolJSON.Reset()
		return err
	}

	for event, err := range itr {
		if err != nil {
			return err
		}
		switch event.Type {
		case anthropic.EventMessageStart:
			if event.Message != nil {
				usage = anthConvUsage(&event.Message.Usage)
			}
		case anthropic.EventContentBlockStart:
			if cb := event.ContentBlock; cb != nil && cb.Type == anthropic.BlockToolUse {
				b := *cb
				tool = &b
			}
		case anthropic.EventContentBlockDelta:
			d := event.Delta
			if d == nil {
				continue
			}
			switch d.Type {
			case anthropic.DeltaText:
				if d.Text == "" {
					continue
				}
				if err := sb.Add(&MessageChunk{Role: RoleModel, Part: Text(d.Text)}); err != nil {
					return err
				}
			case anthropic.DeltaInputJSON:
				toolJSON.WriteString(d.PartialJSON)
			}
		case anthropic.EventContentBlockStop:
			if err := commitTool(); err != nil {
				return err
			}
		case anthropic.EventMessageDelta:
			if event.Delta != nil && event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.GeneratedTokenCount = event.Usage.OutputTokens
			}
		case anthropic.EventMessageStop:
			if err := commitTool(); err != nil {
				return err
			}
			switch stopReason {
			case anthropic.StopEndTurn, anthropic.StopStopSequence, anthropic.StopToolUse:
				return sb.Done(usage)
			case anthropic.StopMaxTokens:
				return sb.Truncated(usage)
			case anthropic.StopRefusal:
				return sb.Blocked(usage, "refused")
			default:
				return sb.Unexpected(usage, fmt.Errorf("chat: unexpected stop reason: %q", stopReason))
			}
		}
	}
	return errors.New("chat: stream ended without message_stop")
}

func (g *AnthropicGenerator) convModelContext(mctx *ModelContext, fallback *ModelParams) (*anthropic.MessagesRequest, error) {
	req := &anthropic.MessagesRequest{
		Model:     g.ModelID,
		MaxTokens: anthDefaultMaxTokens,
	}
	var sys strings.Builder
	for _, p := range mctx.Prompts {
		if sys.Len() > 0 {
			sys.WriteString("\n\n")
		}
		sys.WriteString(p.Text)
	}
	req.System = sys.String()

	if mp := mctx.params(fallback); mp != nil {
		if mp.MaxTokens > 0 {
			req.MaxTokens = mp.MaxTokens
		}
		if mp.Temperature > 0 {
			t := float64(mp.Temperature)
			req.Temperature = &t
		}
		if mp.TopP > 0 {
			t := float64(mp.TopP)
			req.TopP = &t
		}
		if mp.TopK > 0 {
			k := int(mp.TopK)
			req.TopK = &k
		}
	}

	for _, t := range mctx.Tools {
		tool, err := anthConvTool(t)
		if err != nil {
			return nil, err
		}
		req.Tools = append(req.Tools, tool)
	}
	if out := mctx.Output; out != nil {
		tool, err := anthConvTool(out)
		if err != nil {
			return nil, err
		}
		req.Tools = append(req.Tools, tool)
		req.ToolChoice = &anthropic.ToolChoice{Type: "tool", Name: out.Name}
	} else if len(req.Tools) > 0 {
		req.ToolChoice = &anthropic.ToolChoice{Type: "auto"}
	}

	for _, msg := range mctx.Messages {
		if err := anthAppendMessage(req, msg); err != nil {
			return nil, err
		}
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("chat: no contents")
	}
	return req, nil
}

func anthConvTool(t *FuncTool) (anthropic.Tool, error) {
	schema := json.RawMessage(`{"type":"object"}`)
	if t.Argument != nil {
		b, err := json.Marshal(t.Argument)
		if err != nil {
			return anthropic.Tool{}, err
		}
		schema = b
	}
	return anthropic.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// anthAppendMessage converts one message and appends it, merging into
// the previous turn when the role repeats: the messages endpoint wants
// strictly alternating user/assistant turns.
func anthAppendMessage(req *anthropic.MessagesRequest, msg *Message) error {
	var (
		role   string
		blocks []anthropic.ContentBlock
	)
	switch t := msg.Payload.(type) {
	default:
		return fmt.Errorf("chat: unexpected message type: %T", t)
	case Contents:
		switch msg.Role {
		case RoleUser:
			role = anthropic.RoleUser
		case RoleModel:
			role = anthropic.RoleAssistant
		default:
			return fmt.Errorf("chat: mismatched role and type: role=%s, type=%T", msg.Role, msg.Payload)
		}
		for _, c := range t {
			switch v := c.(type) {
			case Text:
				blocks = append(blocks, anthropic.NewTextBlock(string(v)))
			case *Blob:
				if !strings.HasPrefix(v.MIMEType, "image/") {
					return fmt.Errorf("chat: unsupported blob type: %s", v.MIMEType)
				}
				blocks = append(blocks, anthropic.NewImageBlock(v.MIMEType, base64.StdEncoding.EncodeToString(v.Data)))
			}
		}
	case *ToolCall:
		role = anthropic.RoleAssistant
		input := json.RawMessage(t.FuncCall.Arguments)
		if !json.Valid(input) {
			b, _ := json.Marshal(map[string]string{"text": t.FuncCall.Arguments})
			input = b
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(t.ID, t.FuncCall.Name, input))
	case *ToolResult:
		role = anthropic.RoleUser
		blocks = append(blocks, anthropic.NewToolResultBlock(t.ID, t.Result, false))
	}

	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
		req.Messages[n-1].Content = append(req.Messages[n-1].Content, blocks...)
		return nil
	}
	req.Messages = append(req.Messages, anthropic.InputMessage{Role: role, Content: blocks})
	return nil
}

func anthConvUsage(u *anthropic.Usage) Usage {
	return Usage{
		PromptTokenCount:        u.InputTokens,
		CachedContentTokenCount: u.CacheReadInputTokens,
		GeneratedTokenCount:     u.OutputTokens,
	}
}
