// Package chat provides a streaming-first, multi-provider LLM layer.
//
// A Generator turns a ModelContext (system prompts, conversation
// messages, tools, sampling params) into either a Stream of
// MessageChunk deltas or a single blocking Message. Streams always end
// with a terminal *State error carrying the finish status and token
// usage; ErrDone marks a clean end.
//
// Providers:
//   - OpenAIGenerator (openai.com and any compatible endpoint such as
//     Ollama or xAI via a custom base URL)
//   - GeminiGenerator (google.golang.org/genai)
//   - AnthropicGenerator (pkg/anthropic)
//
// A typical tool-calling conversation:
//
//	mctx := &chat.ModelContext{}
//	mctx.PromptText("system", "You are concise.")
//	mctx.AddTool(weatherTool)
//	mctx.UserText("", "Weather in Porto?")
//	reply, usage, err := chat.RunTools(ctx, gen, mctx, 4)
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/goccy/go-yaml"
)

// Stream yields message chunks until a terminal error. The terminal
// error is a *State (or wraps one) whose status tells whether the
// generation finished, was truncated, or was blocked.
type Stream interface {
	Next() (*MessageChunk, error)
	Close() error
	CloseWithError(error) error
}

// Generator produces model replies for a ModelContext.
type Generator interface {
	// Model reports the bound model identifier.
	Model() string

	// GenerateStream starts a streaming generation.
	GenerateStream(context.Context, *ModelContext) (Stream, error)

	// Invoke runs a blocking generation and returns the reply message.
	// If the model answered with a tool call, the returned payload is a
	// *ToolCall; otherwise it is Contents.
	Invoke(context.Context, *ModelContext) (*Message, error)
}

// ModelParams are sampling parameters. Zero values are omitted from
// provider requests.
type ModelParams struct {
	MaxTokens        int     `json:"max_tokens,omitzero"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitzero"`
	N                int     `json:"n,omitzero"`
	Temperature      float32 `json:"temperature,omitzero"`
	TopP             float32 `json:"top_p,omitzero"`
	PresencePenalty  float32 `json:"presence_penalty,omitzero"`
	TopK             float32 `json:"top_k,omitzero"`
}

// Prompt is a named system instruction.
type Prompt struct {
	Name string
	Text string
}

// ModelContext is the full input of one generation: system prompts,
// the conversation so far, callable tools, and sampling params.
//
// Output, when set, requests structured output: the model is
// constrained to reply with JSON matching Output.Argument, and the
// reply arrives as plain text contents holding the JSON. Parse it with
// Output.NewFuncCall(text).Invoke(ctx).
type ModelContext struct {
	Prompts  []*Prompt
	Messages []*Message
	Tools    []*FuncTool

	Output *FuncTool

	Params *ModelParams
}

func (mctx *ModelContext) lastPrompt() (*Prompt, bool) {
	if len(mctx.Prompts) == 0 {
		return nil, false
	}
	return mctx.Prompts[len(mctx.Prompts)-1], true
}

// AddPrompt appends a system prompt, merging consecutive prompts that
// share a name.
func (mctx *ModelContext) AddPrompt(prompt *Prompt) {
	if p, ok := mctx.lastPrompt(); ok && p.Name == prompt.Name {
		if p.Text != "" {
			p.Text += "\n" + prompt.Text
		} else {
			p.Text = prompt.Text
		}
		return
	}
	mctx.Prompts = append(mctx.Prompts, prompt)
}

// PromptText appends a named system prompt.
func (mctx *ModelContext) PromptText(name, text string) {
	mctx.AddPrompt(&Prompt{Name: name, Text: text})
}

// Prompt appends a system prompt rendered as a YAML key/value block.
func (mctx *ModelContext) Prompt(name, key string, value any) error {
	b, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		return err
	}
	mctx.AddPrompt(&Prompt{Name: name, Text: string(b)})
	return nil
}

func (mctx *ModelContext) lastMessage() (*Message, bool) {
	if len(mctx.Messages) == 0 {
		return nil, false
	}
	return mctx.Messages[len(mctx.Messages)-1], true
}

// AddMessage appends a message, merging consecutive content messages
// from the same role and name into one.
func (mctx *ModelContext) AddMessage(msg *Message) {
	if m, ok := mctx.lastMessage(); ok {
		if p, ok := m.Payload.(Contents); ok && msg.Role == m.Role && msg.Name == m.Name {
			if next, ok := msg.Payload.(Contents); ok {
				m.Payload = append(p, next...)
				return
			}
		}
	}
	mctx.Messages = append(mctx.Messages, msg)
}

// AddTool registers a callable tool.
func (mctx *ModelContext) AddTool(tool *FuncTool) {
	mctx.Tools = append(mctx.Tools, tool)
}

// UserText appends a user text message.
func (mctx *ModelContext) UserText(name, text string) {
	mctx.AddMessage(&Message{
		Role:    RoleUser,
		Name:    name,
		Payload: Contents{Text(text)},
	})
}

// UserBlob appends a user binary message (image, audio).
func (mctx *ModelContext) UserBlob(name, mimeType string, data []byte) {
	mctx.AddMessage(&Message{
		Role:    RoleUser,
		Name:    name,
		Payload: Contents{&Blob{MIMEType: mimeType, Data: data}},
	})
}

// ModelText appends a model text message.
func (mctx *ModelContext) ModelText(name, text string) {
	mctx.AddMessage(&Message{
		Role:    RoleModel,
		Name:    name,
		Payload: Contents{Text(text)},
	})
}

// AddToolCall appends a model tool-call message.
func (mctx *ModelContext) AddToolCall(call *ToolCall) {
	mctx.Messages = append(mctx.Messages, &Message{
		Role:    RoleModel,
		Payload: call,
	})
}

// AddToolResult appends a tool result message for a call ID.
func (mctx *ModelContext) AddToolResult(id, result string) {
	mctx.Messages = append(mctx.Messages, &Message{
		Role:    RoleTool,
		Payload: &ToolResult{ID: id, Result: result},
	})
}

// AddToolCallResult appends a synthetic call/result pair, marshaling
// non-string arguments and results to JSON. Useful when replaying a
// tool exchange that happened outside the model loop.
func (mctx *ModelContext) AddToolCallResult(toolName string, callArg, callResult any) error {
	argstr, err := asJSONString(callArg)
	if err != nil {
		return err
	}
	resstr, err := asJSONString(callResult)
	if err != nil {
		return err
	}
	id := "call_" + hexString()
	mctx.AddToolCall(&ToolCall{ID: id, FuncCall: &FuncCall{Name: toolName, Arguments: argstr}})
	mctx.AddToolResult(id, resstr)
	return nil
}

// InvokeTool runs a tool call and appends both the call and its result
// to the conversation.
func (mctx *ModelContext) InvokeTool(ctx context.Context, call *ToolCall) error {
	if call.FuncCall == nil {
		return errors.New("chat: invoke needs a function call")
	}
	res, err := call.Invoke(ctx)
	if err != nil {
		return err
	}
	resstr, err := asJSONString(res)
	if err != nil {
		return err
	}
	mctx.AddToolCall(call)
	mctx.AddToolResult(call.ID, resstr)
	return nil
}

func (mctx *ModelContext) params(fallback *ModelParams) *ModelParams {
	if mctx.Params != nil {
		return mctx.Params
	}
	return fallback
}

// Usage counts tokens for one generation.
type Usage struct {
	// Number of tokens in the prompt, including any cached content.
	PromptTokenCount int64

	// Number of prompt tokens served from cache.
	CachedContentTokenCount int64

	// Number of tokens generated.
	GeneratedTokenCount int64
}

// Add returns the element-wise sum of two usages.
func (u Usage) Add(v Usage) Usage {
	return Usage{
		PromptTokenCount:        u.PromptTokenCount + v.PromptTokenCount,
		CachedContentTokenCount: u.CachedContentTokenCount + v.CachedContentTokenCount,
		GeneratedTokenCount:     u.GeneratedTokenCount + v.GeneratedTokenCount,
	}
}

func (u Usage) String() string {
	b, _ := yaml.Marshal(map[string]map[string]any{
		"Usage": {
			"Prompt":    u.PromptTokenCount,
			"Cached":    u.CachedContentTokenCount,
			"Generated": u.GeneratedTokenCount,
		},
	})
	return string(b)
}

// GenerateText runs one streaming generation and returns the reply as
// plain text. Tool calls in the reply are ignored.
func GenerateText(ctx context.Context, gen Generator, mctx *ModelContext) (string, Usage, error) {
	s, err := gen.GenerateStream(ctx, mctx)
	if err != nil {
		return "", Usage{}, err
	}
	msgs, usage, err := Collect(s)
	if err != nil {
		return "", usage, err
	}
	var text strings.Builder
	for _, msg := range msgs {
		text.WriteString(msg.Text())
	}
	return text.String(), usage, nil
}

// Collect drains a stream into complete messages: at most one contents
// message followed by one message per tool call. On a clean finish the
// returned error is nil; on truncation or blocking the partial
// messages are returned together with the terminal *State error.
func Collect(s Stream) ([]*Message, Usage, error) {
	defer s.Close()

	var (
		name  string
		text  strings.Builder
		blobs []*Blob
		calls []*ToolCall
	)
	build := func() []*Message {
		var msgs []*Message
		var parts Contents
		if text.Len() > 0 {
			parts = append(parts, Text(text.String()))
		}
		for _, b := range blobs {
			parts = append(parts, b)
		}
		if len(parts) > 0 {
			msgs = append(msgs, &Message{Role: RoleModel, Name: name, Payload: parts})
		}
		for _, call := range calls {
			msgs = append(msgs, &Message{Role: RoleModel, Name: name, Payload: call})
		}
		return msgs
	}

	for {
		chunk, err := s.Next()
		if err != nil {
			var state *State
			if errors.As(err, &state) {
				if state.Status() == StatusDone {
					return build(), state.Usage(), nil
				}
				return build(), state.Usage(), err
			}
			return nil, Usage{}, err
		}
		if chunk == nil {
			continue
		}
		if chunk.Name != "" {
			name = chunk.Name
		}
		switch p := chunk.Part.(type) {
		case Text:
			text.WriteString(string(p))
		case *Blob:
			blobs = append(blobs, p)
		}
		if chunk.ToolCall != nil {
			calls = append(calls, chunk.ToolCall)
		}
	}
}
