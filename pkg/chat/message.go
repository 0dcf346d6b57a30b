package chat

import (
	"context"
	"fmt"
	"slices"
)

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

var (
	_ Payload = (*Contents)(nil)
	_ Payload = (*ToolCall)(nil)
	_ Payload = (*ToolResult)(nil)

	_ Part = (*Blob)(nil)
	_ Part = (*Text)(nil)
)

// MessageChunk is one streamed delta: a content part, a tool call, or
// both role/name metadata.
type MessageChunk struct {
	Role     Role
	Name     string
	Part     Part
	ToolCall *ToolCall
}

func (c *MessageChunk) Clone() *MessageChunk {
	chk := &MessageChunk{
		Role: c.Role,
		Name: c.Name,
	}
	if c.Part != nil {
		chk.Part = c.Part.clone()
	}
	if c.ToolCall != nil {
		t := *c.ToolCall
		chk.ToolCall = &t
	}
	return chk
}

// Message is one complete conversation entry.
type Message struct {
	Role    Role
	Name    string
	Payload Payload
}

// Text returns the concatenated text parts of a contents message, or
// the empty string for other payloads.
func (m *Message) Text() string {
	parts, ok := m.Payload.(Contents)
	if !ok {
		return ""
	}
	var out string
	for _, p := range parts {
		if t, ok := p.(Text); ok {
			out += string(t)
		}
	}
	return out
}

type Role string

func (r Role) String() string {
	return string(r)
}

type Payload interface {
	isPayload()
}

// FuncCall is a model-issued invocation of a named tool with raw JSON
// arguments.
type FuncCall struct {
	Name      string
	Arguments string

	tool *FuncTool
}

func (f *FuncCall) Invoke(ctx context.Context) (any, error) {
	if f.tool == nil {
		return nil, fmt.Errorf("chat: tool not found: name=%s", f.Name)
	}
	if f.tool.Invoke == nil {
		return nil, fmt.Errorf("chat: invoke function not set: name=%s", f.Name)
	}
	return f.tool.Invoke(ctx, f, f.Arguments)
}

type ToolCall struct {
	ID       string
	FuncCall *FuncCall
}

func (*ToolCall) isPayload() {}

func (call *ToolCall) Invoke(ctx context.Context) (any, error) {
	if call.FuncCall == nil {
		return nil, fmt.Errorf("chat: invoke can only be called on a function call: id=%s", call.ID)
	}
	return call.FuncCall.Invoke(ctx)
}

type ToolResult struct {
	ID     string
	Result string
}

func (*ToolResult) isPayload() {}

type Contents []Part

func (Contents) isPayload() {}

type Part interface {
	isPart()
	clone() Part
}

type Blob struct {
	MIMEType string
	Data     []byte
}

func (b *Blob) clone() Part {
	return &Blob{
		MIMEType: b.MIMEType,
		Data:     slices.Clone(b.Data),
	}
}

func (*Blob) isPart() {}

type Text string

func (t Text) clone() Part {
	return t
}

func (Text) isPart() {}
