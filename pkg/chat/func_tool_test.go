package chat

import (
	"context"
	"testing"
)

type TestArg struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestNewFuncTool_Basic(t *testing.T) {
	tool, err := NewFuncTool[TestArg]("test_tool", "A test tool")
	if err != nil {
		t.Fatalf("NewFuncTool error: %v", err)
	}

	if tool.Name != "test_tool" {
		t.Errorf("Name = %q, want %q", tool.Name, "test_tool")
	}

	if tool.Description != "A test tool" {
		t.Errorf("Description = %q, want %q", tool.Description, "A test tool")
	}

	if tool.Argument == nil {
		t.Error("Argument should not be nil")
	}
}

func TestNewFuncTool_WithInvokeFunc(t *testing.T) {
	invokeFn := InvokeFunc[TestArg](func(ctx context.Context, call *FuncCall, arg TestArg) (any, error) {
		return map[string]any{
			"received_name":  arg.Name,
			"received_value": arg.Value,
		}, nil
	})

	tool, err := NewFuncTool[TestArg]("test_tool", "A test tool", invokeFn)
	if err != nil {
		t.Fatalf("NewFuncTool error: %v", err)
	}

	call := tool.NewFuncCall(`{"name": "test", "value": 42}`)

	result, err := call.Invoke(context.Background())
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}

	resultMap, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map[string]any", result)
	}

	if resultMap["received_name"] != "test" {
		t.Errorf("received_name = %v, want %q", resultMap["received_name"], "test")
	}

	if resultMap["received_value"] != 42 {
		t.Errorf("received_value = %v, want 42", resultMap["received_value"])
	}
}

func TestFuncTool_NewFuncCall(t *testing.T) {
	tool, _ := NewFuncTool[TestArg]("test_tool", "Test tool")

	call := tool.NewFuncCall(`{"name": "foo", "value": 100}`)

	if call.Name != "test_tool" {
		t.Errorf("FuncCall.Name = %q, want %q", call.Name, "test_tool")
	}

	if call.Arguments != `{"name": "foo", "value": 100}` {
		t.Errorf("FuncCall.Arguments = %q", call.Arguments)
	}

	if call.tool != tool {
		t.Error("FuncCall.tool should reference the parent tool")
	}
}

func TestFuncTool_DefaultInvoke(t *testing.T) {
	// The default invoke function unmarshals and returns the argument.
	tool, _ := NewFuncTool[TestArg]("test_tool", "Test tool")

	call := tool.NewFuncCall(`{"name": "default", "value": 999}`)

	result, err := call.Invoke(context.Background())
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}

	arg, ok := result.(*TestArg)
	if !ok {
		t.Fatalf("result type = %T, want *TestArg", result)
	}

	if arg.Name != "default" || arg.Value != 999 {
		t.Errorf("arg = %+v", arg)
	}
}

func TestFuncCall_Invoke_NoTool(t *testing.T) {
	call := &FuncCall{
		Name:      "orphan_call",
		Arguments: `{}`,
	}

	if _, err := call.Invoke(context.Background()); err == nil {
		t.Error("Invoke should fail when tool is nil")
	}
}

func TestToolCall_Invoke_NilFuncCall(t *testing.T) {
	toolCall := &ToolCall{ID: "call_123"}

	if _, err := toolCall.Invoke(context.Background()); err == nil {
		t.Error("ToolCall.Invoke should fail when FuncCall is nil")
	}
}

func TestFuncTool_InvokeWithMalformedJSON(t *testing.T) {
	invokeFn := InvokeFunc[TestArg](func(ctx context.Context, call *FuncCall, arg TestArg) (any, error) {
		return arg, nil
	})

	tool, _ := NewFuncTool[TestArg]("test_tool", "Test", invokeFn)

	// Trailing comma; the repair pass should handle it.
	call := tool.NewFuncCall(`{"name": "test", "value": 42,}`)

	result, err := call.Invoke(context.Background())
	if err != nil {
		t.Fatalf("Invoke should repair malformed JSON: %v", err)
	}

	arg, ok := result.(TestArg)
	if !ok {
		t.Fatalf("result type = %T, want TestArg", result)
	}

	if arg.Name != "test" {
		t.Errorf("arg.Name = %q, want %q", arg.Name, "test")
	}
}
