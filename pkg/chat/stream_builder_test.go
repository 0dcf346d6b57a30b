package chat

import (
	"context"
	"errors"
	"testing"
)

func drainStream(t *testing.T, s Stream) ([]*MessageChunk, error) {
	t.Helper()

	var chunks []*MessageChunk
	for {
		chunk, err := s.Next()
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}
}

func TestStatus_Constants(t *testing.T) {
	if StatusOK != 0 {
		t.Errorf("StatusOK = %d, want 0", StatusOK)
	}
	if StatusDone != 1 {
		t.Errorf("StatusDone = %d, want 1", StatusDone)
	}
	if StatusTruncated != 2 {
		t.Errorf("StatusTruncated = %d, want 2", StatusTruncated)
	}
	if StatusBlocked != 3 {
		t.Errorf("StatusBlocked = %d, want 3", StatusBlocked)
	}
	if StatusError != 4 {
		t.Errorf("StatusError = %d, want 4", StatusError)
	}
}

func TestStreamBuilder_Done(t *testing.T) {
	mctx := &ModelContext{}
	sb := NewStreamBuilder(mctx, 8)

	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("hello ")})
	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("world")})
	sb.Done(Usage{PromptTokenCount: 3, GeneratedTokenCount: 2})

	chunks, err := drainStream(t, sb.Stream())

	var state *State
	if !errors.As(err, &state) {
		t.Fatalf("err = %v, want *State", err)
	}
	if state.Status() != StatusDone {
		t.Errorf("Status = %d, want StatusDone", state.Status())
	}
	if !errors.Is(err, ErrDone) {
		t.Errorf("err should unwrap to ErrDone, got %v", err)
	}
	if state.Usage().GeneratedTokenCount != 2 {
		t.Errorf("GeneratedTokenCount = %d, want 2", state.Usage().GeneratedTokenCount)
	}

	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].Part.(Text) != "hello " {
		t.Errorf("chunks[0] = %q", chunks[0].Part)
	}
	if chunks[1].Part.(Text) != "world" {
		t.Errorf("chunks[1] = %q", chunks[1].Part)
	}
}

func TestStreamBuilder_Truncated(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)

	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("partial")})
	sb.Truncated(Usage{GeneratedTokenCount: 1})

	_, err := drainStream(t, sb.Stream())

	var state *State
	if !errors.As(err, &state) {
		t.Fatalf("err = %v, want *State", err)
	}
	if state.Status() != StatusTruncated {
		t.Errorf("Status = %d, want StatusTruncated", state.Status())
	}
}

func TestStreamBuilder_Blocked(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)
	sb.Blocked(Usage{}, "safety")

	_, err := drainStream(t, sb.Stream())

	var state *State
	if !errors.As(err, &state) {
		t.Fatalf("err = %v, want *State", err)
	}
	if state.Status() != StatusBlocked {
		t.Errorf("Status = %d, want StatusBlocked", state.Status())
	}
}

func TestStreamBuilder_Unexpected(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)
	sb.Unexpected(Usage{}, errors.New("weird_finish_reason"))

	_, err := drainStream(t, sb.Stream())

	var state *State
	if !errors.As(err, &state) {
		t.Fatalf("err = %v, want *State", err)
	}
	if state.Status() != StatusError {
		t.Errorf("Status = %d, want StatusError", state.Status())
	}
}

func TestStreamBuilder_Add_WithToolCall(t *testing.T) {
	tool, _ := NewFuncTool[TestArg]("get_weather", "Get the weather")

	mctx := &ModelContext{}
	mctx.AddTool(tool)

	sb := NewStreamBuilder(mctx, 4)
	sb.Add(&MessageChunk{
		Role: RoleModel,
		ToolCall: &ToolCall{
			ID: "call_1",
			FuncCall: &FuncCall{
				Name:      "get_weather",
				Arguments: `{"name": "SF", "value": 1}`,
			},
		},
	})
	sb.Done(Usage{})

	chunks, _ := drainStream(t, sb.Stream())
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}

	// The builder binds the registered tool to the call.
	if chunks[0].ToolCall.FuncCall.tool != tool {
		t.Error("tool should be bound to the streamed call")
	}
}

func TestStreamBuilder_Add_UnknownTool(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)
	sb.Add(&MessageChunk{
		Role: RoleModel,
		ToolCall: &ToolCall{
			ID:       "call_1",
			FuncCall: &FuncCall{Name: "no_such_tool"},
		},
	})
	sb.Done(Usage{})

	chunks, _ := drainStream(t, sb.Stream())
	if len(chunks) != 0 {
		t.Errorf("unknown tool call should be dropped, got %d chunks", len(chunks))
	}
}

func TestStreamBuilder_Abort(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)

	cause := errors.New("connection reset")
	sb.Abort(cause)

	_, err := drainStream(t, sb.Stream())
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want %v", err, cause)
	}
}

func TestStream_Close(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)
	s := sb.Stream()

	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Writes after the consumer closes are dropped, not panics.
	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("late")})
	sb.Done(Usage{})
}

func TestCollect_TextAndToolCall(t *testing.T) {
	tool, _ := NewFuncTool[TestArg]("lookup", "Lookup")

	mctx := &ModelContext{}
	mctx.AddTool(tool)

	sb := NewStreamBuilder(mctx, 8)
	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("thinking... ")})
	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("done")})
	sb.Add(&MessageChunk{
		Role: RoleModel,
		ToolCall: &ToolCall{
			ID:       "call_9",
			FuncCall: &FuncCall{Name: "lookup", Arguments: `{}`},
		},
	})
	sb.Done(Usage{PromptTokenCount: 7, GeneratedTokenCount: 11})

	msgs, usage, err := Collect(sb.Stream())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}

	if usage.PromptTokenCount != 7 || usage.GeneratedTokenCount != 11 {
		t.Errorf("usage = %+v", usage)
	}

	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}

	contents, ok := msgs[0].Payload.(Contents)
	if !ok {
		t.Fatalf("msgs[0].Payload type = %T, want Contents", msgs[0].Payload)
	}
	if contents[0].(Text) != "thinking... done" {
		t.Errorf("text = %q", contents[0])
	}

	call, ok := msgs[1].Payload.(*ToolCall)
	if !ok {
		t.Fatalf("msgs[1].Payload type = %T, want *ToolCall", msgs[1].Payload)
	}
	if call.ID != "call_9" {
		t.Errorf("call.ID = %q", call.ID)
	}
}

func TestCollect_Truncated(t *testing.T) {
	sb := NewStreamBuilder(&ModelContext{}, 4)
	sb.Add(&MessageChunk{Role: RoleModel, Part: Text("cut off")})
	sb.Truncated(Usage{GeneratedTokenCount: 100})

	msgs, usage, err := Collect(sb.Stream())
	if err == nil {
		t.Fatal("Collect should return the truncation error")
	}

	var state *State
	if !errors.As(err, &state) || state.Status() != StatusTruncated {
		t.Fatalf("err = %v, want truncated *State", err)
	}

	// Partial content is still returned alongside the error.
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	if usage.GeneratedTokenCount != 100 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestGenerateText(t *testing.T) {
	gen := &scriptedGenerator{
		rounds: [][]*MessageChunk{
			{{Role: RoleModel, Part: Text("four")}},
		},
	}

	mctx := &ModelContext{}
	mctx.UserText("", "What is 2+2?")

	reply, usage, err := GenerateText(context.Background(), gen, mctx)
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	if reply != "four" {
		t.Errorf("reply = %q, want %q", reply, "four")
	}
	if usage.PromptTokenCount == 0 {
		t.Error("usage should carry prompt tokens")
	}
}
