package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// RunTools drives gen until the model answers with plain content,
// invoking tool calls between rounds. Calls and their results are
// appended to mctx, so the caller keeps the full exchange. Tool
// failures are fed back to the model as {"error": ...} results rather
// than aborting the loop.
func RunTools(ctx context.Context, gen Generator, mctx *ModelContext, maxRounds int) (*Message, Usage, error) {
	var total Usage
	for round := 0; round < maxRounds; round++ {
		s, err := gen.GenerateStream(ctx, mctx)
		if err != nil {
			return nil, total, err
		}
		msgs, usage, err := Collect(s)
		total = total.Add(usage)
		if err != nil {
			return nil, total, err
		}

		var reply *Message
		var calls []*ToolCall
		for _, m := range msgs {
			switch p := m.Payload.(type) {
			case Contents:
				reply = m
			case *ToolCall:
				calls = append(calls, p)
			}
		}
		if len(calls) == 0 {
			if reply == nil {
				return nil, total, errors.New("chat: empty reply")
			}
			return reply, total, nil
		}

		// A reply alongside tool calls is interim commentary; keep it in
		// the transcript so the model sees its own reasoning next round.
		if reply != nil {
			mctx.AddMessage(reply)
		}
		for _, call := range calls {
			mctx.AddToolCall(call)
			mctx.AddToolResult(call.ID, invokeToolCall(ctx, call))
		}
	}
	return nil, total, ErrToolRounds
}

func invokeToolCall(ctx context.Context, call *ToolCall) string {
	res, err := call.Invoke(ctx)
	if err != nil {
		slog.Warn("chat: tool call failed", "name", call.FuncCall.Name, "error", err)
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(b)
	}
	s, err := asJSONString(res)
	if err != nil {
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(b)
	}
	return s
}
