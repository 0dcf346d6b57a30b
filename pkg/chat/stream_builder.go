package chat

import (
	"fmt"
	"log/slog"

	"github.com/parleyhq/parley/pkg/buffer"
)

type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusTruncated
	StatusBlocked
	StatusError
)

// StreamEvent is the internal unit a provider pushes into a
// StreamBuilder: either a chunk (StatusOK) or a terminal state.
type StreamEvent struct {
	Chunk   *MessageChunk
	Status  Status
	Usage   Usage
	Refusal string
	Error   error
}

// StreamBuilder assembles a Stream from provider callbacks. The
// producer goroutine pushes chunks with Add and finishes with exactly
// one of Done, Truncated, Blocked, or Unexpected; Abort tears the
// stream down on transport errors.
type StreamBuilder struct {
	rb        *buffer.Buffer[*StreamEvent]
	funcTools map[string]*FuncTool
}

func NewStreamBuilder(mctx *ModelContext, size int) *StreamBuilder {
	sb := &StreamBuilder{
		rb:        buffer.New[*StreamEvent](size),
		funcTools: make(map[string]*FuncTool),
	}
	for _, t := range mctx.Tools {
		sb.funcTools[t.Name] = t
	}
	if t := mctx.Output; t != nil {
		sb.funcTools[t.Name] = t
	}
	return sb
}

func (sb *StreamBuilder) Done(stats Usage) error {
	return sb.finish(&StreamEvent{Status: StatusDone, Usage: stats})
}

func (sb *StreamBuilder) Truncated(stats Usage) error {
	return sb.finish(&StreamEvent{Status: StatusTruncated, Usage: stats})
}

func (sb *StreamBuilder) Blocked(stats Usage, refusal string) error {
	return sb.finish(&StreamEvent{Status: StatusBlocked, Usage: stats, Refusal: refusal})
}

func (sb *StreamBuilder) Unexpected(stats Usage, err error) error {
	return sb.finish(&StreamEvent{Status: StatusError, Usage: stats, Error: err})
}

func (sb *StreamBuilder) finish(evt *StreamEvent) error {
	if err := sb.rb.Put(evt); err != nil {
		return err
	}
	sb.rb.CloseWrite()
	return nil
}

// Add pushes chunks in order, binding tool calls to the tools declared
// in the model context. Calls naming an undeclared tool are dropped.
func (sb *StreamBuilder) Add(evt ...*MessageChunk) error {
	for _, e := range evt {
		if e.ToolCall != nil && e.ToolCall.FuncCall != nil {
			t, ok := sb.funcTools[e.ToolCall.FuncCall.Name]
			if !ok {
				slog.Warn("chat: tool call not found", "name", e.ToolCall.FuncCall.Name)
				continue
			}
			e.ToolCall.FuncCall.tool = t
		}
		if err := sb.rb.Put(&StreamEvent{Chunk: e}); err != nil {
			return err
		}
	}
	return nil
}

func (sb *StreamBuilder) Abort(err error) error {
	sb.rb.CloseWithError(err)
	return nil
}

func (sb *StreamBuilder) Stream() Stream {
	return (*streamImpl)(sb)
}

type streamImpl StreamBuilder

func (s *streamImpl) Next() (*MessageChunk, error) {
	evt, err := s.rb.Next()
	if err != nil {
		return nil, err
	}
	switch evt.Status {
	case StatusOK:
		return evt.Chunk, nil
	case StatusDone:
		err = Done(evt.Usage)
	case StatusTruncated:
		err = Truncated(evt.Usage)
	case StatusBlocked:
		err = Blocked(evt.Usage, evt.Refusal)
	case StatusError:
		err = Error(evt.Usage, evt.Error)
	default:
		err = fmt.Errorf("chat: unexpected stream status: %v", evt.Status)
	}
	s.rb.CloseWithError(err)
	return nil, err
}

func (s *streamImpl) Close() error {
	return s.rb.Close()
}

func (s *streamImpl) CloseWithError(err error) error {
	s.rb.CloseWithError(err)
	return nil
}
