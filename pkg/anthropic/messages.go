package anthropic

import (
	"context"
	"encoding/json"
	"iter"
)

const messagesPath = "/v1/messages"

// Messages creates a message (blocking).
func (c *Client) Messages(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	var resp MessagesResponse
	if err := c.http.request(ctx, "POST", messagesPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MessagesStream creates a streaming message.
//
// Returns an iterator over raw stream events. The connection is closed
// when iteration completes or breaks. An in-band error event yields a
// *Error; message_stop ends the iteration.
func (c *Client) MessagesStream(ctx context.Context, req *MessagesRequest) iter.Seq2[*StreamEvent, error] {
	return func(yield func(*StreamEvent, error) bool) {
		streamReq := *req
		streamReq.Stream = true

		resp, err := c.http.requestStream(ctx, "POST", messagesPath, &streamReq)
		if err != nil {
			yield(nil, err)
			return
		}

		reader := newSSEReader(resp)
		defer reader.close()

		for {
			name, data, done, err := reader.readEvent()
			if err != nil {
				yield(nil, err)
				return
			}
			if done {
				return
			}

			var event StreamEvent
			if err := json.Unmarshal(data, &event); err != nil {
				yield(nil, err)
				return
			}
			if event.Type == "" {
				event.Type = name
			}

			switch event.Type {
			case EventPing:
				continue
			case EventError:
				e := event.Error
				if e == nil {
					e = &Error{Type: ErrTypeAPI, Message: "stream error"}
				}
				yield(nil, e)
				return
			}

			if !yield(&event, nil) {
				return
			}
			if event.Type == EventMessageStop {
				return
			}
		}
	}
}
