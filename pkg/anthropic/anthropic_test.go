package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q, want sk-test", got)
		}
		if got := r.Header.Get("anthropic-version"); got != DefaultVersion {
			t.Errorf("anthropic-version = %q, want %q", got, DefaultVersion)
		}
		var req MessagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "claude-test" || req.MaxTokens != 128 {
			t.Errorf("unexpected request: model=%s max_tokens=%d", req.Model, req.MaxTokens)
		}
		json.NewEncoder(w).Encode(&MessagesResponse{
			ID:         "msg_1",
			Type:       "message",
			Role:       RoleAssistant,
			Content:    []ContentBlock{NewTextBlock("Hello "), NewTextBlock("there")},
			StopReason: StopEndTurn,
			Usage:      Usage{InputTokens: 10, OutputTokens: 4},
		})
	}))
	defer srv.Close()

	client := NewClient("sk-test", WithBaseURL(srv.URL), WithRetry(0))
	resp, err := client.Messages(context.Background(), &MessagesRequest{
		Model:     "claude-test",
		MaxTokens: 128,
		Messages:  []InputMessage{NewUserText("hi")},
	})
	if err != nil {
		t.Fatalf("Messages error: %v", err)
	}
	if got := resp.Text(); got != "Hello there" {
		t.Errorf("Text() = %q", got)
	}
	if resp.StopReason != StopEndTurn {
		t.Errorf("StopReason = %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestMessagesToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MessagesRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Name != "get_weather" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}
		json.NewEncoder(w).Encode(&MessagesResponse{
			ID:   "msg_2",
			Role: RoleAssistant,
			Content: []ContentBlock{
				NewTextBlock("Let me check."),
				NewToolUseBlock("toolu_1", "get_weather", json.RawMessage(`{"city":"Porto"}`)),
			},
			StopReason: StopToolUse,
		})
	}))
	defer srv.Close()

	client := NewClient("sk-test", WithBaseURL(srv.URL), WithRetry(0))
	resp, err := client.Messages(context.Background(), &MessagesRequest{
		Model:     "claude-test",
		MaxTokens: 128,
		Messages:  []InputMessage{NewUserText("weather in porto?")},
		Tools: []Tool{{
			Name:        "get_weather",
			InputSchema: json.RawMessage(`{"type":"object"}`),
		}},
	})
	if err != nil {
		t.Fatalf("Messages error: %v", err)
	}
	use, ok := resp.ToolUse()
	if !ok {
		t.Fatal("expected a tool use block")
	}
	if use.Name != "get_weather" || use.ID != "toolu_1" {
		t.Errorf("tool use = %+v", use)
	}
	if string(use.Input) != `{"city":"Porto"}` {
		t.Errorf("input = %s", use.Input)
	}
}

func TestMessagesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	client := NewClient("sk-test", WithBaseURL(srv.URL), WithRetry(0))
	_, err := client.Messages(context.Background(), &MessagesRequest{
		Model:     "claude-test",
		MaxTokens: 16,
		Messages:  []InputMessage{NewUserText("hi")},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if !apiErr.IsRateLimit() {
		t.Errorf("IsRateLimit() = false: %+v", apiErr)
	}
	if !apiErr.Retryable() {
		t.Error("Retryable() = false")
	}
	if apiErr.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d", apiErr.HTTPStatus)
	}
}

func sseWrite(w http.ResponseWriter, event string, data any) {
	b, _ := json.Marshal(data)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}

func TestMessagesStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MessagesRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		sseWrite(w, EventMessageStart, map[string]any{
			"type": EventMessageStart,
			"message": &MessagesResponse{
				ID:    "msg_3",
				Role:  RoleAssistant,
				Usage: Usage{InputTokens: 7},
			},
		})
		sseWrite(w, EventPing, map[string]any{"type": EventPing})
		sseWrite(w, EventContentBlockStart, &StreamEvent{
			Type:         EventContentBlockStart,
			ContentBlock: &ContentBlock{Type: BlockText},
		})
		sseWrite(w, EventContentBlockDelta, &StreamEvent{
			Type:  EventContentBlockDelta,
			Delta: &StreamDelta{Type: DeltaText, Text: "Hel"},
		})
		sseWrite(w, EventContentBlockDelta, &StreamEvent{
			Type:  EventContentBlockDelta,
			Delta: &StreamDelta{Type: DeltaText, Text: "lo"},
		})
		sseWrite(w, EventContentBlockStop, &StreamEvent{Type: EventContentBlockStop})
		sseWrite(w, EventMessageDelta, &StreamEvent{
			Type:  EventMessageDelta,
			Delta: &StreamDelta{StopReason: StopEndTurn},
			Usage: &Usage{OutputTokens: 2},
		})
		sseWrite(w, EventMessageStop, &StreamEvent{Type: EventMessageStop})
	}))
	defer srv.Close()

	client := NewClient("sk-test", WithBaseURL(srv.URL), WithRetry(0))

	var (
		text       string
		stopReason string
		sawStart   bool
		sawStop    bool
		outTokens  int64
	)
	for event, err := range client.MessagesStream(context.Background(), &MessagesRequest{
		Model:     "claude-test",
		MaxTokens: 16,
		Messages:  []InputMessage{NewUserText("hi")},
	}) {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		switch event.Type {
		case EventMessageStart:
			sawStart = true
			if event.Message == nil || event.Message.Usage.InputTokens != 7 {
				t.Errorf("message_start = %+v", event.Message)
			}
		case EventContentBlockDelta:
			text += event.Delta.Text
		case EventMessageDelta:
			stopReason = event.Delta.StopReason
			outTokens = event.Usage.OutputTokens
		case EventMessageStop:
			sawStop = true
		case EventPing:
			t.Error("ping should be filtered out")
		}
	}
	if !sawStart || !sawStop {
		t.Errorf("start=%v stop=%v", sawStart, sawStop)
	}
	if text != "Hello" {
		t.Errorf("text = %q", text)
	}
	if stopReason != StopEndTurn {
		t.Errorf("stop reason = %q", stopReason)
	}
	if outTokens != 2 {
		t.Errorf("output tokens = %d", outTokens)
	}
}

func TestMessagesStreamInBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sseWrite(w, EventMessageStart, map[string]any{
			"type":    EventMessageStart,
			"message": &MessagesResponse{ID: "msg_4", Role: RoleAssistant},
		})
		sseWrite(w, EventError, map[string]any{
			"type":  EventError,
			"error": &Error{Type: ErrTypeOverloaded, Message: "busy"},
		})
	}))
	defer srv.Close()

	client := NewClient("sk-test", WithBaseURL(srv.URL), WithRetry(0))

	var streamErr error
	for _, err := range client.MessagesStream(context.Background(), &MessagesRequest{
		Model:     "claude-test",
		MaxTokens: 16,
		Messages:  []InputMessage{NewUserText("hi")},
	}) {
		if err != nil {
			streamErr = err
			break
		}
	}
	if streamErr == nil {
		t.Fatal("expected an in-band error")
	}
	apiErr, ok := AsError(streamErr)
	if !ok {
		t.Fatalf("expected *Error, got %T", streamErr)
	}
	if !apiErr.IsOverloaded() {
		t.Errorf("IsOverloaded() = false: %+v", apiErr)
	}
}

func TestMessagesStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`)
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL), WithRetry(0))

	var streamErr error
	for _, err := range client.MessagesStream(context.Background(), &MessagesRequest{
		Model:     "claude-test",
		MaxTokens: 16,
		Messages:  []InputMessage{NewUserText("hi")},
	}) {
		streamErr = err
		break
	}
	apiErr, ok := AsError(streamErr)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", streamErr, streamErr)
	}
	if !apiErr.IsAuthentication() {
		t.Errorf("IsAuthentication() = false: %+v", apiErr)
	}
	if apiErr.Retryable() {
		t.Error("auth errors must not be retryable")
	}
}
