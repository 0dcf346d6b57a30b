package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Client event types (sent from client to server).
const (
	EventSessionUpdate = "session.update"

	EventInputAudioBufferAppend = "input_audio_buffer.append"
	EventInputAudioBufferCommit = "input_audio_buffer.commit"
	EventInputAudioBufferClear  = "input_audio_buffer.clear"

	EventConversationItemCreate   = "conversation.item.create"
	EventConversationItemTruncate = "conversation.item.truncate"
	EventConversationItemDelete   = "conversation.item.delete"

	EventResponseCreate = "response.create"
	EventResponseCancel = "response.cancel"
)

// Server event types (sent from server to client).
const (
	EventError = "error"

	EventSessionCreated = "session.created"
	EventSessionUpdated = "session.updated"

	EventConversationCreated                = "conversation.created"
	EventConversationItemCreated            = "conversation.item.created"
	EventConversationItemTranscriptDone     = "conversation.item.input_audio_transcription.completed"
	EventConversationItemTranscriptFailed   = "conversation.item.input_audio_transcription.failed"
	EventConversationItemTruncated          = "conversation.item.truncated"
	EventConversationItemDeleted            = "conversation.item.deleted"

	EventInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventInputAudioBufferCleared       = "input_audio_buffer.cleared"
	EventInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventResponseCreated          = "response.created"
	EventResponseDone             = "response.done"
	EventResponseOutputItemAdded  = "response.output_item.added"
	EventResponseOutputItemDone   = "response.output_item.done"
	EventResponseContentPartAdded = "response.content_part.added"
	EventResponseContentPartDone  = "response.content_part.done"

	EventResponseTextDelta = "response.text.delta"
	EventResponseTextDone  = "response.text.done"

	EventResponseAudioDelta = "response.audio.delta"
	EventResponseAudioDone  = "response.audio.done"

	EventResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventResponseAudioTranscriptDone  = "response.audio_transcript.done"

	EventResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	EventResponseFunctionCallArgumentsDone  = "response.function_call_arguments.done"

	EventRateLimitsUpdated = "rate_limits.updated"
)

// ServerEvent is one flat decoded server event. Only the fields relevant
// to the event type are populated; Raw always carries the full message,
// so unknown event types pass through undecoded.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	// Session is set for session.created / session.updated.
	Session *SessionResource `json:"session,omitzero"`

	// Conversation is set for conversation.created.
	Conversation *ConversationResource `json:"conversation,omitzero"`

	// Item is set for conversation.item.* and response.output_item.*.
	Item *ConversationItem `json:"item,omitzero"`

	// PreviousItemID is set for input_audio_buffer.committed.
	PreviousItemID string `json:"previous_item_id,omitzero"`

	// ItemID identifies the item various events refer to.
	ItemID string `json:"item_id,omitzero"`

	// AudioStartMs / AudioEndMs bound detected speech and truncations.
	AudioStartMs int `json:"audio_start_ms,omitzero"`
	AudioEndMs   int `json:"audio_end_ms,omitzero"`

	// Transcript carries completed transcription text.
	Transcript string `json:"transcript,omitzero"`

	// ContentIndex is the index of the content part within an item.
	ContentIndex int `json:"content_index,omitzero"`

	// Response is set for response.created / response.done.
	Response *Response `json:"response,omitzero"`

	ResponseID  string `json:"response_id,omitzero"`
	OutputIndex int    `json:"output_index,omitzero"`

	// Part is set for response.content_part.* events.
	Part *ContentPart `json:"part,omitzero"`

	// Delta carries incremental text, transcript or argument payloads.
	// For response.audio.delta it holds base64 audio; the decoded bytes
	// are in Audio.
	Delta string `json:"delta,omitzero"`

	// Audio is the decoded PCM payload of a response.audio.delta event.
	Audio []byte `json:"-"`

	// CallID / Name / Arguments describe function-call events.
	CallID    string `json:"call_id,omitzero"`
	Name      string `json:"name,omitzero"`
	Arguments string `json:"arguments,omitzero"`

	// RateLimits is set for rate_limits.updated.
	RateLimits []RateLimit `json:"rate_limits,omitzero"`

	// Error is set for "error" events and transcription failures.
	Error *Error `json:"error,omitzero"`

	// Raw is the original JSON message.
	Raw []byte `json:"-"`
}

// Err returns the decoded protocol error for "error" events, nil
// otherwise.
func (e *ServerEvent) Err() *Error {
	if e.Type != EventError {
		return nil
	}
	if e.Error != nil {
		return e.Error
	}
	return &Error{Message: "unknown error"}
}

// RateLimit reports remaining quota for one limit bucket.
type RateLimit struct {
	Name         string  `json:"name"`
	Limit        int     `json:"limit"`
	Remaining    int     `json:"remaining"`
	ResetSeconds float64 `json:"reset_seconds"`
}

// parseServerEvent decodes a wire message. Audio deltas carry base64 in
// the delta field; the decoded bytes are attached to the event.
func parseServerEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("realtime: parse event: %w", err)
	}
	event.Raw = message

	if event.Type == EventResponseAudioDelta && event.Delta != "" {
		if decoded, err := base64.StdEncoding.DecodeString(event.Delta); err == nil {
			event.Audio = decoded
		}
	}
	return &event, nil
}

// clientEvent is the envelope for most events sent to the server.
type clientEvent struct {
	EventID  string            `json:"event_id"`
	Type     string            `json:"type"`
	Session  *SessionConfig    `json:"session,omitzero"`
	Audio    string            `json:"audio,omitzero"`
	Item     *ConversationItem `json:"item,omitzero"`
	ItemID   string            `json:"item_id,omitzero"`
	Response *ResponseOptions  `json:"response,omitzero"`
}

// truncateEvent keeps content_index and audio_end_ms explicit; zero is a
// meaningful value for both.
type truncateEvent struct {
	EventID      string `json:"event_id"`
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// eventSender implements the write side of a Session over any transport
// that can deliver one JSON client event.
type eventSender struct {
	write func(event any) error
}

// UpdateSession updates the session configuration.
func (s *eventSender) UpdateSession(config *SessionConfig) error {
	return s.write(&clientEvent{
		EventID: newEventID(),
		Type:    EventSessionUpdate,
		Session: config,
	})
}

// AppendAudio appends PCM audio to the input buffer. The expected format
// is 24kHz 16-bit little-endian mono PCM; it is base64 encoded before
// sending.
func (s *eventSender) AppendAudio(audio []byte) error {
	return s.AppendAudioBase64(base64.StdEncoding.EncodeToString(audio))
}

// AppendAudioBase64 appends already-encoded audio to the input buffer.
func (s *eventSender) AppendAudioBase64(audioBase64 string) error {
	return s.write(&clientEvent{
		EventID: newEventID(),
		Type:    EventInputAudioBufferAppend,
		Audio:   audioBase64,
	})
}

// CommitInput commits the input audio buffer as a user message. In
// server VAD mode the server commits automatically.
func (s *eventSender) CommitInput() error {
	return s.write(&clientEvent{EventID: newEventID(), Type: EventInputAudioBufferCommit})
}

// ClearInput discards buffered input audio without creating a message.
func (s *eventSender) ClearInput() error {
	return s.write(&clientEvent{EventID: newEventID(), Type: EventInputAudioBufferClear})
}

// AddUserText adds a user text message to the conversation.
func (s *eventSender) AddUserText(text string) error {
	return s.createItem(&ConversationItem{
		Type:    ItemTypeMessage,
		Role:    RoleUser,
		Content: []ContentPart{{Type: PartInputText, Text: text}},
	})
}

// AddUserAudio adds a user audio message. The audio is raw PCM bytes;
// transcript is optional.
func (s *eventSender) AddUserAudio(audio []byte, transcript string) error {
	return s.createItem(&ConversationItem{
		Type:    ItemTypeMessage,
		Role:    RoleUser,
		Content: []ContentPart{{Type: PartInputAudio, Audio: audio, Transcript: transcript}},
	})
}

// AddAssistantText adds an assistant text message to the conversation.
func (s *eventSender) AddAssistantText(text string) error {
	return s.createItem(&ConversationItem{
		Type:    ItemTypeMessage,
		Role:    RoleAssistant,
		Content: []ContentPart{{Type: PartText, Text: text}},
	})
}

// AddFunctionCallOutput adds the result of a function call.
func (s *eventSender) AddFunctionCallOutput(callID, output string) error {
	return s.createItem(&ConversationItem{
		Type:   ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: output,
	})
}

func (s *eventSender) createItem(item *ConversationItem) error {
	return s.write(&clientEvent{
		EventID: newEventID(),
		Type:    EventConversationItemCreate,
		Item:    item,
	})
}

// TruncateItem truncates previously sent assistant audio at audioEndMs.
func (s *eventSender) TruncateItem(itemID string, contentIndex, audioEndMs int) error {
	return s.write(&truncateEvent{
		EventID:      newEventID(),
		Type:         EventConversationItemTruncate,
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMs:   audioEndMs,
	})
}

// DeleteItem removes a conversation item.
func (s *eventSender) DeleteItem(itemID string) error {
	return s.write(&clientEvent{
		EventID: newEventID(),
		Type:    EventConversationItemDelete,
		ItemID:  itemID,
	})
}

// CreateResponse asks the model to generate a response. opts may be nil.
func (s *eventSender) CreateResponse(opts *ResponseOptions) error {
	return s.write(&clientEvent{
		EventID:  newEventID(),
		Type:     EventResponseCreate,
		Response: opts,
	})
}

// CancelResponse cancels the in-progress response, if any.
func (s *eventSender) CancelResponse() error {
	return s.write(&clientEvent{EventID: newEventID(), Type: EventResponseCancel})
}

// SendRaw sends an arbitrary JSON event.
func (s *eventSender) SendRaw(event map[string]any) error {
	return s.write(event)
}
