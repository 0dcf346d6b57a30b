package realtime

import "iter"

// Session is one live realtime connection. Both transports satisfy it.
//
// The write-side methods construct and send single protocol events; they
// return as soon as the event is handed to the transport. Server
// reactions arrive through Events.
type Session interface {
	// UpdateSession applies a session configuration. Call after the
	// session.created event has been observed.
	UpdateSession(config *SessionConfig) error

	// AppendAudio appends 24kHz 16-bit mono PCM to the input buffer.
	AppendAudio(audio []byte) error

	// AppendAudioBase64 appends pre-encoded audio to the input buffer.
	AppendAudioBase64(audioBase64 string) error

	// CommitInput turns the buffered input audio into a user message.
	CommitInput() error

	// ClearInput drops the buffered input audio.
	ClearInput() error

	// AddUserText adds a user text message to the conversation.
	AddUserText(text string) error

	// AddUserAudio adds a user audio message (raw PCM, optional
	// transcript).
	AddUserAudio(audio []byte, transcript string) error

	// AddAssistantText adds an assistant message to the conversation.
	AddAssistantText(text string) error

	// AddFunctionCallOutput reports a function call result.
	AddFunctionCallOutput(callID, output string) error

	// TruncateItem truncates played assistant audio at audioEndMs.
	TruncateItem(itemID string, contentIndex, audioEndMs int) error

	// DeleteItem removes a conversation item.
	DeleteItem(itemID string) error

	// CreateResponse asks the model to respond. nil opts for defaults.
	CreateResponse(opts *ResponseOptions) error

	// CancelResponse cancels the in-progress response.
	CancelResponse() error

	// Events iterates server events until the session closes or the
	// transport fails; a transport failure is yielded as the final
	// error. Protocol "error" events flow through as ordinary events.
	Events() iter.Seq2[*ServerEvent, error]

	// SendRaw sends an arbitrary JSON event.
	SendRaw(event map[string]any) error

	// SessionID returns the server-assigned session ID, or "" before
	// session.created has been observed.
	SessionID() string

	// Close tears the connection down. Safe to call more than once.
	Close() error
}
