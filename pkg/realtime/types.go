package realtime

import (
	"encoding/json"

	"github.com/parleyhq/parley/pkg/jsonx"
)

// Models with realtime support.
const (
	// ModelGPTRealtime is the GA realtime model.
	ModelGPTRealtime = "gpt-realtime"
	// ModelGPT4oRealtimePreview is the GPT-4o realtime preview model.
	ModelGPT4oRealtimePreview = "gpt-4o-realtime-preview"
	// ModelGPT4oMiniRealtimePreview is the GPT-4o mini realtime preview model.
	ModelGPT4oMiniRealtimePreview = "gpt-4o-mini-realtime-preview"
)

// Audio formats.
const (
	// AudioFormatPCM16 is 16-bit little-endian PCM at 24kHz, mono.
	AudioFormatPCM16 = "pcm16"
	// AudioFormatG711ULaw is G.711 u-law at 8kHz.
	AudioFormatG711ULaw = "g711_ulaw"
	// AudioFormatG711ALaw is G.711 A-law at 8kHz.
	AudioFormatG711ALaw = "g711_alaw"
)

// Voices for audio output.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceBallad  = "ballad"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// Turn detection modes.
const (
	// VADServer enables server-side voice activity detection.
	VADServer = "server_vad"
	// VADSemantic enables semantic voice activity detection.
	VADSemantic = "semantic_vad"
)

// Modalities.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// Tool choice options. A specific function is forced with
// {"type": "function", "name": ...}.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation item types.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
)

// Content part types.
const (
	PartInputText     = "input_text"
	PartInputAudio    = "input_audio"
	PartItemReference = "item_reference"
	PartText          = "text"
	PartAudio         = "audio"
)

// Response statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
)

// ConnectConfig selects the model for a new connection.
type ConnectConfig struct {
	// Model is the realtime model ID. Default: gpt-4o-realtime-preview.
	Model string `json:"model,omitzero"`

	// Voice is used when minting the ephemeral WebRTC token.
	// Default: alloy.
	Voice string `json:"voice,omitzero"`
}

// SessionConfig updates session parameters via session.update.
type SessionConfig struct {
	// Modalities the model may respond with. Default: ["text", "audio"].
	Modalities []string `json:"modalities,omitzero"`

	// Instructions is the system prompt.
	Instructions string `json:"instructions,omitzero"`

	// Voice for audio output.
	Voice string `json:"voice,omitzero"`

	// InputAudioFormat. Default: pcm16.
	InputAudioFormat string `json:"input_audio_format,omitzero"`

	// OutputAudioFormat. Default: pcm16.
	OutputAudioFormat string `json:"output_audio_format,omitzero"`

	// InputAudioTranscription enables transcription of user audio.
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection configures voice activity detection. nil keeps the
	// server default; to disable VAD set TurnDetectionDisabled.
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`

	// TurnDetectionDisabled marshals "turn_detection": null, switching
	// the session to manual commit mode.
	TurnDetectionDisabled bool `json:"-"`

	// Tools the model may call.
	Tools []Tool `json:"tools,omitzero"`

	// ToolChoice: a string ("auto", "none", "required") or an object
	// forcing one function.
	ToolChoice any `json:"tool_choice,omitzero"`

	// Temperature for sampling (0.6-1.2). Default: 0.8.
	Temperature *float64 `json:"temperature,omitzero"`

	// MaxResponseOutputTokens limits each response's length.
	MaxResponseOutputTokens *int `json:"max_response_output_tokens,omitzero"`
}

// MarshalJSON injects an explicit "turn_detection": null when VAD is
// disabled; omitting the key would keep the server's current setting.
func (c SessionConfig) MarshalJSON() ([]byte, error) {
	type alias SessionConfig
	b, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	if !c.TurnDetectionDisabled {
		return b, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	m["turn_detection"] = json.RawMessage("null")
	return json.Marshal(m)
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	// Model is the transcription model. Default: whisper-1.
	Model string `json:"model,omitzero"`

	// Language hint as an ISO-639-1 code.
	Language string `json:"language,omitzero"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	// Type is "server_vad" or "semantic_vad".
	Type string `json:"type,omitzero"`

	// Threshold is the detection sensitivity (0.0-1.0). Default: 0.5.
	Threshold float64 `json:"threshold,omitzero"`

	// PrefixPaddingMs of audio kept before detected speech. Default: 300.
	PrefixPaddingMs int `json:"prefix_padding_ms,omitzero"`

	// SilenceDurationMs of silence that ends a turn. Default: 500.
	SilenceDurationMs int `json:"silence_duration_ms,omitzero"`

	// CreateResponse triggers a response automatically at end of speech.
	// Default: true.
	CreateResponse *bool `json:"create_response,omitzero"`

	// InterruptResponse cancels the in-flight response when the user
	// starts speaking. Default: true.
	InterruptResponse *bool `json:"interrupt_response,omitzero"`

	// Eagerness tunes semantic VAD: "low", "medium" or "high".
	Eagerness string `json:"eagerness,omitzero"`
}

// Tool declares a function the model may call.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`

	Name        string `json:"name"`
	Description string `json:"description,omitzero"`

	// Parameters is the JSON Schema of the arguments.
	Parameters map[string]any `json:"parameters,omitzero"`
}

// ResponseOptions overrides session settings for one response.create.
type ResponseOptions struct {
	Modalities        []string `json:"modalities,omitzero"`
	Instructions      string   `json:"instructions,omitzero"`
	Voice             string   `json:"voice,omitzero"`
	OutputAudioFormat string   `json:"output_audio_format,omitzero"`
	Tools             []Tool   `json:"tools,omitzero"`
	ToolChoice        any      `json:"tool_choice,omitzero"`
	Temperature       *float64 `json:"temperature,omitzero"`
	MaxOutputTokens   *int     `json:"max_output_tokens,omitzero"`

	// Conversation is "auto" (default) or "none" for an out-of-band
	// response that does not join the conversation.
	Conversation string `json:"conversation,omitzero"`

	// Input supplies items directly instead of the conversation state.
	Input []ConversationItem `json:"input,omitzero"`
}

// SessionResource is the server's view of the session.
type SessionResource struct {
	ID                      string               `json:"id,omitzero"`
	Object                  string               `json:"object,omitzero"`
	Model                   string               `json:"model,omitzero"`
	ExpiresAt               int64                `json:"expires_at,omitzero"`
	Modalities              []string             `json:"modalities,omitzero"`
	Instructions            string               `json:"instructions,omitzero"`
	Voice                   string               `json:"voice,omitzero"`
	InputAudioFormat        string               `json:"input_audio_format,omitzero"`
	OutputAudioFormat       string               `json:"output_audio_format,omitzero"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`
	TurnDetection           *TurnDetection       `json:"turn_detection,omitzero"`
	Tools                   []Tool               `json:"tools,omitzero"`
	ToolChoice              any                  `json:"tool_choice,omitzero"`
	Temperature             float64              `json:"temperature,omitzero"`
	MaxResponseOutputTokens any                  `json:"max_response_output_tokens,omitzero"`
}

// ConversationResource identifies the conversation.
type ConversationResource struct {
	ID     string `json:"id,omitzero"`
	Object string `json:"object,omitzero"`
}

// ConversationItem is one conversation entry: a message, a function call
// or a function call output.
type ConversationItem struct {
	ID      string        `json:"id,omitzero"`
	Object  string        `json:"object,omitzero"`
	Type    string        `json:"type,omitzero"`
	Status  string        `json:"status,omitzero"`
	Role    string        `json:"role,omitzero"`
	Content []ContentPart `json:"content,omitzero"`

	// CallID / Name / Arguments / Output describe function-call items.
	CallID    string `json:"call_id,omitzero"`
	Name      string `json:"name,omitzero"`
	Arguments string `json:"arguments,omitzero"`
	Output    string `json:"output,omitzero"`
}

// ContentPart is one part of a message's content.
type ContentPart struct {
	Type       string            `json:"type,omitzero"`
	Text       string            `json:"text,omitzero"`
	Audio      jsonx.Base64Bytes `json:"audio,omitzero"`
	Transcript string            `json:"transcript,omitzero"`
	ID         string            `json:"id,omitzero"` // item_reference

	// Annotations carry citation entries attached to text parts.
	Annotations []Annotation `json:"annotations,omitzero"`
}

// Annotation is a citation entry on a text content part.
type Annotation struct {
	Type       string `json:"type,omitzero"`
	Title      string `json:"title,omitzero"`
	URL        string `json:"url,omitzero"`
	StartIndex int    `json:"start_index,omitzero"`
	EndIndex   int    `json:"end_index,omitzero"`
}

// Response is the server's record of one model response.
type Response struct {
	ID            string             `json:"id,omitzero"`
	Object        string             `json:"object,omitzero"`
	Status        string             `json:"status,omitzero"`
	StatusDetails *StatusDetails     `json:"status_details,omitzero"`
	Output        []ConversationItem `json:"output,omitzero"`
	Usage         *Usage             `json:"usage,omitzero"`
}

// StatusDetails explains failed, cancelled and incomplete responses.
type StatusDetails struct {
	Type   string `json:"type,omitzero"`
	Reason string `json:"reason,omitzero"`
	Error  *Error `json:"error,omitzero"`
}

// Usage is the token accounting of one response.
type Usage struct {
	TotalTokens        int           `json:"total_tokens,omitzero"`
	InputTokens        int           `json:"input_tokens,omitzero"`
	OutputTokens       int           `json:"output_tokens,omitzero"`
	InputTokenDetails  *TokenDetails `json:"input_token_details,omitzero"`
	OutputTokenDetails *TokenDetails `json:"output_token_details,omitzero"`
}

// TokenDetails breaks token counts down by kind.
type TokenDetails struct {
	CachedTokens int `json:"cached_tokens,omitzero"`
	TextTokens   int `json:"text_tokens,omitzero"`
	AudioTokens  int `json:"audio_tokens,omitzero"`
}
