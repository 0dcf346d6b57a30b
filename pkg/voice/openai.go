package voice

import (
	"context"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

// OpenAITTS synthesizes speech with the OpenAI audio/speech endpoint.
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
	format string
	speed  float64
}

var _ Synthesizer = (*OpenAITTS)(nil)

// OpenAITTSOption configures an OpenAITTS.
type OpenAITTSOption func(*OpenAITTS)

// WithOpenAITTSModel sets the default model.
func WithOpenAITTSModel(model string) OpenAITTSOption {
	return func(h *OpenAITTS) {
		h.model = model
	}
}

// WithOpenAITTSVoice sets the default voice.
func WithOpenAITTSVoice(voice string) OpenAITTSOption {
	return func(h *OpenAITTS) {
		h.voice = voice
	}
}

// WithOpenAITTSFormat sets the default output format.
func WithOpenAITTSFormat(format string) OpenAITTSOption {
	return func(h *OpenAITTS) {
		h.format = format
	}
}

// WithOpenAITTSSpeed sets the default speed (0.25-4.0).
func WithOpenAITTSSpeed(speed float64) OpenAITTSOption {
	return func(h *OpenAITTS) {
		h.speed = speed
	}
}

// NewOpenAITTS creates an OpenAI speech synthesizer. Defaults: model
// tts-1, voice alloy, 24kHz 16-bit PCM output.
func NewOpenAITTS(client *openai.Client, opts ...OpenAITTSOption) *OpenAITTS {
	h := &OpenAITTS{
		client: client,
		model:  "tts-1",
		voice:  "alloy",
		format: "pcm",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Synthesize implements Synthesizer. The response body streams the
// audio; the caller must close it.
func (h *OpenAITTS) Synthesize(ctx context.Context, req *SynthesisRequest) (io.ReadCloser, error) {
	params := openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(h.model),
		Voice:          openai.AudioSpeechNewParamsVoice(h.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(h.format),
	}
	if req.Model != "" {
		params.Model = openai.SpeechModel(req.Model)
	}
	if req.Voice != "" {
		params.Voice = openai.AudioSpeechNewParamsVoice(req.Voice)
	}
	if req.Format != "" {
		params.ResponseFormat = openai.AudioSpeechNewParamsResponseFormat(req.Format)
	}
	speed := h.speed
	if req.Speed != 0 {
		speed = req.Speed
	}
	if speed != 0 {
		params.Speed = param.NewOpt(speed)
	}
	resp, err := h.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// OpenAISTT transcribes audio with the OpenAI transcription endpoint.
type OpenAISTT struct {
	client *openai.Client
	model  string
}

var _ Transcriber = (*OpenAISTT)(nil)

// OpenAISTTOption configures an OpenAISTT.
type OpenAISTTOption func(*OpenAISTT)

// WithOpenAISTTModel sets the default model.
func WithOpenAISTTModel(model string) OpenAISTTOption {
	return func(h *OpenAISTT) {
		h.model = model
	}
}

// NewOpenAISTT creates an OpenAI transcriber. The default model is
// whisper-1.
func NewOpenAISTT(client *openai.Client, opts ...OpenAISTTOption) *OpenAISTT {
	h := &OpenAISTT{
		client: client,
		model:  "whisper-1",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Transcribe implements Transcriber.
func (h *OpenAISTT) Transcribe(ctx context.Context, audio io.Reader, opts *TranscribeOptions) (string, error) {
	if opts == nil {
		opts = &TranscribeOptions{}
	}
	model := h.model
	if opts.Model != "" {
		model = opts.Model
	}
	filename := opts.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, "application/octet-stream"),
		Model: openai.AudioModel(model),
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}
	if opts.Prompt != "" {
		params.Prompt = param.NewOpt(opts.Prompt)
	}
	tr, err := h.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}
