package voice

import (
	"context"
	"fmt"
	"io"

	"github.com/parleyhq/parley/pkg/trie"
)

// DefaultMux is the default mux used by the package-level helpers.
var DefaultMux = NewMux()

// HandleTTS registers a synthesizer with the default mux.
func HandleTTS(pattern string, s Synthesizer) error {
	return DefaultMux.HandleTTS(pattern, s)
}

// HandleSTT registers a transcriber with the default mux.
func HandleSTT(pattern string, t Transcriber) error {
	return DefaultMux.HandleSTT(pattern, t)
}

// Synthesize synthesizes speech via the default mux.
func Synthesize(ctx context.Context, name string, req *SynthesisRequest) (io.ReadCloser, error) {
	return DefaultMux.Synthesize(ctx, name, req)
}

// SynthesizeStream streams synthesized speech via the default mux.
func SynthesizeStream(ctx context.Context, name string, req *SynthesisRequest) (*Stream, error) {
	return DefaultMux.Stream(ctx, name, req)
}

// Transcribe transcribes audio via the default mux.
func Transcribe(ctx context.Context, name string, audio io.Reader, opts *TranscribeOptions) (string, error) {
	return DefaultMux.Transcribe(ctx, name, audio, opts)
}

// Mux routes synthesis and transcription requests to adapters by
// "provider/name". Registration accepts trie wildcards, so one
// adapter may serve a whole provider ("elevenlabs/#").
type Mux struct {
	tts *trie.Trie[Synthesizer]
	stt *trie.Trie[Transcriber]
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{
		tts: trie.New[Synthesizer](),
		stt: trie.New[Transcriber](),
	}
}

// HandleTTS registers a synthesizer under pattern.
func (m *Mux) HandleTTS(pattern string, s Synthesizer) error {
	return m.tts.Set(pattern, s)
}

// HandleTTSFunc registers a synthesis function under pattern.
func (m *Mux) HandleTTSFunc(pattern string, fn SynthesizeFunc) error {
	return m.tts.Set(pattern, fn)
}

// HandleSTT registers a transcriber under pattern.
func (m *Mux) HandleSTT(pattern string, t Transcriber) error {
	return m.stt.Set(pattern, t)
}

// HandleSTTFunc registers a transcription function under pattern.
func (m *Mux) HandleSTTFunc(pattern string, fn TranscribeFunc) error {
	return m.stt.Set(pattern, fn)
}

// Synthesize routes a one-shot synthesis request.
func (m *Mux) Synthesize(ctx context.Context, name string, req *SynthesisRequest) (io.ReadCloser, error) {
	syn, ok := m.tts.Get(name)
	if !ok || syn == nil {
		return nil, fmt.Errorf("voice: synthesizer not found for %s", name)
	}
	return syn.Synthesize(ctx, req)
}

// Stream routes a streaming synthesis request. Adapters without native
// streaming are wrapped: their one-shot output is chunked into frames.
func (m *Mux) Stream(ctx context.Context, name string, req *SynthesisRequest) (*Stream, error) {
	syn, ok := m.tts.Get(name)
	if !ok || syn == nil {
		return nil, fmt.Errorf("voice: synthesizer not found for %s", name)
	}
	if ss, ok := syn.(StreamSynthesizer); ok {
		return ss.Stream(ctx, req)
	}
	rc, err := syn.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	return streamFromReader(rc), nil
}

// Transcribe routes a transcription request.
func (m *Mux) Transcribe(ctx context.Context, name string, audio io.Reader, opts *TranscribeOptions) (string, error) {
	t, ok := m.stt.Get(name)
	if !ok || t == nil {
		return "", fmt.Errorf("voice: transcriber not found for %s", name)
	}
	return t.Transcribe(ctx, audio, opts)
}

// LookupTTS returns the synthesizer routed for name, if any.
func (m *Mux) LookupTTS(name string) (Synthesizer, bool) { return m.tts.Get(name) }

// LookupSTT returns the transcriber routed for name, if any.
func (m *Mux) LookupSTT(name string) (Transcriber, bool) { return m.stt.Get(name) }

// TTSPatterns lists registered synthesizer patterns.
func (m *Mux) TTSPatterns() []string { return m.tts.Patterns() }

// STTPatterns lists registered transcriber patterns.
func (m *Mux) STTPatterns() []string { return m.stt.Patterns() }
