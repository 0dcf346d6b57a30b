// Package voice provides text-to-speech and speech-to-text adapters
// behind a name-routed mux. Synthesizers produce PCM audio as one-shot
// readers or live frame streams; transcribers turn recorded audio into
// text.
package voice

import (
	"context"
	"errors"
	"io"

	"github.com/parleyhq/parley/pkg/buffer"
)

// SynthesisRequest describes one synthesis job.
type SynthesisRequest struct {
	// Text to speak.
	Text string

	// Model overrides the adapter's default model, for adapters
	// registered at a provider-level prefix.
	Model string

	// Voice overrides the adapter's default voice.
	Voice string

	// Format is the provider-specific output format. Empty picks the
	// adapter default (raw PCM at the adapter's native rate).
	Format string

	// Speed multiplier. 0 keeps the provider default.
	Speed float64
}

// TranscribeOptions tune a transcription job.
type TranscribeOptions struct {
	// Model overrides the adapter's default model.
	Model string

	// Language hint as an ISO-639-1 code.
	Language string

	// Prompt guides the model's style or supplies vocabulary.
	Prompt string

	// Filename hints the container format of the audio. Default
	// "audio.wav".
	Filename string
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	// Synthesize returns the complete synthesized audio as a reader.
	Synthesize(ctx context.Context, req *SynthesisRequest) (io.ReadCloser, error)
}

// StreamSynthesizer is a Synthesizer that can deliver audio frames as
// they are generated.
type StreamSynthesizer interface {
	Synthesizer

	// Stream starts synthesis and returns a live frame stream.
	Stream(ctx context.Context, req *SynthesisRequest) (*Stream, error)
}

// SynthesizeFunc adapts a function to the Synthesizer interface.
type SynthesizeFunc func(ctx context.Context, req *SynthesisRequest) (io.ReadCloser, error)

// Synthesize implements Synthesizer.
func (f SynthesizeFunc) Synthesize(ctx context.Context, req *SynthesisRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	// Transcribe reads the complete audio and returns its transcript.
	Transcribe(ctx context.Context, audio io.Reader, opts *TranscribeOptions) (string, error)
}

// TranscribeFunc adapts a function to the Transcriber interface.
type TranscribeFunc func(ctx context.Context, audio io.Reader, opts *TranscribeOptions) (string, error)

// Transcribe implements Transcriber.
func (f TranscribeFunc) Transcribe(ctx context.Context, audio io.Reader, opts *TranscribeOptions) (string, error) {
	return f(ctx, audio, opts)
}

// Stream is a live audio stream: frames arrive as the provider
// generates them. It reads as a byte stream too; Read crosses frame
// boundaries and returns io.EOF when synthesis completes.
type Stream struct {
	frames  *buffer.Buffer[[]byte]
	pending []byte
}

func newStream(capacity int) *Stream {
	return &Stream{frames: buffer.New[[]byte](capacity)}
}

// Next returns the next audio frame. io.EOF marks normal completion;
// any other error means synthesis failed.
func (s *Stream) Next() ([]byte, error) {
	frame, err := s.frames.Next()
	if errors.Is(err, buffer.ErrDone) {
		return nil, io.EOF
	}
	return frame, err
}

// Read fills p from the frame stream.
func (s *Stream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		frame, err := s.Next()
		if err != nil {
			return 0, err
		}
		s.pending = frame
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close abandons the stream. Pending producers unblock.
func (s *Stream) Close() error {
	s.frames.CloseWithError(io.ErrClosedPipe)
	return nil
}

func (s *Stream) put(frame []byte) error { return s.frames.Put(frame) }
func (s *Stream) closeWrite()            { s.frames.CloseWrite() }
func (s *Stream) fail(err error)         { s.frames.CloseWithError(err) }

// Collect drains a stream into one buffer.
func Collect(s *Stream) ([]byte, error) {
	var audio []byte
	for {
		frame, err := s.Next()
		if err == io.EOF {
			return audio, nil
		}
		if err != nil {
			return audio, err
		}
		audio = append(audio, frame...)
	}
}

// streamFromReader adapts a one-shot audio reader to a Stream.
func streamFromReader(rc io.ReadCloser) *Stream {
	s := newStream(16)
	go func() {
		defer rc.Close()
		buf := make([]byte, 4096)
		for {
			n, err := rc.Read(buf)
			if n > 0 {
				frame := make([]byte, n)
				copy(frame, buf[:n])
				if s.put(frame) != nil {
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					s.closeWrite()
				} else {
					s.fail(err)
				}
				return
			}
		}
	}()
	return s
}
