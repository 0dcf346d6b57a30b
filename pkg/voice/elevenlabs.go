package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io"
	elevenLabsWSURL   = "wss://api.elevenlabs.io"

	// Rachel, the ElevenLabs default voice.
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsTTS synthesizes speech with the ElevenLabs API. One-shot
// synthesis uses the HTTP streaming endpoint; Stream uses the
// stream-input WebSocket, which starts returning audio before the
// full text is known.
type ElevenLabsTTS struct {
	apiKey        string
	voiceID       string
	model         string
	format        string
	stability     float64
	similarity    float64
	chunkSchedule []int
	baseURL       string
	wsURL         string
	httpClient    *http.Client
}

var _ StreamSynthesizer = (*ElevenLabsTTS)(nil)

// ElevenLabsOption configures an ElevenLabsTTS.
type ElevenLabsOption func(*ElevenLabsTTS)

// WithElevenLabsVoice sets the default voice ID.
func WithElevenLabsVoice(voiceID string) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.voiceID = voiceID
	}
}

// WithElevenLabsModel sets the default model.
func WithElevenLabsModel(model string) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.model = model
	}
}

// WithElevenLabsFormat sets the default output format (pcm_16000,
// pcm_24000, mp3_44100_128, ...).
func WithElevenLabsFormat(format string) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.format = format
	}
}

// WithElevenLabsVoiceSettings sets stability and similarity boost
// (both 0-1).
func WithElevenLabsVoiceSettings(stability, similarity float64) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.stability = stability
		h.similarity = similarity
	}
}

// WithElevenLabsChunkSchedule sets the generation chunk length
// schedule for streaming sessions.
func WithElevenLabsChunkSchedule(schedule []int) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.chunkSchedule = schedule
	}
}

// WithElevenLabsBaseURL overrides the HTTP API endpoint.
func WithElevenLabsBaseURL(base string) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.baseURL = base
	}
}

// WithElevenLabsWSURL overrides the WebSocket API endpoint.
func WithElevenLabsWSURL(base string) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.wsURL = base
	}
}

// WithElevenLabsHTTPClient sets the HTTP client for one-shot
// synthesis.
func WithElevenLabsHTTPClient(c *http.Client) ElevenLabsOption {
	return func(h *ElevenLabsTTS) {
		h.httpClient = c
	}
}

// NewElevenLabsTTS creates an ElevenLabs synthesizer. Defaults: model
// eleven_turbo_v2, voice Rachel, 24kHz 16-bit PCM output.
func NewElevenLabsTTS(apiKey string, opts ...ElevenLabsOption) *ElevenLabsTTS {
	h := &ElevenLabsTTS{
		apiKey:        apiKey,
		voiceID:       elevenLabsDefaultVoice,
		model:         "eleven_turbo_v2",
		format:        "pcm_24000",
		stability:     0.5,
		similarity:    0.75,
		chunkSchedule: []int{120, 160, 250, 290},
		baseURL:       elevenLabsBaseURL,
		wsURL:         elevenLabsWSURL,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ElevenLabsTTS) resolve(req *SynthesisRequest) (voice, model, format string) {
	voice, model, format = h.voiceID, h.model, h.format
	if req.Voice != "" {
		voice = req.Voice
	}
	if req.Model != "" {
		model = req.Model
	}
	if req.Format != "" {
		format = req.Format
	}
	return voice, model, format
}

func (h *ElevenLabsTTS) voiceSettings(req *SynthesisRequest) map[string]any {
	settings := map[string]any{
		"stability":        h.stability,
		"similarity_boost": h.similarity,
	}
	if req.Speed != 0 {
		settings["speed"] = req.Speed
	}
	return settings
}

// Synthesize implements Synthesizer via the HTTP streaming endpoint.
// The response body streams the audio; the caller must close it.
func (h *ElevenLabsTTS) Synthesize(ctx context.Context, req *SynthesisRequest) (io.ReadCloser, error) {
	voice, model, format := h.resolve(req)

	u, err := url.Parse(h.baseURL + "/v1/text-to-speech/" + voice + "/stream")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("output_format", format)
	u.RawQuery = q.Encode()

	body, err := json.Marshal(map[string]any{
		"text":           req.Text,
		"model_id":       model,
		"voice_settings": h.voiceSettings(req),
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", h.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("voice: elevenlabs: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp.Body, nil
}

// Stream implements StreamSynthesizer. It opens a stream-input
// session, sends the full text and returns the live audio stream.
func (h *ElevenLabsTTS) Stream(ctx context.Context, req *SynthesisRequest) (*Stream, error) {
	sess, err := h.OpenSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := sess.SendText(req.Text); err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.Finish(); err != nil {
		sess.Close()
		return nil, err
	}
	return sess.Stream(), nil
}

// OpenSession opens a stream-input WebSocket session. Text is sent
// incrementally with SendText; req carries voice, model, format and
// speed overrides (its Text is ignored).
//
// Example:
//
//	sess, err := tts.OpenSession(ctx, nil)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	sess.SendText("Hello, ")
//	sess.SendText("world!")
//	sess.Finish()
//
//	audio, err := Collect(sess.Stream())
func (h *ElevenLabsTTS) OpenSession(ctx context.Context, req *SynthesisRequest) (*ElevenLabsSession, error) {
	if req == nil {
		req = &SynthesisRequest{}
	}
	voice, model, format := h.resolve(req)

	u, err := url.Parse(h.wsURL + "/v1/text-to-speech/" + voice + "/stream-input")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model_id", model)
	q.Set("output_format", format)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("xi-api-key", h.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("voice: elevenlabs connect failed: %w, status=%s, body=%s", err, resp.Status, bytes.TrimSpace(msg))
		}
		return nil, fmt.Errorf("voice: elevenlabs connect failed: %w", err)
	}

	sess := &ElevenLabsSession{
		conn:      conn,
		stream:    newStream(64),
		closeChan: make(chan struct{}),
	}
	go sess.recvLoop()

	bos := map[string]any{
		"text":           " ",
		"voice_settings": h.voiceSettings(req),
		"generation_config": map[string]any{
			"chunk_length_schedule": h.chunkSchedule,
		},
	}
	if err := sess.send(bos); err != nil {
		sess.Close()
		return nil, fmt.Errorf("voice: elevenlabs session start failed: %w", err)
	}
	return sess, nil
}

// ElevenLabsSession is a live stream-input synthesis session. Audio
// frames arrive on Stream as text is sent.
type ElevenLabsSession struct {
	conn   *websocket.Conn
	stream *Stream

	writeMu   sync.Mutex
	closeChan chan struct{}
	closeOnce sync.Once
}

// Stream returns the session's audio stream. It completes when the
// server marks the last frame final after Finish.
func (s *ElevenLabsSession) Stream() *Stream {
	return s.stream
}

// SendText queues text for synthesis. Empty text is ignored.
func (s *ElevenLabsSession) SendText(text string) error {
	if text == "" {
		return nil
	}
	return s.send(map[string]any{
		"text":                   text,
		"try_trigger_generation": true,
	})
}

// Flush forces generation of any buffered text.
func (s *ElevenLabsSession) Flush() error {
	return s.send(map[string]any{
		"text":  " ",
		"flush": true,
	})
}

// Finish marks the end of the text. The server flushes remaining
// audio and finalizes the stream.
func (s *ElevenLabsSession) Finish() error {
	return s.send(map[string]any{"text": ""})
}

// Close abandons the session. A stream that has not completed fails
// with io.ErrClosedPipe.
func (s *ElevenLabsSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeChan)
		s.conn.Close()
	})
	return nil
}

func (s *ElevenLabsSession) send(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

type elevenLabsFrame struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *ElevenLabsSession) recvLoop() {
	defer s.conn.Close()
	for {
		var frame elevenLabsFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.closeChan:
				s.stream.fail(io.ErrClosedPipe)
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.stream.closeWrite()
				} else {
					s.stream.fail(err)
				}
			}
			return
		}
		if frame.Error != "" || frame.Code != 0 {
			msg := frame.Message
			if msg == "" {
				msg = frame.Error
			}
			s.stream.fail(fmt.Errorf("voice: elevenlabs: %s (code %d)", msg, frame.Code))
			return
		}
		if frame.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(frame.Audio)
			if err != nil {
				s.stream.fail(fmt.Errorf("voice: elevenlabs: bad audio payload: %w", err))
				return
			}
			if s.stream.put(pcm) != nil {
				return
			}
		}
		if frame.IsFinal {
			s.stream.closeWrite()
			return
		}
	}
}
