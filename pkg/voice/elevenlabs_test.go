package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startElevenLabsWS starts a fake stream-input endpoint and returns a
// synthesizer pointed at it.
func startElevenLabsWS(t *testing.T, handle func(r *http.Request, conn *websocket.Conn)) (*ElevenLabsTTS, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(r, conn)
	}))
	h := NewElevenLabsTTS("test-key",
		WithElevenLabsWSURL("ws"+strings.TrimPrefix(srv.URL, "http")),
		WithElevenLabsBaseURL(srv.URL),
		WithElevenLabsVoice("voice-1"),
	)
	return h, srv.Close
}

func readClientJSON(conn *websocket.Conn) (map[string]any, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// relayUntilEOS forwards client messages to msgCh until the empty-text
// end marker arrives.
func relayUntilEOS(conn *websocket.Conn, msgCh chan<- map[string]any) error {
	for {
		msg, err := readClientJSON(conn)
		if err != nil {
			return err
		}
		msgCh <- msg
		if text, ok := msg["text"].(string); ok && text == "" {
			return nil
		}
	}
}

func TestElevenLabsTTS_Stream(t *testing.T) {
	want := []byte{1, 2, 3, 4, 5, 6}
	reqCh := make(chan *http.Request, 1)
	msgCh := make(chan map[string]any, 8)

	h, cleanup := startElevenLabsWS(t, func(r *http.Request, conn *websocket.Conn) {
		reqCh <- r
		if err := relayUntilEOS(conn, msgCh); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(want[:3])})
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(want[3:])})
		conn.WriteJSON(map[string]any{"isFinal": true})
	})
	defer cleanup()

	s, err := h.Stream(context.Background(), &SynthesisRequest{Text: "Hello world"})
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	audio, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !bytes.Equal(audio, want) {
		t.Errorf("audio = %v; want %v", audio, want)
	}

	r := <-reqCh
	if got := r.URL.Path; got != "/v1/text-to-speech/voice-1/stream-input" {
		t.Errorf("path = %q; want %q", got, "/v1/text-to-speech/voice-1/stream-input")
	}
	if got := r.Header.Get("xi-api-key"); got != "test-key" {
		t.Errorf("xi-api-key = %q; want %q", got, "test-key")
	}
	if got := r.URL.Query().Get("model_id"); got != "eleven_turbo_v2" {
		t.Errorf("model_id = %q; want %q", got, "eleven_turbo_v2")
	}
	if got := r.URL.Query().Get("output_format"); got != "pcm_24000" {
		t.Errorf("output_format = %q; want %q", got, "pcm_24000")
	}

	bos := <-msgCh
	if bos["text"] != " " {
		t.Errorf("BOS text = %v; want a single space", bos["text"])
	}
	if _, ok := bos["voice_settings"]; !ok {
		t.Error("BOS missing voice_settings")
	}
	if _, ok := bos["generation_config"]; !ok {
		t.Error("BOS missing generation_config")
	}
	chunk := <-msgCh
	if chunk["text"] != "Hello world" {
		t.Errorf("chunk text = %v; want %q", chunk["text"], "Hello world")
	}
	if chunk["try_trigger_generation"] != true {
		t.Error("chunk missing try_trigger_generation")
	}
	eos := <-msgCh
	if eos["text"] != "" {
		t.Errorf("EOS text = %v; want empty", eos["text"])
	}
}

func TestElevenLabsTTS_SessionIncremental(t *testing.T) {
	msgCh := make(chan map[string]any, 8)

	h, cleanup := startElevenLabsWS(t, func(r *http.Request, conn *websocket.Conn) {
		if err := relayUntilEOS(conn, msgCh); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString([]byte("ok"))})
		conn.WriteJSON(map[string]any{"isFinal": true})
	})
	defer cleanup()

	sess, err := h.OpenSession(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenSession error: %v", err)
	}
	defer sess.Close()

	if err := sess.SendText("Hello, "); err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if err := sess.SendText("world!"); err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if err := sess.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if err := sess.Finish(); err != nil {
		t.Fatalf("Finish error: %v", err)
	}

	audio, err := Collect(sess.Stream())
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if string(audio) != "ok" {
		t.Errorf("audio = %q; want %q", audio, "ok")
	}

	<-msgCh // BOS
	first := <-msgCh
	if first["text"] != "Hello, " {
		t.Errorf("first chunk = %v; want %q", first["text"], "Hello, ")
	}
	second := <-msgCh
	if second["text"] != "world!" {
		t.Errorf("second chunk = %v; want %q", second["text"], "world!")
	}
	flush := <-msgCh
	if flush["flush"] != true {
		t.Errorf("flush frame = %v; want flush=true", flush)
	}
	eos := <-msgCh
	if eos["text"] != "" {
		t.Errorf("EOS text = %v; want empty", eos["text"])
	}
}

func TestElevenLabsTTS_StreamServerError(t *testing.T) {
	msgCh := make(chan map[string]any, 8)

	h, cleanup := startElevenLabsWS(t, func(r *http.Request, conn *websocket.Conn) {
		if err := relayUntilEOS(conn, msgCh); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{"message": "quota exceeded", "code": 1008})
	})
	defer cleanup()

	s, err := h.Stream(context.Background(), &SynthesisRequest{Text: "Hello"})
	if err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	_, err = Collect(s)
	if err == nil {
		t.Fatal("Collect should fail on a server error frame")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Collect error = %v; want to contain %q", err, "quota exceeded")
	}
}

type httpCall struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   map[string]any
}

func TestElevenLabsTTS_Synthesize(t *testing.T) {
	want := []byte{9, 8, 7}
	calls := make(chan httpCall, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := httpCall{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.Query(),
			header: r.Header.Clone(),
		}
		json.NewDecoder(r.Body).Decode(&call.body)
		calls <- call
		w.Write(want)
	}))
	defer srv.Close()

	h := NewElevenLabsTTS("test-key",
		WithElevenLabsBaseURL(srv.URL),
		WithElevenLabsVoice("voice-1"),
	)
	rc, err := h.Synthesize(context.Background(), &SynthesisRequest{Text: "Hi there", Speed: 1.1})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	audio, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if !bytes.Equal(audio, want) {
		t.Errorf("audio = %v; want %v", audio, want)
	}

	call := <-calls
	if call.method != http.MethodPost {
		t.Errorf("method = %q; want POST", call.method)
	}
	if call.path != "/v1/text-to-speech/voice-1/stream" {
		t.Errorf("path = %q; want %q", call.path, "/v1/text-to-speech/voice-1/stream")
	}
	if got := call.query.Get("output_format"); got != "pcm_24000" {
		t.Errorf("output_format = %q; want %q", got, "pcm_24000")
	}
	if got := call.header.Get("xi-api-key"); got != "test-key" {
		t.Errorf("xi-api-key = %q; want %q", got, "test-key")
	}
	if call.body["text"] != "Hi there" {
		t.Errorf("body text = %v; want %q", call.body["text"], "Hi there")
	}
	if call.body["model_id"] != "eleven_turbo_v2" {
		t.Errorf("body model_id = %v; want %q", call.body["model_id"], "eleven_turbo_v2")
	}
	settings, ok := call.body["voice_settings"].(map[string]any)
	if !ok {
		t.Fatalf("body voice_settings = %v; want an object", call.body["voice_settings"])
	}
	if settings["speed"] != 1.1 {
		t.Errorf("voice_settings speed = %v; want 1.1", settings["speed"])
	}
}

func TestElevenLabsTTS_SynthesizeOverrides(t *testing.T) {
	calls := make(chan httpCall, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := httpCall{path: r.URL.Path, query: r.URL.Query()}
		json.NewDecoder(r.Body).Decode(&call.body)
		calls <- call
		w.Write([]byte{0})
	}))
	defer srv.Close()

	h := NewElevenLabsTTS("test-key", WithElevenLabsBaseURL(srv.URL))
	rc, err := h.Synthesize(context.Background(), &SynthesisRequest{
		Text:   "Hi",
		Voice:  "voice-2",
		Model:  "eleven_multilingual_v2",
		Format: "pcm_16000",
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	rc.Close()

	call := <-calls
	if call.path != "/v1/text-to-speech/voice-2/stream" {
		t.Errorf("path = %q; want %q", call.path, "/v1/text-to-speech/voice-2/stream")
	}
	if got := call.query.Get("output_format"); got != "pcm_16000" {
		t.Errorf("output_format = %q; want %q", got, "pcm_16000")
	}
	if call.body["model_id"] != "eleven_multilingual_v2" {
		t.Errorf("body model_id = %v; want %q", call.body["model_id"], "eleven_multilingual_v2")
	}
}

func TestElevenLabsTTS_SynthesizeStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}))
	defer srv.Close()

	h := NewElevenLabsTTS("bad-key", WithElevenLabsBaseURL(srv.URL))
	_, err := h.Synthesize(context.Background(), &SynthesisRequest{Text: "Hi"})
	if err == nil {
		t.Fatal("Synthesize should fail on a non-200 status")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("error = %v; want to contain %q", err, "status 401")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v; want to contain %q", err, "invalid api key")
	}
}
