package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func newTestOpenAIClient(srvURL string) *openai.Client {
	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srvURL),
	)
	return &client
}

func TestOpenAITTS_Synthesize(t *testing.T) {
	calls := make(chan httpCall, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := httpCall{method: r.Method, path: r.URL.Path}
		json.NewDecoder(r.Body).Decode(&call.body)
		calls <- call
		w.Write([]byte("pcm-audio"))
	}))
	defer srv.Close()

	h := NewOpenAITTS(newTestOpenAIClient(srv.URL))
	rc, err := h.Synthesize(context.Background(), &SynthesisRequest{Text: "Hello"})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	audio, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if string(audio) != "pcm-audio" {
		t.Errorf("audio = %q; want %q", audio, "pcm-audio")
	}

	call := <-calls
	if call.method != http.MethodPost {
		t.Errorf("method = %q; want POST", call.method)
	}
	if call.path != "/audio/speech" {
		t.Errorf("path = %q; want %q", call.path, "/audio/speech")
	}
	if call.body["model"] != "tts-1" {
		t.Errorf("body model = %v; want %q", call.body["model"], "tts-1")
	}
	if call.body["input"] != "Hello" {
		t.Errorf("body input = %v; want %q", call.body["input"], "Hello")
	}
	if call.body["voice"] != "alloy" {
		t.Errorf("body voice = %v; want %q", call.body["voice"], "alloy")
	}
	if call.body["response_format"] != "pcm" {
		t.Errorf("body response_format = %v; want %q", call.body["response_format"], "pcm")
	}
	if _, ok := call.body["speed"]; ok {
		t.Errorf("body speed = %v; want omitted", call.body["speed"])
	}
}

func TestOpenAITTS_Overrides(t *testing.T) {
	calls := make(chan httpCall, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := httpCall{path: r.URL.Path}
		json.NewDecoder(r.Body).Decode(&call.body)
		calls <- call
		w.Write([]byte{0})
	}))
	defer srv.Close()

	h := NewOpenAITTS(newTestOpenAIClient(srv.URL),
		WithOpenAITTSModel("tts-1-hd"),
		WithOpenAITTSVoice("onyx"),
	)
	rc, err := h.Synthesize(context.Background(), &SynthesisRequest{
		Text:   "Hello",
		Voice:  "nova",
		Format: "wav",
		Speed:  1.5,
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	rc.Close()

	call := <-calls
	if call.body["model"] != "tts-1-hd" {
		t.Errorf("body model = %v; want %q", call.body["model"], "tts-1-hd")
	}
	if call.body["voice"] != "nova" {
		t.Errorf("body voice = %v; want %q", call.body["voice"], "nova")
	}
	if call.body["response_format"] != "wav" {
		t.Errorf("body response_format = %v; want %q", call.body["response_format"], "wav")
	}
	if call.body["speed"] != 1.5 {
		t.Errorf("body speed = %v; want 1.5", call.body["speed"])
	}
}

type sttCall struct {
	model    string
	language string
	prompt   string
	filename string
	content  []byte
}

func TestOpenAISTT_Transcribe(t *testing.T) {
	calls := make(chan sttCall, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		call := sttCall{
			model:    r.FormValue("model"),
			language: r.FormValue("language"),
			prompt:   r.FormValue("prompt"),
		}
		if file, hdr, err := r.FormFile("file"); err == nil {
			call.content, _ = io.ReadAll(file)
			file.Close()
			call.filename = hdr.Filename
		}
		calls <- call
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "hello there"}`))
	}))
	defer srv.Close()

	h := NewOpenAISTT(newTestOpenAIClient(srv.URL))
	text, err := h.Transcribe(context.Background(), strings.NewReader("RIFF-audio"), &TranscribeOptions{
		Language: "en",
		Prompt:   "Parley, Porto",
		Filename: "clip.wav",
	})
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "hello there" {
		t.Errorf("Transcribe = %q; want %q", text, "hello there")
	}

	call := <-calls
	if call.model != "whisper-1" {
		t.Errorf("model = %q; want %q", call.model, "whisper-1")
	}
	if call.language != "en" {
		t.Errorf("language = %q; want %q", call.language, "en")
	}
	if call.prompt != "Parley, Porto" {
		t.Errorf("prompt = %q; want %q", call.prompt, "Parley, Porto")
	}
	if call.filename != "clip.wav" {
		t.Errorf("filename = %q; want %q", call.filename, "clip.wav")
	}
	if string(call.content) != "RIFF-audio" {
		t.Errorf("content = %q; want %q", call.content, "RIFF-audio")
	}
}

func TestOpenAISTT_Defaults(t *testing.T) {
	calls := make(chan sttCall, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		call := sttCall{model: r.FormValue("model")}
		if _, hdr, err := r.FormFile("file"); err == nil {
			call.filename = hdr.Filename
		}
		calls <- call
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	h := NewOpenAISTT(newTestOpenAIClient(srv.URL), WithOpenAISTTModel("gpt-4o-transcribe"))
	if _, err := h.Transcribe(context.Background(), strings.NewReader("audio"), nil); err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}

	call := <-calls
	if call.model != "gpt-4o-transcribe" {
		t.Errorf("model = %q; want %q", call.model, "gpt-4o-transcribe")
	}
	if call.filename != "audio.wav" {
		t.Errorf("filename = %q; want %q", call.filename, "audio.wav")
	}
}
