package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parleyhq/parley/pkg/voice"
)

func init() {
	RegisterRunHandler("tts", runTTS)
	RegisterRunHandler("transcribe", runTranscribe)
}

func runTTS(ctx context.Context, c *Catalog, doc Document) (*RunResult, error) {
	text := doc.GetString("text")
	if text == "" {
		return nil, errors.New("tts: missing 'text'")
	}
	output := doc.GetString("output")
	if output == "" {
		return nil, errors.New("tts: missing 'output' file path")
	}

	voiceDoc, err := c.lookupVoice(ctx, doc, "tts")
	if err != nil {
		return nil, err
	}

	audio, err := c.synthesizeVoice(ctx, voiceDoc, &voice.SynthesisRequest{
		Text:   text,
		Model:  voiceDoc.GetString("model"),
		Voice:  voiceDoc.GetString("voice"),
		Format: voiceDoc.GetString("format"),
	})
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	defer audio.Close()

	f, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("tts: %w", err)
	}
	n, err := io.Copy(f, audio)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("tts: write %s: %w", output, err)
	}

	return &RunResult{
		Kind:       doc.Kind,
		Status:     "ok",
		AudioSize:  int(n),
		OutputFile: output,
	}, nil
}

func runTranscribe(ctx context.Context, c *Catalog, doc Document) (*RunResult, error) {
	audioPath := doc.GetString("audio")
	if audioPath == "" {
		return nil, errors.New("transcribe: missing 'audio' file path")
	}

	voiceDoc, err := c.lookupVoice(ctx, doc, "stt")
	if err != nil {
		return nil, err
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	defer f.Close()

	language := doc.GetString("language")
	if language == "" {
		language = voiceDoc.GetString("language")
	}
	text, err := c.transcribeVoice(ctx, voiceDoc, f, &voice.TranscribeOptions{
		Model:    voiceDoc.GetString("model"),
		Language: language,
		Prompt:   doc.GetString("prompt"),
		Filename: audioPath,
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return &RunResult{Kind: doc.Kind, Status: "ok", Text: text}, nil
}

// lookupVoice resolves the request's "voice" reference and checks the
// document is of the wanted kind (tts or stt).
func (c *Catalog) lookupVoice(ctx context.Context, doc Document, want string) (*Document, error) {
	name := doc.GetString("voice")
	if name == "" {
		return nil, fmt.Errorf("%s: missing 'voice'", doc.Kind)
	}
	voiceDoc, err := c.Get(ctx, "voice/"+name)
	if err != nil {
		return nil, fmt.Errorf("%s: lookup voice %q: %w", doc.Kind, name, err)
	}
	if kind := voiceDoc.GetString("kind"); kind != want {
		return nil, fmt.Errorf("%s: voice %q is kind %q, want %q", doc.Kind, name, kind, want)
	}
	return voiceDoc, nil
}

// voiceKey is the mux routing name for a voice document.
func voiceKey(voiceDoc *Document) string {
	return voiceDoc.GetString("provider") + "/" + voiceDoc.Name()
}

// synthesizeVoice routes through the catalog's voice mux, building and
// registering the adapter on first use.
func (c *Catalog) synthesizeVoice(ctx context.Context, voiceDoc *Document, req *voice.SynthesisRequest) (io.ReadCloser, error) {
	key := voiceKey(voiceDoc)
	if _, ok := c.voices.LookupTTS(key); !ok {
		synth, err := c.buildSynthesizer(ctx, voiceDoc)
		if err != nil {
			return nil, err
		}
		if err := c.voices.HandleTTS(key, synth); err != nil {
			return nil, fmt.Errorf("tts: register %s: %w", key, err)
		}
	}
	return c.voices.Synthesize(ctx, key, req)
}

// transcribeVoice routes through the catalog's voice mux. Adapter
// teardown is deferred to Catalog.Close.
func (c *Catalog) transcribeVoice(ctx context.Context, voiceDoc *Document, audio io.Reader, opts *voice.TranscribeOptions) (string, error) {
	key := voiceKey(voiceDoc)
	if _, ok := c.voices.LookupSTT(key); !ok {
		stt, closeSTT, err := c.buildTranscriber(ctx, voiceDoc)
		if err != nil {
			return "", err
		}
		if closeSTT != nil {
			c.closers = append(c.closers, closeSTT)
		}
		if err := c.voices.HandleSTT(key, stt); err != nil {
			return "", fmt.Errorf("transcribe: register %s: %w", key, err)
		}
	}
	return c.voices.Transcribe(ctx, key, audio, opts)
}

func (c *Catalog) buildSynthesizer(ctx context.Context, voiceDoc *Document) (voice.Synthesizer, error) {
	cred, err := c.ResolveCred(ctx, voiceDoc.GetString("cred"))
	if err != nil {
		return nil, err
	}

	switch provider := voiceDoc.GetString("provider"); provider {
	case "openai":
		client := newOpenAIClient(cred.GetString("api_key"), cred.GetString("base_url"))
		var opts []voice.OpenAITTSOption
		if m := voiceDoc.GetString("model"); m != "" {
			opts = append(opts, voice.WithOpenAITTSModel(m))
		}
		if v := voiceDoc.GetString("voice"); v != "" {
			opts = append(opts, voice.WithOpenAITTSVoice(v))
		}
		if f := voiceDoc.GetString("format"); f != "" {
			opts = append(opts, voice.WithOpenAITTSFormat(f))
		}
		return voice.NewOpenAITTS(client, opts...), nil

	case "elevenlabs":
		var opts []voice.ElevenLabsOption
		if v := voiceDoc.GetString("voice"); v != "" {
			opts = append(opts, voice.WithElevenLabsVoice(v))
		}
		if m := voiceDoc.GetString("model"); m != "" {
			opts = append(opts, voice.WithElevenLabsModel(m))
		}
		if f := voiceDoc.GetString("format"); f != "" {
			opts = append(opts, voice.WithElevenLabsFormat(f))
		}
		return voice.NewElevenLabsTTS(cred.GetString("api_key"), opts...), nil

	default:
		return nil, fmt.Errorf("no tts adapter for provider %q", provider)
	}
}

func (c *Catalog) buildTranscriber(ctx context.Context, voiceDoc *Document) (voice.Transcriber, func() error, error) {
	cred, err := c.ResolveCred(ctx, voiceDoc.GetString("cred"))
	if err != nil {
		return nil, nil, err
	}

	switch provider := voiceDoc.GetString("provider"); provider {
	case "openai":
		client := newOpenAIClient(cred.GetString("api_key"), cred.GetString("base_url"))
		var opts []voice.OpenAISTTOption
		if m := voiceDoc.GetString("model"); m != "" {
			opts = append(opts, voice.WithOpenAISTTModel(m))
		}
		return voice.NewOpenAISTT(client, opts...), nil, nil

	case "google":
		projectID := cred.GetString("project_id")
		if projectID == "" {
			return nil, nil, errors.New("provider google: missing project_id")
		}
		var opts []voice.GoogleSTTOption
		if cj := cred.GetString("credentials_json"); cj != "" {
			opts = append(opts, voice.WithGoogleSTTCredentialsJSON(cj))
		}
		if loc := cred.GetString("location"); loc != "" {
			opts = append(opts, voice.WithGoogleSTTLocation(loc))
		}
		if m := voiceDoc.GetString("model"); m != "" {
			opts = append(opts, voice.WithGoogleSTTModel(m))
		}
		if lang := voiceDoc.GetString("language"); lang != "" {
			opts = append(opts, voice.WithGoogleSTTLanguage(lang))
		}
		stt := voice.NewGoogleSTT(projectID, opts...)
		return stt, stt.Close, nil

	default:
		return nil, nil, fmt.Errorf("no stt adapter for provider %q", provider)
	}
}
