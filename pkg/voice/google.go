package voice

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
)

// GoogleSTT transcribes audio with the Google Cloud Speech-to-Text v2
// API. The gRPC client dials lazily on first use; Close releases it.
type GoogleSTT struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string
	language        string
	endpoint        string

	mu     sync.Mutex
	client *speech.Client
}

var _ Transcriber = (*GoogleSTT)(nil)

// GoogleSTTOption configures a GoogleSTT.
type GoogleSTTOption func(*GoogleSTT)

// WithGoogleSTTCredentialsJSON sets service account credentials.
// Empty falls back to application default credentials.
func WithGoogleSTTCredentialsJSON(credsJSON string) GoogleSTTOption {
	return func(h *GoogleSTT) {
		h.credentialsJSON = credsJSON
	}
}

// WithGoogleSTTLocation sets the recognizer location. Non-global
// locations use the matching regional endpoint.
func WithGoogleSTTLocation(location string) GoogleSTTOption {
	return func(h *GoogleSTT) {
		h.location = location
	}
}

// WithGoogleSTTModel sets the default recognition model.
func WithGoogleSTTModel(model string) GoogleSTTOption {
	return func(h *GoogleSTT) {
		h.model = model
	}
}

// WithGoogleSTTLanguage sets the default language code.
func WithGoogleSTTLanguage(language string) GoogleSTTOption {
	return func(h *GoogleSTT) {
		h.language = language
	}
}

// WithGoogleSTTEndpoint overrides the API endpoint.
func WithGoogleSTTEndpoint(endpoint string) GoogleSTTOption {
	return func(h *GoogleSTT) {
		h.endpoint = endpoint
	}
}

// NewGoogleSTT creates a Cloud Speech transcriber. Defaults: global
// location, model latest_long, language en-US.
func NewGoogleSTT(projectID string, opts ...GoogleSTTOption) *GoogleSTT {
	h := &GoogleSTT{
		projectID: projectID,
		location:  "global",
		model:     "latest_long",
		language:  "en-US",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Transcribe implements Transcriber. The audio container is
// auto-detected, so WAV, FLAC and OGG inputs need no extra
// configuration.
func (h *GoogleSTT) Transcribe(ctx context.Context, audio io.Reader, opts *TranscribeOptions) (string, error) {
	if opts == nil {
		opts = &TranscribeOptions{}
	}
	content, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	client, err := h.getClient(ctx)
	if err != nil {
		return "", err
	}

	model := h.model
	if opts.Model != "" {
		model = opts.Model
	}
	language := h.language
	if opts.Language != "" {
		language = opts.Language
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", h.projectID, h.location),
		Config: &speechpb.RecognitionConfig{
			Model:         model,
			LanguageCodes: []string{language},
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: content},
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text.WriteString(alts[0].GetTranscript())
	}
	return text.String(), nil
}

// Close releases the gRPC client. The transcriber redials on next use.
func (h *GoogleSTT) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}

func (h *GoogleSTT) getClient(ctx context.Context) (*speech.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}

	var copts []option.ClientOption
	if h.credentialsJSON != "" {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			CredentialsJSON: []byte(h.credentialsJSON),
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("voice: detect credentials: %w", err)
		}
		copts = append(copts, option.WithAuthCredentials(creds))
	}
	switch {
	case h.endpoint != "":
		copts = append(copts, option.WithEndpoint(h.endpoint))
	case h.location != "" && h.location != "global":
		copts = append(copts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:443", h.location)))
	}

	client, err := speech.NewClient(ctx, copts...)
	if err != nil {
		return nil, err
	}
	h.client = client
	return client, nil
}
