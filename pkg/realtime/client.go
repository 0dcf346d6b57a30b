package realtime

import (
	"context"
	"log/slog"
	"net/http"
)

const (
	// DefaultWebSocketURL is the production WebSocket endpoint.
	DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

	// DefaultHTTPURL is the production HTTP endpoint, used for WebRTC
	// session creation and SDP exchange.
	DefaultHTTPURL = "https://api.openai.com/v1/realtime"
)

// Client holds credentials and endpoints for opening realtime sessions.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey       string
	organization string
	project      string
	wsURL        string
	httpURL      string
	httpClient   *http.Client
	logger       *slog.Logger
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a realtime client. An empty API key is a programmer
// error and panics.
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		panic("realtime: API key is required")
	}

	cfg := &clientConfig{
		apiKey:     apiKey,
		wsURL:      DefaultWebSocketURL,
		httpURL:    DefaultHTTPURL,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{config: cfg}
}

// WithWebSocketURL overrides the WebSocket endpoint.
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) { c.wsURL = url }
}

// WithHTTPURL overrides the HTTP endpoint used by the WebRTC transport.
func WithHTTPURL(url string) Option {
	return func(c *clientConfig) { c.httpURL = url }
}

// WithHTTPClient sets the HTTP client used for dialing and WebRTC
// signalling.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(orgID string) Option {
	return func(c *clientConfig) { c.organization = orgID }
}

// WithProject sets the OpenAI-Project header.
func WithProject(projectID string) Option {
	return func(c *clientConfig) { c.project = projectID }
}

// WithLogger sets the logger used for wire-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = logger }
}

// ConnectWebSocket opens a WebSocket session. This is the transport for
// server-side use.
func (c *Client) ConnectWebSocket(ctx context.Context, config *ConnectConfig) (Session, error) {
	return c.connectWebSocket(ctx, config)
}

// ConnectWebRTC opens a WebRTC session: lower latency, media over RTP,
// events over the "oai-events" data channel. The concrete type exposes
// the audio tracks.
func (c *Client) ConnectWebRTC(ctx context.Context, config *ConnectConfig) (*WebRTCSession, error) {
	return c.connectWebRTC(ctx, config)
}

// truncateForLog shortens wire payloads for debug logging.
func truncateForLog(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
