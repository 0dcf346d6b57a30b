package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/parleyhq/parley/pkg/chat"
)

// Default cap on an HTTP tool response body, in bytes.
const defaultMaxHTTPResponse = 1 << 20

// HTTPToolDef declares one HTTP-backed tool: a method and endpoint, an
// optional jq transform from tool arguments to the request body, and
// an optional jq transform over the decoded response. Endpoint, header
// values and the bearer token expand ${VAR} from the environment, so
// secrets stay out of catalog documents.
type HTTPToolDef struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`
	Endpoint    string            `json:"endpoint" yaml:"endpoint"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	BearerToken string            `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`

	// Request transforms the argument map into the request body. Nil
	// sends the arguments as JSON unchanged.
	Request *JQExpr `json:"request,omitempty" yaml:"request,omitempty"`

	// Response transforms the decoded response body. Nil returns the
	// body unchanged.
	Response *JQExpr `json:"response,omitempty" yaml:"response,omitempty"`

	MaxResponseBytes int64 `json:"max_response_bytes,omitempty" yaml:"max_response_bytes,omitempty"`
}

func (d *HTTPToolDef) validate() error {
	if d.Name == "" {
		return fmt.Errorf("plugin: http tool: missing name")
	}
	if d.Endpoint == "" {
		return fmt.Errorf("plugin: http tool %s: missing endpoint", d.Name)
	}
	return nil
}

// HTTP exposes declarative HTTP tools loaded from configuration. One
// plugin instance carries any number of tool definitions sharing one
// client.
type HTTP struct {
	client *http.Client
	defs   []*HTTPToolDef
}

var _ Plugin = (*HTTP)(nil)

// NewHTTP creates the http plugin. A nil client uses
// http.DefaultClient.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client}
}

// Name implements Plugin.
func (p *HTTP) Name() string { return "http" }

// Configure implements Plugin. Options: tools, a list of
// [HTTPToolDef] maps. Each call replaces the previous definitions.
func (p *HTTP) Configure(options map[string]any) error {
	var cfg struct {
		Tools []*HTTPToolDef `json:"tools"`
	}
	if err := decodeOptions(options, &cfg); err != nil {
		return fmt.Errorf("plugin: http options: %w", err)
	}
	for _, def := range cfg.Tools {
		if err := def.validate(); err != nil {
			return err
		}
	}
	p.defs = cfg.Tools
	return nil
}

// Add appends a tool definition outside of Configure.
func (p *HTTP) Add(def *HTTPToolDef) error {
	if err := def.validate(); err != nil {
		return err
	}
	p.defs = append(p.defs, def)
	return nil
}

// Tools implements Plugin.
func (p *HTTP) Tools() []*chat.FuncTool {
	tools := make([]*chat.FuncTool, 0, len(p.defs))
	for _, def := range p.defs {
		def := def
		tools = append(tools, chat.MustNewFuncTool[map[string]any](
			def.Name, def.Description,
			chat.InvokeFunc[map[string]any](func(ctx context.Context, _ *chat.FuncCall, args map[string]any) (any, error) {
				return p.execute(ctx, def, args)
			})))
	}
	return tools
}

func (p *HTTP) execute(ctx context.Context, def *HTTPToolDef, args map[string]any) (any, error) {
	var body io.Reader
	if def.Request != nil {
		out, err := def.Request.Run(args)
		if err != nil {
			return nil, fmt.Errorf("build request body: %w", err)
		}
		body = bytes.NewReader([]byte(out))
	} else {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal args: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := def.Method
	if method == "" {
		method = http.MethodPost
	}
	if method == http.MethodGet || method == http.MethodHead {
		body = nil
	}

	req, err := http.NewRequestWithContext(ctx, method, expandEnv(def.Endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range def.Headers {
		req.Header.Set(key, expandEnv(value))
	}
	if def.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+expandEnv(def.BearerToken))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	maxSize := def.MaxResponseBytes
	if maxSize <= 0 {
		maxSize = defaultMaxHTTPResponse
	}
	limited := io.LimitReader(resp.Body, maxSize+1)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(limited, 4096))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded any
	if err := json.NewDecoder(limited).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if def.Response != nil {
		out, err := def.Response.Run(decoded)
		if err != nil {
			return nil, fmt.Errorf("extract response: %w", err)
		}
		var parsed any
		if err := json.Unmarshal([]byte(out), &parsed); err != nil {
			return out, nil
		}
		return parsed, nil
	}
	return decoded, nil
}

// expandEnv expands ${VAR} from the environment.
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}
