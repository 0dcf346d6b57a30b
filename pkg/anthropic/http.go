package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient handles HTTP communication with the Anthropic API.
type httpClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	version    string
	maxRetries int
}

// newHTTPClient creates a new HTTP client.
func newHTTPClient(cfg *clientConfig) *httpClient {
	return &httpClient{
		client:     cfg.httpClient,
		baseURL:    cfg.baseURL,
		apiKey:     cfg.apiKey,
		version:    cfg.version,
		maxRetries: cfg.maxRetries,
	}
}

// errorEnvelope is the error response wrapper from the API.
type errorEnvelope struct {
	Type  string `json:"type"`
	Error *Error `json:"error"`
}

// request makes an HTTP request to the API with retry support.
func (h *httpClient) request(ctx context.Context, method, path string, body any, result any) error {
	var bodyData []byte
	if body != nil {
		var err error
		bodyData, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, ...
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := h.doRequest(ctx, method, path, bodyData, result)
		if err == nil {
			return nil
		}

		lastErr = err

		if apiErr, ok := AsError(err); ok {
			if !apiErr.Retryable() {
				return err
			}
		}
	}

	return lastErr
}

// doRequest performs a single HTTP request.
func (h *httpClient) doRequest(ctx context.Context, method, path string, bodyData []byte, result any) error {
	url := h.baseURL + path

	var bodyReader io.Reader
	if bodyData != nil {
		bodyReader = bytes.NewReader(bodyData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	h.setHeaders(req)
	if bodyData != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	return h.handleResponse(resp, result)
}

// requestStream makes a streaming HTTP request to the API.
func (h *httpClient) requestStream(ctx context.Context, method, path string, body any) (*http.Response, error) {
	url := h.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	h.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read error response: %w", err)
		}
		return nil, h.parseError(body, resp.StatusCode)
	}

	return resp, nil
}

// setHeaders sets common headers for API requests.
func (h *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", h.apiKey)
	req.Header.Set("anthropic-version", h.version)
}

// handleResponse handles the API response.
func (h *httpClient) handleResponse(resp *http.Response, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return h.parseError(body, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// parseError parses an error response body.
func (h *httpClient) parseError(body []byte, httpStatus int) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		env.Error.HTTPStatus = httpStatus
		return env.Error
	}

	return &Error{
		Type:       ErrTypeAPI,
		Message:    string(body),
		HTTPStatus: httpStatus,
	}
}

// sseReader reads Server-Sent Events from a response. Anthropic tags
// every event with an "event:" line followed by a "data:" line.
type sseReader struct {
	reader *bufio.Reader
	resp   *http.Response
}

// newSSEReader creates a new SSE reader.
func newSSEReader(resp *http.Response) *sseReader {
	return &sseReader{
		reader: bufio.NewReader(resp.Body),
		resp:   resp,
	}
}

// readEvent reads the next SSE event.
// Returns (eventName, data, done, error).
func (r *sseReader) readEvent() (string, []byte, bool, error) {
	var (
		name string
		data []byte
	)

	for {
		line, err := r.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return "", nil, true, nil
			}
			return "", nil, false, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			// Empty line marks end of event
			if len(data) > 0 {
				return name, data, false, nil
			}
			name = ""
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			name = string(bytes.TrimSpace(bytes.TrimPrefix(line, []byte("event:"))))
		case bytes.HasPrefix(line, []byte("data:")):
			data = bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		}
	}
}

// close closes the SSE reader.
func (r *sseReader) close() {
	r.resp.Body.Close()
}
