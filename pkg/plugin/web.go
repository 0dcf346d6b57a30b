package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/parleyhq/parley/pkg/chat"
)

const (
	defaultMaxResults    = 5
	defaultMaxFetchBytes = 1 << 20
	webUserAgent         = "parley/1.0"
)

// Web exposes web_search and web_fetch. Search talks to a
// SearxNG-compatible JSON endpoint; fetch GETs a page and reduces HTML
// to text.
type Web struct {
	client     *http.Client
	endpoint   string
	maxResults int
	maxFetch   int64
	transform  *JQExpr
}

var _ Plugin = (*Web)(nil)

// NewWeb creates the web plugin. A nil client uses http.DefaultClient.
func NewWeb(client *http.Client) *Web {
	if client == nil {
		client = http.DefaultClient
	}
	return &Web{
		client:     client,
		maxResults: defaultMaxResults,
		maxFetch:   defaultMaxFetchBytes,
	}
}

// Name implements Plugin.
func (p *Web) Name() string { return "web" }

// Configure implements Plugin. Options: endpoint (search base URL),
// max_results, max_fetch_bytes, transform (jq over the search
// response).
func (p *Web) Configure(options map[string]any) error {
	var cfg struct {
		Endpoint      string `json:"endpoint"`
		MaxResults    int    `json:"max_results"`
		MaxFetchBytes int64  `json:"max_fetch_bytes"`
		Transform     string `json:"transform"`
	}
	if err := decodeOptions(options, &cfg); err != nil {
		return fmt.Errorf("plugin: web options: %w", err)
	}
	if cfg.Endpoint != "" {
		p.endpoint = strings.TrimRight(cfg.Endpoint, "/")
	}
	if cfg.MaxResults > 0 {
		p.maxResults = cfg.MaxResults
	}
	if cfg.MaxFetchBytes > 0 {
		p.maxFetch = cfg.MaxFetchBytes
	}
	if cfg.Transform != "" {
		jq, err := ParseJQ(cfg.Transform)
		if err != nil {
			return err
		}
		p.transform = jq
	}
	return nil
}

type webSearchArg struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type webFetchArg struct {
	URL string `json:"url"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Tools implements Plugin.
func (p *Web) Tools() []*chat.FuncTool {
	return []*chat.FuncTool{
		chat.MustNewFuncTool[webSearchArg]("web_search",
			"Search the web. Returns result titles, URLs and snippets.",
			chat.InvokeFunc[webSearchArg](p.search)),
		chat.MustNewFuncTool[webFetchArg]("web_fetch",
			"Fetch a URL and return its content. HTML pages are reduced to plain text.",
			chat.InvokeFunc[webFetchArg](p.fetch)),
	}
}

func (p *Web) search(ctx context.Context, _ *chat.FuncCall, arg webSearchArg) (any, error) {
	if p.endpoint == "" {
		return nil, errors.New("web search endpoint not configured")
	}
	if strings.TrimSpace(arg.Query) == "" {
		return nil, errors.New("query is required")
	}

	q := url.Values{}
	q.Set("q", arg.Query)
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, p.maxFetch)
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(body, 4096))
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	// A configured jq transform sees the raw response and replaces the
	// default result mapping entirely.
	if p.transform != nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		out, err := p.transform.Run(v)
		if err != nil {
			return nil, err
		}
		var parsed any
		if err := json.Unmarshal([]byte(out), &parsed); err != nil {
			return out, nil
		}
		return parsed, nil
	}

	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	limit := arg.MaxResults
	if limit <= 0 || limit > p.maxResults {
		limit = p.maxResults
	}
	results := make([]searchResult, 0, limit)
	for _, r := range decoded.Results {
		if len(results) == limit {
			break
		}
		results = append(results, searchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return map[string]any{"query": arg.Query, "results": results}, nil
}

func (p *Web) fetch(ctx context.Context, _ *chat.FuncCall, arg webFetchArg) (any, error) {
	u, err := url.Parse(arg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", arg.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", webUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch status %d for %s", resp.StatusCode, arg.URL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxFetch+1))
	if err != nil {
		return nil, err
	}
	truncated := int64(len(data)) > p.maxFetch
	if truncated {
		data = data[:p.maxFetch]
	}

	contentType := resp.Header.Get("Content-Type")
	content := string(data)
	if strings.Contains(contentType, "html") {
		content = stripHTML(bytes.NewReader(data))
	}
	if truncated {
		content += "\n[content truncated]"
	}
	return map[string]any{
		"url":          arg.URL,
		"content_type": contentType,
		"content":      content,
		"truncated":    truncated,
	}, nil
}

// stripHTML reduces markup to text: script/style subtrees are dropped,
// block tags become line breaks, runs of blank lines collapse.
func stripHTML(r io.Reader) string {
	z := html.NewTokenizer(r)
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				skip++
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6",
				"article", "section", "blockquote", "pre":
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "tr":
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
