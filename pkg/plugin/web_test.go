package plugin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWeb_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if q := r.URL.Query().Get("q"); q != "golang" {
			t.Errorf("q = %q", q)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"Go","url":"https://go.dev","content":"The Go programming language"},
			{"title":"Docs","url":"https://go.dev/doc","content":"Documentation"},
			{"title":"Blog","url":"https://go.dev/blog","content":"Blog"}
		]}`)
	}))
	defer srv.Close()

	p := NewWeb(srv.Client())
	if err := p.Configure(map[string]any{"endpoint": srv.URL, "max_results": 2}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	out := mustInvoke(t, p, "web_search", `{"query":"golang"}`)
	results := out["results"].([]searchResult)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Title != "Go" || results[0].URL != "https://go.dev" {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestWeb_SearchNoEndpoint(t *testing.T) {
	p := NewWeb(nil)
	if _, err := invokeTool(t, p, "web_search", `{"query":"x"}`); err == nil {
		t.Error("search without endpoint should fail")
	}
}

func TestWeb_SearchTransform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"name":"a","link":"https://a"}]}`)
	}))
	defer srv.Close()

	p := NewWeb(srv.Client())
	err := p.Configure(map[string]any{
		"endpoint":  srv.URL,
		"transform": `[.items[] | {title: .name, url: .link}]`,
	})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}

	result, err := invokeTool(t, p, "web_search", `{"query":"x"}`)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	list, ok := result.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("transformed result = %#v", result)
	}
	first := list[0].(map[string]any)
	if first["title"] != "a" || first["url"] != "https://a" {
		t.Errorf("first = %v", first)
	}
}

func TestWeb_FetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><style>body{color:red}</style></head>
			<body><h1>Title</h1><p>First paragraph.</p><script>alert(1)</script>
			<p>Second.</p></body></html>`)
	}))
	defer srv.Close()

	p := NewWeb(srv.Client())
	out := mustInvoke(t, p, "web_fetch", fmt.Sprintf(`{"url":%q}`, srv.URL))

	content := out["content"].(string)
	if !strings.Contains(content, "Title") || !strings.Contains(content, "First paragraph.") {
		t.Errorf("content = %q", content)
	}
	if strings.Contains(content, "alert(1)") || strings.Contains(content, "color:red") {
		t.Errorf("script/style leaked into content: %q", content)
	}
	if out["truncated"].(bool) {
		t.Error("small page should not be truncated")
	}
}

func TestWeb_FetchTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	p := NewWeb(srv.Client())
	if err := p.Configure(map[string]any{"max_fetch_bytes": 10}); err != nil {
		t.Fatal(err)
	}

	out := mustInvoke(t, p, "web_fetch", fmt.Sprintf(`{"url":%q}`, srv.URL))
	if !out["truncated"].(bool) {
		t.Fatal("truncated flag not set")
	}
	content := out["content"].(string)
	if !strings.HasSuffix(content, "[content truncated]") {
		t.Errorf("content = %q", content)
	}
}

func TestWeb_FetchRejectsBadURL(t *testing.T) {
	p := NewWeb(nil)
	for _, u := range []string{"ftp://example.com/x", "file:///etc/passwd", "not a url"} {
		if _, err := invokeTool(t, p, "web_fetch", fmt.Sprintf(`{"url":%q}`, u)); err == nil {
			t.Errorf("fetch %q should fail", u)
		}
	}
}

func TestStripHTML_CollapsesBlankLines(t *testing.T) {
	in := `<div>a</div><div></div><div></div><div>b</div>`
	got := stripHTML(strings.NewReader(in))
	if got != "a\n\nb" {
		t.Errorf("stripHTML = %q", got)
	}
}
