package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parleyhq/parley/pkg/catalog"
	"github.com/parleyhq/parley/pkg/kv"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New("", catalog.WithKV(kv.NewMemory(nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustApply(t *testing.T, c *catalog.Catalog, docs ...catalog.Document) []catalog.ApplyResult {
	t.Helper()
	results, err := c.Apply(context.Background(), docs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return results
}

func credDoc(service, name, apiKey string) catalog.Document {
	return catalog.Document{
		Kind:   "creds/" + service,
		Fields: map[string]any{"name": name, "api_key": apiKey},
	}
}

func TestApply_CreateThenConfigure(t *testing.T) {
	c := newTestCatalog(t)

	results := mustApply(t, c, credDoc("openai", "main", "sk-1"))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Status != "created" {
		t.Errorf("status = %q, want created", results[0].Status)
	}
	if results[0].Key != "creds/openai/main" {
		t.Errorf("key = %q, want creds/openai/main", results[0].Key)
	}

	results = mustApply(t, c, credDoc("openai", "main", "sk-2"))
	if results[0].Status != "configured" {
		t.Errorf("re-apply status = %q, want configured", results[0].Status)
	}

	doc, err := c.Get(context.Background(), "creds/openai/main")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := doc.GetString("api_key"); got != "sk-2" {
		t.Errorf("api_key = %q, want sk-2", got)
	}
	if doc.Kind != "creds/openai" {
		t.Errorf("kind = %q, want creds/openai", doc.Kind)
	}
}

func TestApply_UnknownKind(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Apply(context.Background(), []catalog.Document{
		{Kind: "widget", Fields: map[string]any{"name": "x"}},
	})
	if err == nil {
		t.Fatal("want error for unknown kind")
	}
	if !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("error = %v, want mention of unknown kind", err)
	}
	// The error should name the known kinds so the user can fix the doc.
	if !strings.Contains(err.Error(), "preset") {
		t.Errorf("error = %v, want known kinds listed", err)
	}
}

func TestApply_MissingRequiredFields(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Apply(context.Background(), []catalog.Document{
		{Kind: "model", Fields: map[string]any{"name": "gpt"}},
	})
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, field := range []string{"provider", "model", "cred"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %v does not name missing field %q", err, field)
		}
	}
}

func TestApply_Validators(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	base := func() map[string]any {
		return map[string]any{
			"name":     "gpt",
			"provider": "openai",
			"model":    "gpt-4o",
			"cred":     "openai:main",
		}
	}

	cases := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr string
	}{
		{"bad provider", func(f map[string]any) { f["provider"] = "mistral" }, "provider"},
		{"bad cred format", func(f map[string]any) { f["cred"] = "openai" }, "service:name"},
		{"temperature too high", func(f map[string]any) { f["temperature"] = 3.5 }, "between 0 and 2"},
		{"zero max_tokens", func(f map[string]any) { f["max_tokens"] = 0 }, "positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := base()
			tc.mutate(fields)
			_, err := c.Apply(ctx, []catalog.Document{{Kind: "model", Fields: fields}})
			if err == nil {
				t.Fatal("want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tc.wantErr)
			}
		})
	}

	// The unmutated document is valid.
	if _, err := c.Apply(ctx, []catalog.Document{{Kind: "model", Fields: base()}}); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.Get(context.Background(), "preset/nope")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("err = %v, want kv.ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "preset/nope") {
		t.Errorf("error = %v, want full name in message", err)
	}
}

func TestList_Prefix(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		mustApply(t, c, catalog.Document{
			Kind:   "preset",
			Fields: map[string]any{"name": name, "model": "gpt"},
		})
	}
	mustApply(t, c, credDoc("openai", "main", "sk"))

	docs, err := c.List(ctx, "preset/*", catalog.ListOpts{All: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d presets, want 3", len(docs))
	}
	for _, d := range docs {
		if d.Kind != "preset" {
			t.Errorf("kind = %q, want preset", d.Kind)
		}
	}

	docs, err = c.List(ctx, "preset/*", catalog.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d presets with limit 2, want 2", len(docs))
	}

	// Resume after "alpha".
	docs, err = c.List(ctx, "preset/*", catalog.ListOpts{From: "preset/alpha", All: true})
	if err != nil {
		t.Fatalf("List from: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d presets after alpha, want 2", len(docs))
	}
	if got := docs[0].Name(); got != "beta" {
		t.Errorf("first after alpha = %q, want beta", got)
	}
}

func TestList_BadPattern(t *testing.T) {
	c := newTestCatalog(t)

	if _, err := c.List(context.Background(), "preset", catalog.ListOpts{}); err == nil {
		t.Fatal("want error for pattern without trailing '*'")
	}
}

func TestDelete(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	mustApply(t, c, credDoc("xai", "grok", "xk"))
	if err := c.Delete(ctx, "creds/xai/grok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "creds/xai/grok"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("after delete: err = %v, want kv.ErrNotFound", err)
	}
	if err := c.Delete(ctx, "creds/xai/grok"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("delete missing: err = %v, want kv.ErrNotFound", err)
	}
}

func TestResolveCred(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	mustApply(t, c, credDoc("anthropic", "work", "ak"))

	doc, err := c.ResolveCred(ctx, "anthropic:work")
	if err != nil {
		t.Fatalf("ResolveCred: %v", err)
	}
	if got := doc.GetString("api_key"); got != "ak" {
		t.Errorf("api_key = %q, want ak", got)
	}

	if _, err := c.ResolveCred(ctx, "anthropic"); err == nil {
		t.Error("want error for ref without ':'")
	}
	if _, err := c.ResolveCred(ctx, "anthropic:missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("missing cred: err = %v, want kv.ErrNotFound", err)
	}
}

func TestParseDocuments(t *testing.T) {
	input := `kind: creds/openai
name: main
api_key: sk-test
---
kind: preset
name: coder
model: gpt
system: You are a coding assistant.
`
	docs, err := catalog.ParseDocuments([]byte(input))
	if err != nil {
		t.Fatalf("ParseDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Kind != "creds/openai" || docs[0].Name() != "main" {
		t.Errorf("doc[0] = %s/%s", docs[0].Kind, docs[0].Name())
	}
	if docs[1].FullName() != "preset/coder" {
		t.Errorf("doc[1] full name = %q, want preset/coder", docs[1].FullName())
	}

	if _, err := catalog.ParseDocuments([]byte("name: nokind\n")); err == nil {
		t.Error("want error for document without kind")
	}
}

func TestSchemaRegistry_Kinds(t *testing.T) {
	c := newTestCatalog(t)

	kinds := c.Schemas().Kinds()
	want := []string{"creds/anthropic", "creds/openai", "model", "preset", "realtime", "voice", "plugin"}
	for _, w := range want {
		found := false
		for _, k := range kinds {
			if k == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("built-in kind %q not registered (have %v)", w, kinds)
		}
	}
}
