package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RunResult holds the output of a run operation.
type RunResult struct {
	Kind   string `json:"kind"`
	Status string `json:"status"` // "ok", "error"

	// Output fields (kind-dependent)
	Text       string `json:"text,omitempty"`
	Usage      string `json:"usage,omitempty"`
	AudioSize  int    `json:"audio_size,omitempty"`
	OutputFile string `json:"output_file,omitempty"`

	// Generic data for JSON output
	Data map[string]any `json:"data,omitempty"`
}

// RunHandler executes one request document.
type RunHandler func(ctx context.Context, c *Catalog, doc Document) (*RunResult, error)

var (
	runMu       sync.RWMutex
	runHandlers = map[string]RunHandler{}
)

// RegisterRunHandler registers a handler for a request kind. Built-in
// kinds register from init; callers may add their own.
func RegisterRunHandler(kind string, h RunHandler) {
	runMu.Lock()
	defer runMu.Unlock()
	runHandlers[kind] = h
}

// RunKinds returns the registered request kinds, sorted.
func RunKinds() []string {
	runMu.RLock()
	defer runMu.RUnlock()
	kinds := make([]string, 0, len(runHandlers))
	for k := range runHandlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Run executes a request document via its registered handler. Request
// documents are not stored; they describe one operation.
func (c *Catalog) Run(ctx context.Context, doc Document) (*RunResult, error) {
	runMu.RLock()
	h, ok := runHandlers[doc.Kind]
	runMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler for kind %q; request kinds: %s",
			doc.Kind, strings.Join(RunKinds(), ", "))
	}
	return h(ctx, c, doc)
}

// ResolveCred resolves a credential reference of the form
// "service:name" (e.g. "openai:main") into the stored document.
func (c *Catalog) ResolveCred(ctx context.Context, ref string) (*Document, error) {
	service, name, ok := strings.Cut(ref, ":")
	if !ok || service == "" || name == "" {
		return nil, fmt.Errorf("invalid credential reference %q, want \"service:name\"", ref)
	}
	doc, err := c.Get(ctx, "creds/"+service+"/"+name)
	if err != nil {
		return nil, fmt.Errorf("resolve credential %q: %w", ref, err)
	}
	return doc, nil
}
