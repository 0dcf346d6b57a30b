// Package catalog is the configuration layer: models, presets,
// credentials, voice bindings, realtime profiles and plugin
// configuration live in a kv-backed document store with per-kind
// schemas, addressed "kind/name". Request documents run through a
// registered handler dispatch, and a profile store keeps per-profile
// settings under the user config directory.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/parleyhq/parley/pkg/kv"
	"github.com/parleyhq/parley/pkg/plugin"
	"github.com/parleyhq/parley/pkg/voice"
)

// Catalog provides Apply/Get/List/Delete over documents with schema
// validation, plus run dispatch for request kinds.
type Catalog struct {
	kv      kv.Store
	schemas *SchemaRegistry
	ownsKV  bool

	streamW io.Writer
	plugins *plugin.Registry

	// voices caches built synthesis/transcription adapters per
	// voice document, keyed "provider/name". closers holds adapter
	// teardown run at Close.
	voices  *voice.Mux
	closers []func() error
}

// Option configures Catalog creation.
type Option func(*options)

type options struct {
	kv kv.Store
}

// WithKV injects a store. The caller keeps ownership; Close will not
// close it.
func WithKV(store kv.Store) Option {
	return func(o *options) { o.kv = store }
}

// New creates a Catalog over the given store URL (see kv.Open). Use
// WithKV to inject a store instead.
func New(url string, opts ...Option) (*Catalog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.kv
	ownsKV := false
	if store == nil {
		var err error
		store, err = kv.Open(url)
		if err != nil {
			return nil, fmt.Errorf("catalog: open store: %w", err)
		}
		ownsKV = true
	}

	return &Catalog{
		kv:      store,
		schemas: NewSchemaRegistry(),
		ownsKV:  ownsKV,
		voices:  voice.NewMux(),
	}, nil
}

// KV returns the underlying store.
func (c *Catalog) KV() kv.Store { return c.kv }

// SetStreamWriter directs incremental output from streaming run
// handlers (chat-stream) to w. Unset, chunks are discarded and only
// the final result is returned.
func (c *Catalog) SetStreamWriter(w io.Writer) { c.streamW = w }

func (c *Catalog) streamWriter() io.Writer {
	if c.streamW != nil {
		return c.streamW
	}
	return io.Discard
}

// SetPlugins binds a plugin registry so chat handlers can attach
// plugin tools. Unset, the package default registry is used.
func (c *Catalog) SetPlugins(r *plugin.Registry) { c.plugins = r }

func (c *Catalog) pluginRegistry() *plugin.Registry {
	if c.plugins != nil {
		return c.plugins
	}
	return plugin.DefaultRegistry
}

// Schemas returns the schema registry.
func (c *Catalog) Schemas() *SchemaRegistry { return c.schemas }

// Voices returns the catalog's voice mux. Adapters registered here
// take priority over ones built from voice documents.
func (c *Catalog) Voices() *voice.Mux { return c.voices }

// Close releases resources: cached voice adapters shut down first,
// then the store. An injected store is not closed.
func (c *Catalog) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	if c.ownsKV && c.kv != nil {
		errs = append(errs, c.kv.Close())
	}
	return errors.Join(errs...)
}

// Apply validates and writes documents. This is the single write entry
// point; every command and handler goes through it.
func (c *Catalog) Apply(ctx context.Context, docs []Document) ([]ApplyResult, error) {
	var results []ApplyResult
	for i, doc := range docs {
		result, err := c.applyOne(ctx, doc)
		if err != nil {
			return results, fmt.Errorf("document %d (kind=%s): %w", i, doc.Kind, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *Catalog) applyOne(ctx context.Context, doc Document) (ApplyResult, error) {
	schema := c.schemas.Get(doc.Kind)
	if schema == nil {
		return ApplyResult{}, fmt.Errorf("unknown kind %q; known kinds: %s",
			doc.Kind, strings.Join(c.schemas.Kinds(), ", "))
	}

	if err := schema.Validate(doc.Fields); err != nil {
		return ApplyResult{}, err
	}

	key := schema.Key(doc.Fields)

	_, existErr := c.kv.Get(ctx, key)
	status := "created"
	if existErr == nil {
		status = "configured"
	}

	data, err := yaml.Marshal(doc.Fields)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("marshal: %w", err)
	}
	if err := c.kv.Set(ctx, key, data); err != nil {
		return ApplyResult{}, fmt.Errorf("write store: %w", err)
	}

	return ApplyResult{
		Kind:   doc.Kind,
		Name:   doc.Name(),
		Key:    key.String(),
		Status: status,
	}, nil
}

// Get retrieves a single document by its full name, like
// "creds/openai/main" or "preset/coder".
func (c *Catalog) Get(ctx context.Context, fullName string) (*Document, error) {
	key := parseFullName(fullName)

	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", fullName, kv.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", fullName, err)
	}

	var fields map[string]any
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fullName, err)
	}
	return &Document{Kind: inferKind(key), Fields: fields}, nil
}

// List returns documents matching a prefix pattern like "preset/*" or
// "creds/openai/*". The pattern must end with "*".
func (c *Catalog) List(ctx context.Context, pattern string, opts ListOpts) ([]Document, error) {
	if !strings.HasSuffix(pattern, "*") {
		return nil, fmt.Errorf("list pattern must end with '*', got %q", pattern)
	}
	prefix := strings.TrimSuffix(strings.TrimSuffix(pattern, "*"), "/")
	key := parseFullName(prefix)

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if opts.All {
		limit = -1
	}

	var docs []Document
	pastFrom := opts.From == ""

	for entry, err := range c.kv.List(ctx, key) {
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}

		if !pastFrom {
			if entry.Key.String() == opts.From {
				pastFrom = true
			}
			continue
		}

		var fields map[string]any
		if err := yaml.Unmarshal(entry.Value, &fields); err != nil {
			continue
		}
		docs = append(docs, Document{Kind: inferKind(entry.Key), Fields: fields})

		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	return docs, nil
}

// Delete removes a single document by its full name.
func (c *Catalog) Delete(ctx context.Context, fullName string) error {
	key := parseFullName(fullName)

	if _, err := c.kv.Get(ctx, key); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("%s: %w", fullName, kv.ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", fullName, err)
	}
	if err := c.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", fullName, err)
	}
	return nil
}

// parseFullName splits "creds/openai/main" into its key segments.
func parseFullName(name string) kv.Key {
	if name == "" {
		return nil
	}
	return kv.Key(strings.Split(name, "/"))
}

// inferKind reconstructs the kind from a store key: creds keys carry
// the vendor in the kind ("creds/openai"), everything else is the
// first segment.
func inferKind(key kv.Key) string {
	if len(key) >= 2 && key[0] == "creds" {
		return "creds/" + key[1]
	}
	if len(key) == 0 {
		return ""
	}
	return key[0]
}
