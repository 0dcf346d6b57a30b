// Package plugin provides tool plugins for chat: bundles of callable
// tools the model can invoke during a conversation. A plugin groups
// related tools (file access, web search, code execution) behind one
// name and one options map, and a Registry flattens the enabled
// plugins into the tool list for a request.
package plugin

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/parleyhq/parley/pkg/chat"
)

// Plugin is a named bundle of tools.
type Plugin interface {
	// Name returns the plugin identifier, e.g. "files".
	Name() string

	// Tools returns the plugin's callable tools.
	Tools() []*chat.FuncTool

	// Configure applies an options map, usually decoded from a catalog
	// document. Unknown keys are ignored.
	Configure(options map[string]any) error
}

// Registry holds plugins by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. Registering a name twice is an error.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("plugin: %s already registered", name)
	}
	r.plugins[name] = p
	return nil
}

// Get returns the named plugin.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools flattens the named plugins' tools in the given order. Unknown
// names are an error.
func (r *Registry) Tools(names ...string) ([]*chat.FuncTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tools []*chat.FuncTool
	for _, name := range names {
		p, ok := r.plugins[name]
		if !ok {
			return nil, fmt.Errorf("plugin: %s not registered", name)
		}
		tools = append(tools, p.Tools()...)
	}
	return tools, nil
}

// DefaultRegistry is the registry used by the package-level functions.
var DefaultRegistry = NewRegistry()

// Register adds a plugin to [DefaultRegistry].
func Register(p Plugin) error { return DefaultRegistry.Register(p) }

// Get returns a plugin from [DefaultRegistry].
func Get(name string) (Plugin, bool) { return DefaultRegistry.Get(name) }

// Tools flattens tools from [DefaultRegistry].
func Tools(names ...string) ([]*chat.FuncTool, error) { return DefaultRegistry.Tools(names...) }

// decodeOptions maps an options map onto a typed config struct via a
// JSON round trip, so plugins declare their options with struct tags.
func decodeOptions(options map[string]any, v any) error {
	if len(options) == 0 {
		return nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
