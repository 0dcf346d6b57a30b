package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// Document is the universal resource representation: every apply, get,
// list, delete and run operation works with Documents. Kind selects the
// schema used for validation and the key layout in the store.
type Document struct {
	Kind   string         `yaml:"kind" json:"kind"`
	Fields map[string]any `yaml:",inline" json:",inline"`
}

// Name returns the "name" field, or "".
func (d *Document) Name() string {
	return d.GetString("name")
}

// FullName returns the display name: "kind/name".
func (d *Document) FullName() string {
	return d.Kind + "/" + d.Name()
}

// GetString returns a string field, or "".
func (d *Document) GetString(key string) string {
	if s, ok := d.Fields[key].(string); ok {
		return s
	}
	return ""
}

// GetBool returns a bool field, or false.
func (d *Document) GetBool(key string) bool {
	if b, ok := d.Fields[key].(bool); ok {
		return b
	}
	return false
}

// GetFloat returns a numeric field as float64, or 0.
func (d *Document) GetFloat(key string) float64 {
	switch n := d.Fields[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

// GetInt returns a numeric field as int, or 0.
func (d *Document) GetInt(key string) int {
	return toInt(d.Fields[key])
}

// GetStrings returns a list field as strings, skipping non-string
// elements.
func (d *Document) GetStrings(key string) []string {
	list, ok := d.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetMap returns a map field, or nil.
func (d *Document) GetMap(key string) map[string]any {
	if m, ok := d.Fields[key].(map[string]any); ok {
		return m
	}
	return nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// ApplyResult describes the outcome of applying one document.
type ApplyResult struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Key    string `json:"key"`
	Status string `json:"status"` // "created", "configured"
}

// ListOpts controls list pagination.
type ListOpts struct {
	Limit int    // max items (default 10)
	From  string // start after this full name
	All   bool   // ignore limit, return everything
}

// ParseDocuments parses a multi-document YAML stream ("---" separated).
func ParseDocuments(data []byte) ([]Document, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var docs []Document
	for {
		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("catalog: parse yaml: %w", err)
		}
		if raw == nil {
			continue
		}
		kind, _ := raw["kind"].(string)
		if kind == "" {
			return nil, fmt.Errorf("catalog: document missing 'kind' field")
		}
		delete(raw, "kind")
		docs = append(docs, Document{Kind: kind, Fields: raw})
	}
	return docs, nil
}

// ParseDocumentsFromFile reads and parses a YAML file. "-" reads stdin.
func ParseDocumentsFromFile(path string) ([]Document, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return ParseDocuments(data)
}
