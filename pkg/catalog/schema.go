package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parleyhq/parley/pkg/kv"
)

// Schema defines validation rules and the key layout for a kind.
type Schema struct {
	Kind     string
	Required []string
	Optional []string
	KeyFunc  func(fields map[string]any) kv.Key

	// ValidateFn runs after the required-field check.
	ValidateFn func(fields map[string]any) error
}

// Validate checks that all required fields are present and non-empty,
// then runs ValidateFn.
func (s *Schema) Validate(fields map[string]any) error {
	var missing []string
	for _, req := range s.Required {
		val, ok := fields[req]
		if !ok {
			missing = append(missing, req)
			continue
		}
		if str, isStr := val.(string); isStr && str == "" {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("kind %q: missing required fields: %s", s.Kind, strings.Join(missing, ", "))
	}
	if s.ValidateFn != nil {
		return s.ValidateFn(fields)
	}
	return nil
}

// Key returns the store key for this document's fields.
func (s *Schema) Key(fields map[string]any) kv.Key {
	return s.KeyFunc(fields)
}

// SchemaRegistry holds all registered schemas.
type SchemaRegistry struct {
	schemas map[string]*Schema
}

// NewSchemaRegistry creates a registry with all built-in kinds.
func NewSchemaRegistry() *SchemaRegistry {
	r := &SchemaRegistry{schemas: make(map[string]*Schema)}
	registerBuiltinSchemas(r)
	return r
}

// Register adds a schema.
func (r *SchemaRegistry) Register(s *Schema) {
	r.schemas[s.Kind] = s
}

// Get returns the schema for a kind, or nil.
func (r *SchemaRegistry) Get(kind string) *Schema {
	return r.schemas[kind]
}

// Kinds returns all registered kind names, sorted.
func (r *SchemaRegistry) Kinds() []string {
	kinds := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// validateCredFormat checks that a "cred" field has the format
// "service:name".
func validateCredFormat(fields map[string]any) error {
	cred, _ := fields["cred"].(string)
	if cred == "" {
		return nil
	}
	service, name, ok := strings.Cut(cred, ":")
	if !ok || service == "" || name == "" {
		return fmt.Errorf("field 'cred' must be in format 'service:name', got %q", cred)
	}
	return nil
}

// validateTemperature checks the 0..2 range.
func validateTemperature(fields map[string]any) error {
	v, ok := fields["temperature"]
	if !ok {
		return nil
	}
	var temp float64
	switch t := v.(type) {
	case float64:
		temp = t
	case int:
		temp = float64(t)
	default:
		return fmt.Errorf("field 'temperature' must be a number")
	}
	if temp < 0 || temp > 2 {
		return fmt.Errorf("field 'temperature' must be between 0 and 2, got %v", temp)
	}
	return nil
}

// validateMaxTokens checks max_tokens > 0.
func validateMaxTokens(fields map[string]any) error {
	v, ok := fields["max_tokens"]
	if !ok {
		return nil
	}
	var n int
	switch t := v.(type) {
	case int, int64, uint64, float64:
		n = toInt(t)
	default:
		return fmt.Errorf("field 'max_tokens' must be a number")
	}
	if n <= 0 {
		return fmt.Errorf("field 'max_tokens' must be positive, got %d", n)
	}
	return nil
}

// validateEnum checks that a field, when present, is one of the given
// values.
func validateEnum(field string, values ...string) func(map[string]any) error {
	return func(fields map[string]any) error {
		v, ok := fields[field]
		if !ok {
			return nil
		}
		s, isStr := v.(string)
		if !isStr {
			return fmt.Errorf("field %q must be a string", field)
		}
		for _, val := range values {
			if s == val {
				return nil
			}
		}
		return fmt.Errorf("field %q must be one of %s, got %q", field, strings.Join(values, "|"), s)
	}
}

// chainValidators runs validators in sequence.
func chainValidators(validators ...func(map[string]any) error) func(map[string]any) error {
	return func(fields map[string]any) error {
		for _, v := range validators {
			if err := v(fields); err != nil {
				return err
			}
		}
		return nil
	}
}
