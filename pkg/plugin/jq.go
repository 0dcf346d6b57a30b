package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// JQExpr wraps a jq expression with its pre-parsed query. Parsing
// happens during deserialization so bad expressions fail at load time,
// not on the first tool call.
type JQExpr struct {
	Expr  string
	Query *gojq.Query
}

// ParseJQ parses expr into a JQExpr.
func ParseJQ(expr string) (*JQExpr, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("plugin: invalid jq expression %q: %w", expr, err)
	}
	return &JQExpr{Expr: expr, Query: query}, nil
}

// MarshalJSON implements json.Marshaler.
func (e JQExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Expr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *JQExpr) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Expr); err != nil {
		return err
	}
	return e.parse()
}

// MarshalYAML implements yaml.Marshaler.
func (e JQExpr) MarshalYAML() (any, error) {
	return e.Expr, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *JQExpr) UnmarshalYAML(node *yaml.Node) error {
	if err := node.Decode(&e.Expr); err != nil {
		return err
	}
	return e.parse()
}

// EncodeMsgpack implements msgpack.Marshaler.
func (e JQExpr) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(e.Expr)
}

// DecodeMsgpack implements msgpack.Unmarshaler.
func (e *JQExpr) DecodeMsgpack(dec *msgpack.Decoder) error {
	expr, err := dec.DecodeString()
	if err != nil {
		return err
	}
	e.Expr = expr
	return e.parse()
}

func (e *JQExpr) parse() error {
	if e.Expr == "" {
		e.Query = nil
		return nil
	}
	query, err := gojq.Parse(e.Expr)
	if err != nil {
		return fmt.Errorf("plugin: invalid jq expression %q: %w", e.Expr, err)
	}
	e.Query = query
	return nil
}

// Run executes the query on input and returns the first result as a
// JSON string. A nil or empty expression returns "".
func (e *JQExpr) Run(input any) (string, error) {
	if e == nil || e.Query == nil {
		return "", nil
	}
	iter := e.Query.Run(input)
	v, ok := iter.Next()
	if !ok {
		return "", fmt.Errorf("plugin: jq expression returned no result")
	}
	if err, ok := v.(error); ok {
		return "", fmt.Errorf("plugin: jq: %w", err)
	}
	result, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("plugin: marshal jq result: %w", err)
	}
	return string(result), nil
}
