package chat

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

// FuncTool is a callable tool: a name, a description the model reads,
// a JSON schema for the argument, and an invoke function.
type FuncTool struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema

	typeSchemas map[reflect.Type]*jsonschema.Schema

	Invoke InvokeFunc[string]
}

// NewFuncCall binds a raw argument string to this tool.
func (tool *FuncTool) NewFuncCall(args string) *FuncCall {
	return &FuncCall{
		Name:      tool.Name,
		Arguments: args,

		tool: tool,
	}
}

// NewFuncTool builds a tool whose argument schema is derived from
// ArgType via reflection. Without an InvokeFunc option, Invoke
// decodes the argument into *ArgType and returns it.
func NewFuncTool[ArgType any](name, description string, opts ...FuncToolOption[ArgType]) (*FuncTool, error) {
	tool := &FuncTool{
		Name:        name,
		Description: description,
		typeSchemas: make(map[reflect.Type]*jsonschema.Schema),
	}
	for _, opt := range opts {
		opt.applyToFuncTool(tool)
	}

	var err error
	tool.Argument, err = jsonschema.For[ArgType](&jsonschema.ForOptions{
		TypeSchemas: tool.typeSchemas,
	})
	if err != nil {
		return nil, err
	}

	if tool.Invoke == nil {
		tool.Invoke = func(ctx context.Context, _ *FuncCall, arg string) (any, error) {
			return decodeArg[ArgType](arg)
		}
	}
	return tool, nil
}

func MustNewFuncTool[ArgType any](name, description string, opts ...FuncToolOption[ArgType]) *FuncTool {
	tool, err := NewFuncTool(name, description, opts...)
	if err != nil {
		panic(err)
	}
	return tool
}

// decodeArg unmarshals a model-produced argument string (with JSON
// repair) into a fresh T.
func decodeArg[T any](arg string) (*T, error) {
	v := new(T)
	if err := unmarshalJSON([]byte(arg), v); err != nil {
		return nil, fmt.Errorf("chat: unmarshal %q error: %w", arg, err)
	}
	return v, nil
}

type FuncToolOption[ArgType any] interface {
	applyToFuncTool(*FuncTool)
}

// InvokeFunc adapts a typed handler into a FuncTool invoke function.
// The raw argument string is decoded into T before the handler runs.
type InvokeFunc[T any] func(ctx context.Context, call *FuncCall, arg T) (any, error)

func (fn InvokeFunc[T]) applyToFuncTool(t *FuncTool) {
	t.Invoke = func(ctx context.Context, call *FuncCall, arg string) (any, error) {
		v, err := decodeArg[T](arg)
		if err != nil {
			return nil, err
		}
		return fn(ctx, call, *v)
	}
}

// WithSchema overrides the derived schema for a field type T inside
// the argument struct.
func WithSchema[T any](s *jsonschema.Schema) FuncToolOption[any] {
	return &typeSchemaOption{t: reflect.TypeFor[T](), s: s}
}

type typeSchemaOption struct {
	t reflect.Type
	s *jsonschema.Schema
}

func (o *typeSchemaOption) applyToFuncTool(t *FuncTool) {
	t.typeSchemas[o.t] = o.s
}
