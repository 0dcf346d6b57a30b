package plugin

import (
	"testing"

	"github.com/parleyhq/parley/pkg/chat"
)

type staticPlugin struct {
	name  string
	tools []*chat.FuncTool
}

func (p *staticPlugin) Name() string                 { return p.name }
func (p *staticPlugin) Tools() []*chat.FuncTool      { return p.tools }
func (p *staticPlugin) Configure(map[string]any) error { return nil }

func namedTool(t *testing.T, name string) *chat.FuncTool {
	t.Helper()
	tool, err := chat.NewFuncTool[struct{}](name, "test tool")
	if err != nil {
		t.Fatalf("NewFuncTool: %v", err)
	}
	return tool
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &staticPlugin{name: "alpha"}
	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&staticPlugin{name: "alpha"}); err == nil {
		t.Error("duplicate Register should fail")
	}

	got, ok := r.Get("alpha")
	if !ok || got != p {
		t.Errorf("Get(alpha) = %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"web", "files", "code"} {
		if err := r.Register(&staticPlugin{name: name}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}
	names := r.Names()
	want := []string{"code", "files", "web"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistry_Tools(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&staticPlugin{
		name:  "a",
		tools: []*chat.FuncTool{namedTool(t, "a_one"), namedTool(t, "a_two")},
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&staticPlugin{
		name:  "b",
		tools: []*chat.FuncTool{namedTool(t, "b_one")},
	}); err != nil {
		t.Fatal(err)
	}

	tools, err := r.Tools("a", "b")
	if err != nil {
		t.Fatalf("Tools: %v", err)
	}
	var got []string
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	want := []string{"a_one", "a_two", "b_one"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if _, err := r.Tools("a", "nope"); err == nil {
		t.Error("Tools with unknown plugin should fail")
	}
}

func TestParseJQ(t *testing.T) {
	jq, err := ParseJQ(`{q: .query}`)
	if err != nil {
		t.Fatalf("ParseJQ: %v", err)
	}
	out, err := jq.Run(map[string]any{"query": "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != `{"q":"hello"}` {
		t.Errorf("Run = %q", out)
	}

	if _, err := ParseJQ(`.[unclosed`); err == nil {
		t.Error("ParseJQ should reject bad expressions")
	}
}

func TestJQExpr_NilRunsEmpty(t *testing.T) {
	var jq *JQExpr
	out, err := jq.Run(map[string]any{"x": 1})
	if err != nil || out != "" {
		t.Errorf("nil Run = %q, %v", out, err)
	}
}
