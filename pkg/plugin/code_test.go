package plugin

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func skipWithoutSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
}

func TestCode_Execute(t *testing.T) {
	skipWithoutSh(t)
	p := NewCode(t.TempDir())

	out := mustInvoke(t, p, "code_execute", `{"language":"sh","code":"echo hello"}`)
	if got := out["stdout"].(string); strings.TrimSpace(got) != "hello" {
		t.Errorf("stdout = %q", got)
	}
	if out["exit_code"].(int) != 0 {
		t.Errorf("exit_code = %v", out["exit_code"])
	}
}

func TestCode_NonZeroExit(t *testing.T) {
	skipWithoutSh(t)
	p := NewCode(t.TempDir())

	out := mustInvoke(t, p, "code_execute", `{"language":"sh","code":"echo oops >&2; exit 3"}`)
	if out["exit_code"].(int) != 3 {
		t.Errorf("exit_code = %v", out["exit_code"])
	}
	if got := out["stderr"].(string); !strings.Contains(got, "oops") {
		t.Errorf("stderr = %q", got)
	}
}

func TestCode_DisallowedLanguage(t *testing.T) {
	p := NewCode(t.TempDir())
	_, err := invokeTool(t, p, "code_execute", `{"language":"ruby","code":"puts 1"}`)
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("err = %v", err)
	}
}

func TestCode_EmptyCode(t *testing.T) {
	p := NewCode(t.TempDir())
	if _, err := invokeTool(t, p, "code_execute", `{"language":"sh","code":"  "}`); err == nil {
		t.Error("empty code should fail")
	}
}

func TestCode_Timeout(t *testing.T) {
	skipWithoutSh(t)
	p := NewCode(t.TempDir())
	if err := p.Configure(map[string]any{"timeout_seconds": 1}); err != nil {
		t.Fatal(err)
	}

	out := mustInvoke(t, p, "code_execute", `{"language":"sh","code":"sleep 5"}`)
	if v, _ := out["timed_out"].(bool); !v {
		t.Error("timed_out flag not set")
	}
}

func TestCode_OutputCap(t *testing.T) {
	skipWithoutSh(t)
	p := NewCode(t.TempDir())
	if err := p.Configure(map[string]any{"max_output_bytes": 16}); err != nil {
		t.Fatal(err)
	}

	out := mustInvoke(t, p, "code_execute", `{"language":"sh","code":"yes x | head -n 1000"}`)
	if v, _ := out["output_truncated"].(bool); !v {
		t.Error("output_truncated flag not set")
	}
	if got := out["stdout"].(string); !strings.HasSuffix(got, "[output truncated]") {
		t.Errorf("stdout = %q", got)
	}
}

func TestCode_ConfigureRejectsEmptyInterpreter(t *testing.T) {
	p := NewCode(t.TempDir())
	err := p.Configure(map[string]any{"interpreters": map[string]any{"bad": []any{}}})
	if err == nil {
		t.Error("empty interpreter argv should be rejected")
	}
}

func TestCode_WorkdirIsCwd(t *testing.T) {
	skipWithoutSh(t)
	dir := t.TempDir()
	p := NewCode(dir)

	out := mustInvoke(t, p, "code_execute", `{"language":"sh","code":"pwd -P"}`)
	got := strings.TrimSpace(out["stdout"].(string))
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}
