package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestApplyGetDelete(t *testing.T) {
	setupTestEnv(t)

	file := writeTestFile(t, "cred.yaml", `kind: creds/openai
name: main
api_key: sk-test-1234567890
`)

	stdout, stderr, code := runCmd(t, "apply", "-f", file)
	if code != 0 {
		t.Fatalf("apply failed: %s", stderr)
	}
	if !strings.Contains(stdout, "created") {
		t.Fatalf("expected created status, got: %s", stdout)
	}

	// Re-apply reports configured.
	stdout, _, code = runCmd(t, "apply", "-f", file)
	if code != 0 || !strings.Contains(stdout, "configured") {
		t.Fatalf("expected configured status, got: %s", stdout)
	}

	stdout, _, code = runCmd(t, "get", "creds/openai/main")
	if code != 0 {
		t.Fatalf("get failed")
	}
	if strings.Contains(stdout, "sk-test-1234567890") {
		t.Fatalf("api key should be masked: %s", stdout)
	}
	if !strings.Contains(stdout, "sk-t") {
		t.Fatalf("expected masked key prefix, got: %s", stdout)
	}

	stdout, _, code = runCmd(t, "delete", "creds/openai/main")
	if code != 0 || !strings.Contains(stdout, "Deleted") {
		t.Fatalf("delete failed: %s", stdout)
	}

	_, stderr, code = runCmd(t, "get", "creds/openai/main")
	if code == 0 {
		t.Fatal("expected get after delete to fail")
	}
	if !strings.Contains(stderr, "creds/openai/main") {
		t.Fatalf("unexpected error: %s", stderr)
	}
}

func TestApplyMissingFile(t *testing.T) {
	setupTestEnv(t)

	_, _, code := runCmd(t, "apply", "-f", "/nonexistent/file.yaml")
	if code == 0 {
		t.Fatal("expected apply with missing file to fail")
	}
}

func TestApplyInvalidDocument(t *testing.T) {
	setupTestEnv(t)

	file := writeTestFile(t, "bad.yaml", `kind: model
name: incomplete
`)

	_, stderr, code := runCmd(t, "apply", "-f", file)
	if code == 0 {
		t.Fatal("expected apply with incomplete model to fail")
	}
	if !strings.Contains(stderr, "missing required fields") {
		t.Fatalf("unexpected error: %s", stderr)
	}
}

func TestListPresets(t *testing.T) {
	setupTestEnv(t)

	file := writeTestFile(t, "presets.yaml", `kind: preset
name: coder
model: gpt-4o
---
kind: preset
name: writer
model: claude-sonnet
`)
	if _, stderr, code := runCmd(t, "apply", "-f", file); code != 0 {
		t.Fatalf("apply failed: %s", stderr)
	}

	stdout, _, code := runCmd(t, "list", "preset/*", "--all")
	if code != 0 {
		t.Fatalf("list failed")
	}
	if !strings.Contains(stdout, "coder") || !strings.Contains(stdout, "writer") {
		t.Fatalf("expected both presets, got: %s", stdout)
	}
	if !strings.Contains(stdout, "(2 items)") {
		t.Fatalf("expected item count, got: %s", stdout)
	}
}

func TestListBadPattern(t *testing.T) {
	setupTestEnv(t)

	_, _, code := runCmd(t, "list", "preset")
	if code == 0 {
		t.Fatal("expected list without wildcard to fail")
	}
}

func TestRunMissingFile(t *testing.T) {
	setupTestEnv(t)

	_, _, code := runCmd(t, "run")
	if code == 0 {
		t.Fatal("expected run without -f to fail")
	}
}

func TestRunUnknownKind(t *testing.T) {
	setupTestEnv(t)
	runCmd(t, "profile", "add", "dev")
	runCmd(t, "profile", "use", "dev")

	file := writeTestFile(t, "req.yaml", `kind: preset
name: whatever
`)

	_, stderr, code := runCmd(t, "run", "-f", file)
	if code == 0 {
		t.Fatal("expected run with non-runnable kind to fail")
	}
	if !strings.Contains(stderr, "no handler") {
		t.Fatalf("unexpected error: %s", stderr)
	}
}
