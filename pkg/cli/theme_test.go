package cli

import (
	"strings"
	"testing"
)

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"日本語テキスト", 4, "日本"},
	}
	for _, tt := range tests {
		if got := truncateToWidth(tt.in, tt.width); got != tt.want {
			t.Errorf("truncateToWidth(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestFrame_Render(t *testing.T) {
	f := Frame{Styles: NewStyles(DefaultTheme), Title: "talk", Status: "live"}
	out := f.Render(40, []string{"you: hi", "assistant: hello"})

	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
	if !strings.Contains(out, "you: hi") || !strings.Contains(out, "assistant: hello") {
		t.Errorf("content missing from frame:\n%s", out)
	}
	if !strings.Contains(lines[0], "╭") || !strings.Contains(lines[len(lines)-1], "╰") {
		t.Errorf("borders missing:\n%s", out)
	}
}
