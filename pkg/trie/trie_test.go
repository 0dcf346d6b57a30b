package trie

import (
	"testing"
)

func TestExactMatch(t *testing.T) {
	tr := New[string]()
	if err := tr.Set("openai/tts-1", "exact"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tr.Set("openai/#", "fallback"); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, ok := tr.Get("openai/tts-1")
	if !ok || v != "exact" {
		t.Errorf("Get = %q, %v; want exact", v, ok)
	}
	v, ok = tr.Get("openai/tts-1-hd")
	if !ok || v != "fallback" {
		t.Errorf("Get fallback = %q, %v", v, ok)
	}
	if _, ok := tr.Get("elevenlabs/x"); ok {
		t.Error("unrelated path should not match")
	}
}

func TestWildcardPrecedence(t *testing.T) {
	tr := New[int]()
	tr.Set("a/b", 1)
	tr.Set("a/+", 2)
	tr.Set("a/#", 3)
	tr.Set("#", 4)

	cases := []struct {
		path string
		want int
	}{
		{"a/b", 1},
		{"a/c", 2},
		{"a/c/d", 3},
		{"z", 4},
		{"z/y/x", 4},
	}
	for _, tc := range cases {
		got, ok := tr.Get(tc.path)
		if !ok || got != tc.want {
			t.Errorf("Get(%q) = %d, %v; want %d", tc.path, got, ok, tc.want)
		}
	}
}

func TestMatchReturnsPattern(t *testing.T) {
	tr := New[string]()
	tr.Set("google/+/long", "v")
	pat, _, ok := tr.Match("google/latest/long")
	if !ok || pat != "google/+/long" {
		t.Errorf("Match pattern = %q, %v", pat, ok)
	}
}

func TestBadPatterns(t *testing.T) {
	tr := New[int]()
	if err := tr.Set("a/#/b", 1); err != ErrBadPattern {
		t.Errorf("mid # accepted: %v", err)
	}
	if err := tr.Set("a//b", 1); err != ErrBadPattern {
		t.Errorf("empty segment accepted: %v", err)
	}
}

func TestDeleteAndLen(t *testing.T) {
	tr := New[int]()
	tr.Set("a/b", 1)
	tr.Set("a/+", 2)
	if tr.Len() != 2 {
		t.Fatalf("Len = %d", tr.Len())
	}
	if !tr.Delete("a/b") {
		t.Error("delete existing returned false")
	}
	if tr.Delete("a/b") {
		t.Error("second delete returned true")
	}
	if tr.Len() != 1 {
		t.Errorf("Len after delete = %d", tr.Len())
	}
	if v, ok := tr.Get("a/b"); !ok || v != 2 {
		t.Errorf("after delete Get = %d, %v; want wildcard 2", v, ok)
	}
}

func TestSetReplaces(t *testing.T) {
	tr := New[int]()
	tr.Set("x", 1)
	tr.Set("x", 9)
	if tr.Len() != 1 {
		t.Errorf("Len = %d after replace", tr.Len())
	}
	if v, _ := tr.Get("x"); v != 9 {
		t.Errorf("Get = %d, want 9", v)
	}
}

func TestPatterns(t *testing.T) {
	tr := New[int]()
	tr.Set("b/c", 1)
	tr.Set("a", 2)
	tr.Set("a/+", 3)
	got := tr.Patterns()
	want := []string{"a", "a/+", "b/c"}
	if len(got) != len(want) {
		t.Fatalf("Patterns = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Patterns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
