package index

import (
	"strings"
	"testing"
)

func TestChunkTextShort(t *testing.T) {
	chunks := ChunkText("hello world", 100, 20)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("", 100, 20); chunks != nil {
		t.Errorf("expected nil for empty text, got %v", chunks)
	}
	if chunks := ChunkText("   \n\t  ", 100, 20); chunks != nil {
		t.Errorf("expected nil for blank text, got %v", chunks)
	}
}

func TestChunkTextWindows(t *testing.T) {
	text := strings.Repeat("word ", 100) // 500 runes
	chunks := ChunkText(text, 100, 20)
	if len(chunks) < 5 {
		t.Fatalf("expected at least 5 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 100 {
			t.Errorf("chunk %d has %d runes, want <= 100", i, n)
		}
	}
	// Whole words survive: the break lands on a space.
	for i, c := range chunks {
		for _, w := range strings.Fields(c) {
			if w != "word" {
				t.Fatalf("chunk %d contains split word %q", i, w)
			}
		}
	}
}

func TestChunkTextOverlap(t *testing.T) {
	// No break candidates, so windows are exact and overlap is visible.
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100, 50)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 {
		t.Errorf("first chunk has %d runes, want 100", len(chunks[0]))
	}
	// Step is size-overlap = 50, so the last window starts at 150.
	if len(chunks[3]) != 100 {
		t.Errorf("last chunk has %d runes, want 100", len(chunks[3]))
	}
}

func TestChunkTextBreaksAtNewline(t *testing.T) {
	text := strings.Repeat("x", 90) + "\n" + strings.Repeat("y", 90)
	chunks := ChunkText(text, 100, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if strings.Contains(chunks[0], "y") {
		t.Errorf("first chunk crossed the newline: %q", chunks[0])
	}
}

func TestChunkTextRuneSafe(t *testing.T) {
	// Multi-byte runes must never be split mid-sequence.
	text := strings.Repeat("你好世界", 100) // 400 runes
	chunks := ChunkText(text, 64, 16)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if !strings.ContainsRune(c, '你') && !strings.ContainsRune(c, '好') {
			t.Errorf("chunk %d lost its runes: %q", i, c)
		}
		if strings.ContainsRune(c, '�') {
			t.Errorf("chunk %d contains a replacement rune", i)
		}
	}
}

func TestChunkTextBadParams(t *testing.T) {
	text := strings.Repeat("word ", 400)
	// Zero size falls back to the default, so one call must not loop
	// or panic and must cover the whole text.
	chunks := ChunkText(text, 0, -5)
	if len(chunks) == 0 {
		t.Fatal("expected chunks with default params")
	}
	// Overlap >= size is rejected and replaced.
	chunks = ChunkText(text, 50, 50)
	if len(chunks) == 0 {
		t.Fatal("expected chunks with clamped overlap")
	}
}
