package index

import "strings"

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 200
)

// ChunkText splits text into rune windows of at most size runes, each
// window overlapping the previous by overlap runes. Windows prefer to
// break at a newline or space near the end so chunks do not cut words.
// The next window starts overlap runes before the previous break, so
// no text is skipped. size <= 0 and out-of-range overlaps fall back to
// the defaults.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		if chunk := strings.TrimSpace(text); chunk != "" {
			return []string{chunk}
		}
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		last := end >= len(runes)
		if last {
			end = len(runes)
		} else if cut := breakAt(runes, start, end); cut > start {
			end = cut
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if last {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakAt scans backwards from end for a newline, then a space, within
// the last quarter of the window. Returns end when no break is found.
func breakAt(runes []rune, start, end int) int {
	floor := end - (end-start)/4
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= floor; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}
