package ingest

import "strings"

// Default chunking window, in words.
const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 40
)

// piece is one window of a document's text.
type piece struct {
	Content    string
	TokenCount int
}

// Chunk splits text into overlapping word windows of at most size words,
// consecutive windows sharing overlap words. Non-positive sizes fall back to
// the defaults and overlap is clamped below size so the window always
// advances.
func Chunk(text string, size, overlap int) []piece {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	step := size - overlap

	var out []piece
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		w := words[start:end]
		out = append(out, piece{
			Content:    strings.Join(w, " "),
			TokenCount: len(w),
		})
		if end == len(words) {
			break
		}
	}
	return out
}
