// Package chunker splits extracted document text into overlapping,
// boundary-aware chunks of bounded size, ready for embedding.
package chunker

import (
	"strings"
	"unicode"
)

// Chunker produces overlapping chunks of at most Size characters.
type Chunker struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is how many characters consecutive chunks share. Must be
	// strictly less than Size to guarantee forward progress.
	Overlap int
}

// New returns a Chunker, clamping a too-large overlap to Size-1.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into chunks of at most c.Size characters. Text that
// already fits is returned whole. Otherwise a window slides across the text;
// each cut is pulled back to the nearest space, period, or newline inside the
// window so words survive intact, and consecutive windows share c.Overlap
// characters. Input is cleaned first; empty chunks are dropped.
func (c *Chunker) Chunk(text string) []string {
	text = Clean(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.Size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.Size
		if end < len(text) {
			if b := lastBoundary(text[start:end]); b > 0 {
				end = start + b + 1
			}
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}
		// A boundary cut close to the window start could otherwise move the
		// window backwards once the overlap is subtracted.
		next := end - c.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastBoundary returns the index of the rightmost space, period, or newline
// in window, or -1 when no boundary exists.
func lastBoundary(window string) int {
	b := strings.LastIndexByte(window, ' ')
	if i := strings.LastIndexByte(window, '.'); i > b {
		b = i
	}
	if i := strings.LastIndexByte(window, '\n'); i > b {
		b = i
	}
	return b
}

// Clean normalises extracted text: runs of whitespace collapse to a single
// space and control characters other than newline and tab are stripped.
func Clean(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inSpace := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || unicode.IsSpace(r):
			inSpace = true
		case unicode.IsControl(r):
			// drop
		default:
			if inSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			inSpace = false
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
