package utils

import (
	"strings"
	"unicode"
)

// SplitText cuts text into chunks of at most chunkSize runes. Each chunk
// starts on a word and shares up to overlap runes with the previous one. A
// chunk ends at the last whitespace in its final quarter when there is one.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{string(runes)}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		end = wordBoundary(runes, start+chunkSize*3/4, end)
		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))

		next := wordStart(runes, end-overlap, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// wordBoundary returns the index just after the last space in runes[from:to],
// or to when the window has none.
func wordBoundary(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return to
}

// wordStart moves i forward to the start of the next word when it points
// inside one, without passing limit.
func wordStart(runes []rune, i, limit int) int {
	if i <= 0 || unicode.IsSpace(runes[i-1]) {
		return i
	}
	for ; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return limit
}
