package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"buy milk"}, SplitText("  buy milk \n", 100, 10))
}

func TestSplitTextKeepsWordsWhole(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 20)

	chunks := SplitText(text, 40, 8)

	require.Greater(t, len(chunks), 1)
	words := map[string]bool{"alpha": true, "beta": true, "gamma": true, "delta": true}
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 40)
		for _, w := range strings.Fields(c) {
			assert.True(t, words[w], "split word %q in chunk %q", w, c)
		}
	}
	assert.True(t, strings.HasSuffix(strings.TrimSpace(text), chunks[len(chunks)-1]))
}

func TestSplitTextCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 25)

	chunks := SplitText(text, 10, 0)

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])
}

func TestSplitTextOverlapNeverStalls(t *testing.T) {
	text := strings.Repeat("x", 50)

	chunks := SplitText(text, 10, 10)

	assert.Len(t, chunks, 5)
}
