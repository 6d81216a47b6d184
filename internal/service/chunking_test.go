package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWords_SplitsAtBudget(t *testing.T) {
	text := words(1200, "w")

	chunks := ChunkWords(text, 500)

	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[0]), 500)
	assert.Len(t, strings.Fields(chunks[1]), 500)
	assert.Len(t, strings.Fields(chunks[2]), 200)
	assert.True(t, strings.HasPrefix(chunks[1], "w500 "))
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(chunks, " ")))
}

func TestChunkWords_Empty(t *testing.T) {
	assert.Nil(t, ChunkWords("", 10))
	assert.Nil(t, ChunkWords(" \n\t ", 10))
}

func TestChunkWords_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, []string{"a b", "c"}, ChunkWords("  a\n\nb\tc ", 2))
}

func TestChunkWords_NonPositiveBudgetUsesMainDefault(t *testing.T) {
	chunks := ChunkWords(words(501, "x"), 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "x500", chunks[1])
}

func TestChunkConfig_WithDefaults(t *testing.T) {
	cfg := ChunkConfig{MainWords: 10}.withDefaults()
	assert.Equal(t, 10, cfg.MainWords)
	assert.Equal(t, 200, cfg.CommentWords)
}
