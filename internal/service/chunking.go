package service

import "strings"

// ChunkConfig controls the word budget per chunk.
type ChunkConfig struct {
	MainWords    int
	CommentWords int
}

// DefaultChunkConfig provides the standard budgets: coarse chunks for item
// bodies, finer ones for comments.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MainWords:    500,
		CommentWords: 200,
	}
}

func (c ChunkConfig) withDefaults() ChunkConfig {
	def := DefaultChunkConfig()
	if c.MainWords <= 0 {
		c.MainWords = def.MainWords
	}
	if c.CommentWords <= 0 {
		c.CommentWords = def.CommentWords
	}
	return c
}

// ChunkWords splits text on whitespace into contiguous groups of at most
// maxWords words joined by single spaces. Empty text yields no chunks.
func ChunkWords(text string, maxWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 {
		maxWords = DefaultChunkConfig().MainWords
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
