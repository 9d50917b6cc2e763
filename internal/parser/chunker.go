// Package parser splits extracted document text into fixed-size
// overlapping chunks for classification and indexing.
package parser

import (
	"errors"
	"fmt"
)

// ErrConfiguration indicates invalid chunking parameters.
var ErrConfiguration = errors.New("invalid chunk configuration")

// Chunk is a bounded slice of a document's text.
type Chunk struct {
	Index  int
	Text   string
	Tokens int
}

// ChunkConfig defines chunking parameters. Sizes are in runes.
type ChunkConfig struct {
	// ChunkSize: length of each chunk. Must be > 0.
	ChunkSize int
	// Overlap: runes shared between adjacent chunks. Must satisfy
	// 0 <= Overlap < ChunkSize.
	Overlap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize: 1000,
		Overlap:   100,
	}
}

// Validate checks the configuration bounds.
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrConfiguration, c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, chunk_size), got %d", ErrConfiguration, c.Overlap)
	}
	return nil
}

// ChunkText splits text into overlapping chunks. Chunk i starts at rune
// offset i*(ChunkSize-Overlap) and spans ChunkSize runes; the final
// chunk is truncated to the remaining text. Empty text yields no chunks.
func ChunkText(text string, config ChunkConfig) ([]Chunk, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	stride := config.ChunkSize - config.Overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Text:   content,
			Tokens: EstimateTokens(content),
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// EstimateTokens approximates the token count of text. Roughly four
// characters per token for English prose.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
