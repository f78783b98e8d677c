package chunker

import (
	"fmt"
	"strings"
)

// TextChunker splits plain text with a recursive character splitter.
type TextChunker struct {
	config Config
}

// NewTextChunker creates a recursive text chunker.
func NewTextChunker(config Config) *TextChunker {
	return &TextChunker{config: config}
}

// Name returns the chunker name used in logs.
func (s *TextChunker) Name() string {
	return "text"
}

// Chunk splits content on paragraphs, lines and words until every piece fits.
func (s *TextChunker) Chunk(content, source string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	parts, err := newSplitter(s.config).SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("recursive split failed: %w", err)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		num := len(chunks) + 1
		chunks = append(chunks, CreateChunk(part, source, fmt.Sprintf("Chunk %d", num), num-1, map[string]string{
			"chunk_num": fmt.Sprintf("%d", num),
			"method":    "recursive",
		}))
	}
	return chunks, nil
}
