package chunker

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// CreateChunk builds a chunk. The ID hashes source, the chunk's ordinal
// within the file and text, so repeated passages in one file stay distinct.
func CreateChunk(text, source, section string, ordinal int, metadata map[string]string) Chunk {
	text = strings.TrimSpace(text)
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", source, ordinal, text)))

	if metadata == nil {
		metadata = make(map[string]string)
	}

	return Chunk{
		ID:       fmt.Sprintf("%x", hash[:8]),
		Text:     text,
		Source:   source,
		Section:  section,
		Metadata: metadata,
	}
}

// newSplitter returns the recursive character splitter used for plain text
// and for oversized markdown sections.
func newSplitter(cfg Config) textsplitter.RecursiveCharacter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
}
