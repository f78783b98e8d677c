package chunker

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Factory picks a chunker by method or file type.
type Factory struct {
	config Config
}

// NewFactory creates a factory whose chunkers share config.
func NewFactory(config Config) *Factory {
	return &Factory{config: config}
}

// GetChunker honours an explicit method first and otherwise decides by the
// file extension. An unknown explicit method is an error.
func (f *Factory) GetChunker(filePath, method string) (Chunker, error) {
	if method != "" {
		return f.GetChunkerByMethod(method)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return NewMarkdownChunker(f.config), nil
	default:
		return NewTextChunker(f.config), nil
	}
}

// GetChunkerByMethod returns the chunker registered under method.
func (f *Factory) GetChunkerByMethod(method string) (Chunker, error) {
	switch strings.ToLower(method) {
	case "markdown", "md":
		return NewMarkdownChunker(f.config), nil
	case "text", "txt", "recursive", "simple":
		return NewTextChunker(f.config), nil
	default:
		return nil, fmt.Errorf("unknown chunking method: %s", method)
	}
}

// Text returns the plain text chunker, used as a fallback.
func (f *Factory) Text() Chunker {
	return NewTextChunker(f.config)
}
