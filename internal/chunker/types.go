package chunker

// Chunk is one unit of text sent to the embedder.
type Chunk struct {
	ID       string            // short content hash, stable across rebuilds
	Text     string
	Source   string            // file name the chunk came from
	Section  string            // heading, page or ordinal label
	Metadata map[string]string
}

// Chunker splits document content into chunks.
type Chunker interface {
	Chunk(content, source string) ([]Chunk, error)

	// Name is used in logs.
	Name() string
}

// Config holds sizes shared by all chunkers, measured in runes.
type Config struct {
	MaxChunkSize int
	Overlap      int
}
