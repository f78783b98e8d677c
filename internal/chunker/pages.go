package chunker

import "fmt"

// ChunkPages chunks each page separately and labels the chunks with their
// page number. Empty pages produce no chunks.
func ChunkPages(c Chunker, pages []string, source string) ([]Chunk, error) {
	var out []Chunk
	for i, page := range pages {
		chunks, err := c.Chunk(page, source)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		for j, ch := range chunks {
			section := fmt.Sprintf("Page %d", i+1)
			if len(chunks) > 1 {
				section = fmt.Sprintf("Page %d (part %d)", i+1, j+1)
			}
			md := ch.Metadata
			md["page"] = fmt.Sprintf("%d", i+1)
			out = append(out, CreateChunk(ch.Text, source, section, len(out), md))
		}
	}
	return out, nil
}
