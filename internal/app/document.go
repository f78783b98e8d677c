package app

import (
	"fmt"

	"paper_navigator/internal/chunker"
	"paper_navigator/internal/loader"
)

// chunkDocuments splits every document and returns all chunks plus a count
// per file name.
func (a *App) chunkDocuments(docs []loader.Document) ([]chunker.Chunk, map[string]int, error) {
	var all []chunker.Chunk
	perFile := make(map[string]int, len(docs))

	for _, doc := range docs {
		chunks, err := a.chunkDocument(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to chunk %s: %w", doc.Name, err)
		}
		for i := range chunks {
			chunks[i].Metadata["document_id"] = doc.ID
			chunks[i].Metadata["format"] = string(doc.Format)
		}
		a.log.Infof("📦 %s: %d chunks", doc.Name, len(chunks))
		perFile[doc.Name] = len(chunks)
		all = append(all, chunks...)
	}
	return all, perFile, nil
}

// chunkDocument chunks one document, page by page for PDFs, and retries
// with the text chunker when the selected chunker fails.
func (a *App) chunkDocument(doc loader.Document) ([]chunker.Chunk, error) {
	chunkr, err := a.chunkers.GetChunker(doc.Path, a.cfg.ChunkMethod)
	if err != nil {
		return nil, err
	}

	var chunks []chunker.Chunk
	if doc.Format == loader.FormatPDF && len(doc.Pages) > 0 {
		chunks, err = chunker.ChunkPages(chunkr, doc.Pages, doc.Name)
	} else {
		chunks, err = chunkr.Chunk(doc.Content, doc.Name)
	}
	if err == nil {
		return chunks, nil
	}

	a.log.Warnf("⚠️  %s chunker failed on %s: %v, falling back to text chunker", chunkr.Name(), doc.Name, err)
	text := a.chunkers.Text()
	if doc.Format == loader.FormatPDF && len(doc.Pages) > 0 {
		return chunker.ChunkPages(text, doc.Pages, doc.Name)
	}
	return text.Chunk(doc.Content, doc.Name)
}
