package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextChunkerRespectsSize(t *testing.T) {
	c := NewTextChunker(Config{MaxChunkSize: 100, Overlap: 10})
	content := strings.Repeat("retrieval augmented generation ", 40)

	chunks, err := c.Chunk(content, "paper.txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	seen := map[string]bool{}
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 100)
		assert.Equal(t, "paper.txt", ch.Source)
		assert.Equal(t, "recursive", ch.Metadata["method"])
		assert.False(t, seen[ch.ID], "duplicate id at %d", i)
		seen[ch.ID] = true
	}
	assert.Equal(t, "Chunk 1", chunks[0].Section)
}

func TestTextChunkerPrefersParagraphs(t *testing.T) {
	c := NewTextChunker(Config{MaxChunkSize: 60, Overlap: 0})
	content := "First paragraph about embeddings.\n\nSecond paragraph about vector stores."

	chunks, err := c.Chunk(content, "a.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First paragraph about embeddings.", chunks[0].Text)
	assert.Equal(t, "Second paragraph about vector stores.", chunks[1].Text)
}

func TestTextChunkerEmpty(t *testing.T) {
	chunks, err := NewTextChunker(Config{MaxChunkSize: 10}).Chunk("  \n ", "x")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkPages(t *testing.T) {
	c := NewTextChunker(Config{MaxChunkSize: 200, Overlap: 0})
	pages := []string{"Abstract text.", "", "Results section."}

	chunks, err := ChunkPages(c, pages, "paper.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Page 1", chunks[0].Section)
	assert.Equal(t, "1", chunks[0].Metadata["page"])
	assert.Equal(t, "Page 3", chunks[1].Section)
	assert.Equal(t, "3", chunks[1].Metadata["page"])
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

const paperMarkdown = `# Attention Study

Some preamble.

## Introduction

Transformers changed NLP.

## Method

We train a model.

### Data

Large corpus.

## Results

It works.
`

func TestMarkdownChunkerSplitsBySection(t *testing.T) {
	c := NewMarkdownChunker(Config{MaxChunkSize: 1000, Overlap: 0})

	chunks, err := c.Chunk(paperMarkdown, "paper.md")
	require.NoError(t, err)

	var sections []string
	for _, ch := range chunks {
		sections = append(sections, ch.Section)
	}
	assert.Equal(t, []string{"Attention Study", "Introduction", "Method", "Results"}, sections)

	method := chunks[2]
	assert.Contains(t, method.Text, "We train a model.")
	assert.Contains(t, method.Text, "Data")
	assert.Contains(t, method.Text, "Large corpus.")
	assert.Equal(t, "Attention Study", method.Metadata["parent_section"])
}

func TestMarkdownChunkerSplitsLargeSections(t *testing.T) {
	body := strings.Repeat("A long sentence about chunking. ", 20)
	content := "## One\n\n" + body + "\n\n## Two\n\nShort."

	chunks, err := NewMarkdownChunker(Config{MaxChunkSize: 120, Overlap: 0}).Chunk(content, "long.md")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	assert.Equal(t, "One", chunks[0].Section)
	assert.Equal(t, "true", chunks[0].Metadata["has_parts"])
	assert.Equal(t, "One (part 2)", chunks[1].Section)
	assert.Equal(t, "Two", chunks[len(chunks)-1].Section)
}

func TestMarkdownChunkerNoStructure(t *testing.T) {
	_, err := NewMarkdownChunker(Config{MaxChunkSize: 100}).Chunk("just text\n\nmore text", "plain.md")
	assert.ErrorIs(t, err, ErrNoStructure)
}

func TestFactory(t *testing.T) {
	f := NewFactory(Config{MaxChunkSize: 100, Overlap: 10})

	c, err := f.GetChunker("notes.md", "")
	require.NoError(t, err)
	assert.Equal(t, "markdown", c.Name())

	c, err = f.GetChunker("paper.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "text", c.Name())

	c, err = f.GetChunker("notes.md", "text")
	require.NoError(t, err)
	assert.Equal(t, "text", c.Name())

	_, err = f.GetChunker("paper.pdf", "semantic")
	assert.Error(t, err)
}

func TestMarkdownRepeatedSectionsGetDistinctIDs(t *testing.T) {
	c := NewMarkdownChunker(Config{MaxChunkSize: 500, Overlap: 0})
	content := "# Guide\n\nIntro text.\n\n## Example\n\nSee above.\n\n## Example\n\nSee above.\n"

	chunks, err := c.Chunk(content, "notes.md")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, chunks[1].Text, chunks[2].Text)
	assert.Equal(t, chunks[1].Section, chunks[2].Section)

	ids := map[string]bool{}
	for _, ch := range chunks {
		ids[ch.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestChunkPagesRepeatedPageText(t *testing.T) {
	c := NewTextChunker(Config{MaxChunkSize: 200, Overlap: 0})

	chunks, err := ChunkPages(c, []string{"Running header", "Running header"}, "paper.pdf")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestCreateChunkIDUsesOrdinal(t *testing.T) {
	a := CreateChunk("same", "a.md", "Example", 0, nil)
	b := CreateChunk("same", "a.md", "Example", 1, nil)
	c := CreateChunk("same", "a.md", "Other", 0, nil)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.ID, c.ID)
}
