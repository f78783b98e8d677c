package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownChunker splits markdown by headings. The heading level is chosen
// from the document structure; sections larger than MaxChunkSize are split
// further with the recursive splitter.
type MarkdownChunker struct {
	config Config
}

// NewMarkdownChunker creates a chunker that splits on markdown headings.
func NewMarkdownChunker(config Config) *MarkdownChunker {
	return &MarkdownChunker{config: config}
}

// Name returns the chunker name used in logs.
func (m *MarkdownChunker) Name() string {
	return "markdown"
}

// ErrNoStructure is returned when the document has no usable headings.
var ErrNoStructure = errors.New("no usable markdown heading structure")

type documentStructure struct {
	headingCounts   map[int]int
	totalParagraphs int
}

// Chunk splits content into one chunk per heading section. It returns
// ErrNoStructure when the document has too few headings.
func (m *MarkdownChunker) Chunk(content, source string) ([]Chunk, error) {
	src := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	level, err := m.selectLevel(m.analyzeStructure(doc))
	if err != nil {
		return nil, err
	}

	return m.chunkByHeadings(doc, src, source, level)
}

// analyzeStructure counts headings per level and paragraphs.
func (m *MarkdownChunker) analyzeStructure(doc ast.Node) documentStructure {
	s := documentStructure{headingCounts: make(map[int]int)}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			s.headingCounts[node.Level]++
		case *ast.Paragraph:
			s.totalParagraphs++
		}
		return ast.WalkContinue, nil
	})

	return s
}

// selectLevel picks the shallowest heading level with enough headings to be
// a meaningful split point. Scientific papers usually have a single H1 title
// followed by H2 sections, so H1 counts on its own only when repeated.
func (m *MarkdownChunker) selectLevel(s documentStructure) (int, error) {
	minHeadings := map[int]int{1: 2, 2: 2, 3: 3, 4: 5}
	for level := 1; level <= 4; level++ {
		if s.headingCounts[level] >= minHeadings[level] {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w (headings: %v, paragraphs: %d)", ErrNoStructure, s.headingCounts, s.totalParagraphs)
}

// chunkByHeadings collects the text under each heading of targetLevel or
// shallower. Deeper headings stay inside their section.
func (m *MarkdownChunker) chunkByHeadings(doc ast.Node, src []byte, source string, targetLevel int) ([]Chunk, error) {
	type section struct {
		title  string
		parent string
		level  int
		body   strings.Builder
	}

	var sections []*section
	current := &section{}
	var parent string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if _, ok := n.(*ast.Paragraph); ok {
				current.body.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			title := extractText(node, src)
			if node.Level <= targetLevel {
				if current.body.Len() > 0 {
					sections = append(sections, current)
				}
				if node.Level < targetLevel {
					parent = title
				}
				current = &section{title: title, parent: parent, level: node.Level}
				current.body.WriteString(title + "\n\n")
			} else {
				current.body.WriteString("\n" + title + "\n\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			current.body.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				current.body.WriteString("\n")
			}
		case *ast.String:
			current.body.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				current.body.Write(seg.Value(src))
			}
			current.body.WriteString("\n")
		}
		return ast.WalkContinue, nil
	})
	if current.body.Len() > 0 {
		sections = append(sections, current)
	}

	var chunks []Chunk
	for _, s := range sections {
		part, err := m.finalizeSection(s.body.String(), source, s.title, s.parent, s.level, len(chunks))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, part...)
	}
	return chunks, nil
}

// finalizeSection turns one heading section into chunks, numbering them
// from ordinal.
func (m *MarkdownChunker) finalizeSection(body, source, title, parent string, level, ordinal int) ([]Chunk, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	if title == "" {
		title = "Preamble"
	}

	metadata := func() map[string]string {
		md := map[string]string{"level": fmt.Sprintf("%d", level), "method": "markdown"}
		if parent != "" && parent != title {
			md["parent_section"] = parent
		}
		return md
	}

	if len([]rune(body)) <= m.config.MaxChunkSize {
		return []Chunk{CreateChunk(body, source, title, ordinal, metadata())}, nil
	}

	parts, err := newSplitter(m.config).SplitText(body)
	if err != nil {
		return nil, fmt.Errorf("failed to split section %q: %w", title, err)
	}
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		md := metadata()
		md["part"] = fmt.Sprintf("%d", i+1)
		md["has_parts"] = "true"
		name := title
		if i > 0 {
			name = fmt.Sprintf("%s (part %d)", title, i+1)
		}
		chunks = append(chunks, CreateChunk(p, source, name, ordinal+i, md))
	}
	return chunks, nil
}

// extractText returns the plain text of an inline node.
func extractText(node ast.Node, source []byte) string {
	var buf strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
