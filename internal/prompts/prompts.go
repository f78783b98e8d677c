package prompts

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const qaTemplate = `You are an expert AI research assistant.
Your task is to provide a comprehensive and synthesized answer to the user's question based ONLY on the provided context.

Analyze all parts of the context to form a complete understanding. Do not just extract sentences.
If the context does not contain the answer, state that you cannot find the relevant information in the provided documents.

Context Information:
---------------------
{{.context}}
---------------------

User's Question: {{.question}}

Your Answer:`

// QA is the question-answering template with "context" and "question" inputs.
var QA = prompts.NewPromptTemplate(qaTemplate, []string{"context", "question"})

// Passage is one retrieved chunk placed into the context block.
type Passage struct {
	Source  string
	Section string
	Content string
}

// BuildContext joins passages, each under a header naming where it came from.
func BuildContext(passages []Passage) string {
	var buf strings.Builder
	for i, p := range passages {
		if i > 0 {
			buf.WriteString("\n\n")
		}
		header := p.Source
		if p.Section != "" {
			header = fmt.Sprintf("%s, %s", p.Source, p.Section)
		}
		fmt.Fprintf(&buf, "[%d] (%s)\n%s", i+1, header, strings.TrimSpace(p.Content))
	}
	return buf.String()
}

// FormatQA renders the QA prompt.
func FormatQA(passages []Passage, question string) (string, error) {
	out, err := QA.Format(map[string]any{
		"context":  BuildContext(passages),
		"question": strings.TrimSpace(question),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return out, nil
}
