package app

import (
	"context"
	"strings"
	"time"

	"paper_navigator/internal/index"
	"paper_navigator/internal/prompts"
)

// Source is a retrieved chunk cited by an answer.
type Source struct {
	Source     string  `json:"source"`
	Section    string  `json:"section"`
	Page       int     `json:"page,omitempty"`
	Similarity float32 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

const excerptLen = 240

// Query answers a question from the indexed documents. onToken, if set,
// receives the answer as it streams from the model.
func (a *App) Query(ctx context.Context, question string, onToken func(string) error) (answer *Answer, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	defer func() { a.metrics.Query(time.Since(start), err) }()

	if err := a.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.ready {
		return nil, ErrNoIndex
	}

	results, err := a.searchRelevantChunks(ctx, question)
	if err != nil {
		return nil, err
	}
	a.log.Debugf("🔍 Found %d relevant chunks", len(results))

	prompt, err := prompts.FormatQA(toPassages(results), question)
	if err != nil {
		return nil, err
	}

	text, err := a.gen.Stream(ctx, prompt, onToken)
	if err != nil {
		return nil, err
	}

	return &Answer{Text: strings.TrimSpace(text), Sources: toSources(results)}, nil
}

func toPassages(results []index.Result) []prompts.Passage {
	out := make([]prompts.Passage, 0, len(results))
	for _, r := range results {
		out = append(out, prompts.Passage{Source: r.Source, Section: r.Section, Content: r.Content})
	}
	return out
}

// toSources converts results to citations with shortened excerpts.
func toSources(results []index.Result) []Source {
	out := make([]Source, 0, len(results))
	for _, r := range results {
		excerpt := []rune(r.Content)
		if len(excerpt) > excerptLen {
			excerpt = append(excerpt[:excerptLen], '…')
		}
		out = append(out, Source{
			Source:     r.Source,
			Section:    r.Section,
			Page:       r.Page,
			Similarity: r.Similarity,
			Excerpt:    string(excerpt),
		})
	}
	return out
}
