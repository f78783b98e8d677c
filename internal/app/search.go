package app

import (
	"context"
	"fmt"

	"paper_navigator/internal/index"
)

// searchRelevantChunks returns the top-k chunks for the question, dropping
// any below the configured similarity floor.
func (a *App) searchRelevantChunks(ctx context.Context, question string) ([]index.Result, error) {
	results, err := a.idx.Query(ctx, question, a.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Similarity < a.cfg.MinSimilarity {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered, nil
}
