package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// EnsureModels checks that Ollama is reachable and pulls any of the given
// models it does not have yet. client's timeout applies to the model list
// only. A pull downloads gigabytes and is bounded by ctx alone.
func EnsureModels(ctx context.Context, client *http.Client, baseURL string, models []string, log *zap.SugaredLogger) error {
	available, err := listModels(ctx, client, baseURL)
	if err != nil {
		return fmt.Errorf("ollama is not running or not reachable at %s: %w", baseURL, err)
	}

	pullClient := *client
	pullClient.Timeout = 0

	for _, model := range models {
		if hasModel(available, model) {
			log.Infof("Model %s is available", model)
			continue
		}
		log.Infof("Model %s not found, pulling (this can take a while)...", model)
		if err := pullModel(ctx, &pullClient, baseURL, model); err != nil {
			return err
		}
		log.Infof("Model %s pulled successfully", model)
	}
	return nil
}

// listModels returns the model names reported by /api/tags.
func listModels(ctx context.Context, client *http.Client, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// hasModel treats "name" and "name:latest" as the same model.
func hasModel(available []string, model string) bool {
	want := normalizeTag(model)
	for _, name := range available {
		if normalizeTag(name) == want {
			return true
		}
	}
	return false
}

// normalizeTag adds the implicit ":latest" tag.
func normalizeTag(name string) string {
	if !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}

// pullModel asks Ollama to download model and waits until it is done.
func pullModel(ctx context.Context, client *http.Client, baseURL, model string) error {
	body, err := json.Marshal(map[string]any{"name": model, "stream": false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to pull model %s: status %d: %s", model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
