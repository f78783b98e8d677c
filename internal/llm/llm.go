package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// Options for the Ollama-backed client.
type Options struct {
	ServerURL   string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Client streams completions from an Ollama server.
type Client struct {
	model       llms.Model
	name        string
	temperature float64
}

// New creates a client for opts.Model on the Ollama server at opts.ServerURL.
func New(opts Options) (*Client, error) {
	if opts.Model == "" {
		return nil, errors.New("model name is required")
	}
	httpClient := &http.Client{Timeout: opts.Timeout}

	m, err := ollama.New(
		ollama.WithModel(opts.Model),
		ollama.WithServerURL(opts.ServerURL),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &Client{model: m, name: opts.Model, temperature: opts.Temperature}, nil
}

// NewWithModel wraps any langchaingo model, mostly for tests.
func NewWithModel(m llms.Model, name string, temperature float64) *Client {
	return &Client{model: m, name: name, temperature: temperature}
}

// Name returns the model name.
func (c *Client) Name() string {
	return c.name
}

// Stream sends prompt as a single user message and calls onToken for every
// streamed fragment. The full answer is returned once the stream ends.
func (c *Client) Stream(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	var streamed strings.Builder

	opts := []llms.CallOption{llms.WithTemperature(c.temperature)}
	if onToken != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			streamed.Write(chunk)
			return onToken(string(chunk))
		}))
	}

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from LLM")
	}

	answer := resp.Choices[0].Content
	if answer == "" {
		answer = streamed.String()
	}
	return answer, nil
}
