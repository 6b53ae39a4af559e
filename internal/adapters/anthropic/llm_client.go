// Package anthropic implements ports.Completer over the Anthropic messages
// API using llmkit.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/ports"
)

// promptFunc sends one system and user prompt pair and returns the reply text
type promptFunc func(system, user, apiKey string, settings types.RequestSettings) (string, error)

// Client is a ports.Completer backed by Anthropic
type Client struct {
	apiKey    string
	modelName string
	maxTokens int
	prompt    promptFunc
	logger    *zap.Logger
}

// NewClient creates a new Anthropic completer
func NewClient(apiKey, modelName string, maxTokens int, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	return newClient(apiKey, modelName, maxTokens, llmkitPrompt, logger), nil
}

func newClient(apiKey, modelName string, maxTokens int, prompt promptFunc, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:    apiKey,
		modelName: modelName,
		maxTokens: maxTokens,
		prompt:    prompt,
		logger:    logger,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "anthropic"
}

// Complete sends the prompt and waits for the reply or for ctx to end.
// llmkit calls are not cancellable, so an abandoned call finishes in the
// background and its result is dropped.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	settings := types.RequestSettings{
		Model:       c.modelName,
		MaxTokens:   c.maxTokens,
		Temperature: float64(req.Temperature),
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := c.prompt(req.System, req.User, c.apiKey, settings)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("failed to prompt Anthropic: %w", r.err)
		}
		c.logger.Debug("Anthropic completion", zap.String("model", c.modelName), zap.Int("chars", len(r.text)))
		return r.text, nil
	}
}

func llmkitPrompt(system, user, apiKey string, settings types.RequestSettings) (string, error) {
	resp, err := anthropic.PromptWithSettings(system, user, "", apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", errors.New("no content in response")
	}
	return resp.Content[0].Text, nil
}
