package ports

import (
	"context"
)

// CompletionRequest is one prompt sent to an LLM provider
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	// JSON asks the provider for a JSON response where it supports that
	JSON bool
}

// Completer defines the interface for raw text completion against an LLM provider
type Completer interface {
	// Complete sends the prompt and returns the model's text reply
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the provider and model, for logs
	Name() string
}
