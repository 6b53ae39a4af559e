package anthropic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aktagon/llmkit/anthropic/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-triage/internal/ports"
)

func TestComplete(t *testing.T) {
	var got types.RequestSettings
	var gotSystem, gotUser, gotKey string
	c := newClient("key", "claude-3-5-haiku-latest", 1024, func(system, user, apiKey string, settings types.RequestSettings) (string, error) {
		gotSystem, gotUser, gotKey, got = system, user, apiKey, settings
		return `{"ok":true}`, nil
	}, nil)

	text, err := c.Complete(context.Background(), ports.CompletionRequest{System: "sys", User: "hi", Temperature: 0.25})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, "sys", gotSystem)
	assert.Equal(t, "hi", gotUser)
	assert.Equal(t, "key", gotKey)
	assert.Equal(t, "claude-3-5-haiku-latest", got.Model)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.InDelta(t, 0.25, got.Temperature, 1e-6)
	assert.Equal(t, "anthropic", c.Name())
}

func TestCompleteError(t *testing.T) {
	c := newClient("key", "m", 10, func(string, string, string, types.RequestSettings) (string, error) {
		return "", errors.New("overloaded")
	}, nil)

	_, err := c.Complete(context.Background(), ports.CompletionRequest{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestCompleteHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newClient("key", "m", 10, func(string, string, string, types.RequestSettings) (string, error) {
		<-release
		return "late", nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, ports.CompletionRequest{User: "hi"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("", "m", 10, nil)
	assert.EqualError(t, err, "anthropic API key is required")
}
