package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/inbox-triage/internal/ports"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func (f *fakeInvoker) payload(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(f.input.Body, &m))
	return m
}

var testRequest = ports.CompletionRequest{System: "sys", User: "hello", Temperature: 0.5, JSON: true}

func TestCompleteClaude(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"{\"ok\":"},{"type":"text","text":"true}"}],"stop_reason":"end_turn"}`}
	c := newClient(inv, "anthropic.claude-3-haiku-20240307-v1:0", 512, 0.9, nil)

	got, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, got)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", *inv.input.ModelId)

	p := inv.payload(t)
	assert.Equal(t, anthropicVersion, p["anthropic_version"])
	assert.Equal(t, "sys", p["system"])
	assert.EqualValues(t, 512, p["max_tokens"])
	messages := p["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	assert.Equal(t, "hello", content[0].(map[string]any)["text"])
}

func TestCompleteClaudeCrossRegionProfile(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"hi"}]}`}
	c := newClient(inv, "us.anthropic.claude-3-5-sonnet-20240620-v1:0", 256, 0, nil)

	got, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
	assert.NotContains(t, inv.payload(t), "top_p")

	inv.body = `{"content":[]}`
	_, err = c.Complete(context.Background(), testRequest)
	assert.EqualError(t, err, "empty response from Claude model")
}

func TestCompleteTitan(t *testing.T) {
	inv := &fakeInvoker{body: `{"results":[{"outputText":"answer"}]}`}
	c := newClient(inv, "amazon.titan-text-express-v1", 300, 0, nil)

	got, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "answer", got)

	p := inv.payload(t)
	assert.Equal(t, "sys\n\nhello", p["inputText"])
	assert.EqualValues(t, 300, p["textGenerationConfig"].(map[string]any)["maxTokenCount"])

	inv.body = `{"results":[]}`
	_, err = c.Complete(context.Background(), testRequest)
	assert.EqualError(t, err, "empty response from Titan model")
}

func TestCompleteGeneric(t *testing.T) {
	inv := &fakeInvoker{body: `{"generation":"llama says hi"}`}
	c := newClient(inv, "meta.llama3-8b-instruct-v1:0", 128, 0, nil)

	got, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "llama says hi", got)
	assert.Equal(t, "sys\n\nhello", inv.payload(t)["prompt"])

	inv.body = `{"something":"else"}`
	got, err = c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, `{"something":"else"}`, got)
}

func TestCompleteInvokeError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("throttled")}
	c := newClient(inv, "anthropic.claude-v2", 128, 0, nil)

	_, err := c.Complete(context.Background(), testRequest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Equal(t, "bedrock", c.Name())
}
