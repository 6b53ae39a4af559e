// Package bedrock implements ports.Completer over Amazon Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/ports"
)

const anthropicVersion = "bedrock-2023-05-31"

// invoker is the subset of the Bedrock runtime client used here
type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client is a ports.Completer backed by Bedrock
type Client struct {
	client    invoker
	modelID   string
	maxTokens int
	topP      float32
	logger    *zap.Logger
}

// NewClient loads the default AWS configuration for region and creates a completer
func NewClient(ctx context.Context, region, modelID string, maxTokens int, topP float32, logger *zap.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return newClient(bedrockruntime.NewFromConfig(awsCfg), modelID, maxTokens, topP, logger), nil
}

func newClient(client invoker, modelID string, maxTokens int, topP float32, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:    client,
		modelID:   modelID,
		maxTokens: maxTokens,
		topP:      topP,
		logger:    logger,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "bedrock"
}

// Complete invokes the model with a payload shaped for its family
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	payload, err := c.payload(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	return c.responseText(resp.Body)
}

func (c *Client) payload(req ports.CompletionRequest) ([]byte, error) {
	switch {
	case c.isAnthropicModel():
		body := map[string]any{
			"anthropic_version": anthropicVersion,
			"max_tokens":        c.maxTokens,
			"temperature":       req.Temperature,
			"messages": []map[string]any{{
				"role":    "user",
				"content": []map[string]string{{"type": "text", "text": req.User}},
			}},
		}
		if req.System != "" {
			body["system"] = req.System
		}
		if c.topP > 0 {
			body["top_p"] = c.topP
		}
		return json.Marshal(body)
	case c.isAmazonTitanModel():
		genCfg := map[string]any{
			"maxTokenCount": c.maxTokens,
			"temperature":   req.Temperature,
		}
		if c.topP > 0 {
			genCfg["topP"] = c.topP
		}
		return json.Marshal(map[string]any{
			"inputText":            joinPrompt(req),
			"textGenerationConfig": genCfg,
		})
	default:
		body := map[string]any{
			"prompt":      joinPrompt(req),
			"max_tokens":  c.maxTokens,
			"temperature": req.Temperature,
		}
		if c.topP > 0 {
			body["top_p"] = c.topP
		}
		return json.Marshal(body)
	}
}

func (c *Client) responseText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var sb strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", errors.New("empty response from Claude model")
		}
		return sb.String(), nil
	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", errors.New("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output     string `json:"output"`
			Text       string `json:"text"`
			Response   string `json:"response"`
			Generation string `json:"generation"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, s := range []string{genericResp.Output, genericResp.Text, genericResp.Response, genericResp.Generation} {
			if s != "" {
				return s, nil
			}
		}
		c.logger.Debug("Unrecognised Bedrock response shape, using raw body", zap.String("model", c.modelID))
		return string(body), nil
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model,
// including cross-region inference profiles such as "us.anthropic.claude-..."
func (c *Client) isAnthropicModel() bool {
	return strings.Contains(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *Client) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

func joinPrompt(req ports.CompletionRequest) string {
	if req.System == "" {
		return req.User
	}
	return req.System + "\n\n" + req.User
}
