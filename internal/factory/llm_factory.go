package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/anthropic"
	"github.com/mikey/inbox-triage/internal/adapters/bedrock"
	"github.com/mikey/inbox-triage/internal/adapters/gemini"
	"github.com/mikey/inbox-triage/internal/adapters/llm"
	"github.com/mikey/inbox-triage/internal/adapters/openai"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/ports"
	"github.com/mikey/inbox-triage/internal/utils"
)

// LLMFactory creates the LLM-backed pipeline collaborators
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateCompleter creates the raw completion client for the configured
// provider and returns the body size limit configured for it
func (f *LLMFactory) CreateCompleter(ctx context.Context) (ports.Completer, int, error) {
	provider := f.cfg.GetLLM().Provider

	switch provider {
	case "openai":
		c := f.cfg.GetOpenAI()
		if c.APIKey == "" && c.BaseURL == "" {
			return nil, 0, fmt.Errorf("openai.api_key is required")
		}
		return openai.NewClient(c.APIKey, c.BaseURL, c.ModelName, c.MaxTokens, c.TopP, f.logger), c.MaxBodySize, nil
	case "gemini":
		c := f.cfg.GetGemini()
		client, err := gemini.NewClient(ctx, c.APIKey, c.ModelName, c.MaxTokens, c.TopP, f.logger)
		if err != nil {
			return nil, 0, err
		}
		return client, c.MaxBodySize, nil
	case "bedrock":
		c := f.cfg.GetBedrock()
		client, err := bedrock.NewClient(ctx, c.Region, c.ModelID, c.MaxTokens, c.TopP, f.logger)
		if err != nil {
			return nil, 0, err
		}
		return client, c.MaxBodySize, nil
	case "anthropic":
		c := f.cfg.GetAnthropic()
		client, err := anthropic.NewClient(c.APIKey, c.ModelName, c.MaxTokens, f.logger)
		if err != nil {
			return nil, 0, err
		}
		return client, c.MaxBodySize, nil
	default:
		return nil, 0, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// CreateAssistant creates the classifier, summarizer, drafter and reviser
// on top of the configured provider
func (f *LLMFactory) CreateAssistant(ctx context.Context) (*llm.Assistant, error) {
	completer, maxBodySize, err := f.CreateCompleter(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	f.logger.Info("LLM provider configured",
		zap.String("provider", f.cfg.GetLLM().Provider),
		zap.String("client", completer.Name()))

	return llm.NewAssistant(completer, f.textProcessor, f.logger, maxBodySize), nil
}
