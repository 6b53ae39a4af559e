// Package llm turns a raw text Completer into the classifier, summarizer,
// drafter and reviser used by the triage pipeline.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
	"github.com/mikey/inbox-triage/internal/utils"
)

const (
	defaultTone    = "concise, warm, professional"
	maxAttempts    = 2
	maxRetryReason = 600
)

const systemPrompt = `You are Inbox Triage. You help a small business triage emails and draft replies.
Follow the user's context pack (brand, policies, tone, signature).
Be concise and factual. Never claim you performed actions you did not perform.
Never include secrets or API keys. If information is missing, ask a clarifying question in the draft.`

// Assistant implements the LLM-backed pipeline collaborators
type Assistant struct {
	completer   ports.Completer
	text        *utils.TextProcessor
	logger      *zap.Logger
	maxBodySize int
}

// NewAssistant creates a new assistant. maxBodySize caps the email body
// characters placed in a prompt; zero uses per-prompt defaults.
func NewAssistant(completer ports.Completer, text *utils.TextProcessor, logger *zap.Logger, maxBodySize int) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if text == nil {
		text = utils.NewTextProcessor(logger)
	}
	return &Assistant{
		completer:   completer,
		text:        text,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// Classify decides whether an email is relevant to the user's business
func (a *Assistant) Classify(ctx context.Context, email *core.Email, pack *core.ContextPack) (*core.Classification, error) {
	user := strings.Join([]string{
		"Classify whether this email is business-relevant for the user's brand.",
		"Treat newsletters, automated notifications, and irrelevant promos as not relevant unless they match the context keywords.",
		"",
		"Context pack (JSON):",
		a.formatContext(pack),
		"",
		"Email:",
		"from: " + a.text.Truncate(email.From, 200),
		"subject: " + a.text.Truncate(email.Subject, 300),
		"snippet: " + a.text.Truncate(email.Snippet, 500),
		"body:",
		a.body(email, 8000),
	}, "\n")

	doc, err := completeJSON[classificationDoc](ctx, a, "classification", classificationSchema, user, 0.0)
	if err != nil {
		return nil, err
	}
	return doc.classification(), nil
}

// Summarize produces short bullets on what the sender wants
func (a *Assistant) Summarize(ctx context.Context, email *core.Email, pack *core.ContextPack) (*core.Summary, error) {
	user := strings.Join([]string{
		"Summarize the email for the user.",
		"Output short bullets. Focus on what the sender wants and what the user should do next.",
		"",
		"Context pack (JSON):",
		a.formatContext(pack),
		"",
		"Email:",
		"from: " + a.text.Truncate(email.From, 200),
		"subject: " + a.text.Truncate(email.Subject, 300),
		"body:",
		a.body(email, 12000),
	}, "\n")

	doc, err := completeJSON[summaryDoc](ctx, a, "summary", summarySchema, user, 0.2)
	if err != nil {
		return nil, err
	}
	return &doc.Summary, nil
}

// Draft writes a plain text reply body
func (a *Assistant) Draft(ctx context.Context, email *core.Email, pack *core.ContextPack, summary *core.Summary) (*core.DraftResult, error) {
	user := strings.Join([]string{
		"Draft a reply email in plain text.",
		"Tone: " + tone(pack),
		"If details are missing, include 1-3 concise clarifying questions.",
		"Do not include any subject line or email headers, only the email body.",
		"If a signature is provided, include it at the end verbatim.",
		"",
		"Context pack (compact):",
		a.compactContext(pack),
		"",
		"Email:",
		"from: " + a.text.Truncate(email.From, 200),
		"subject: " + a.text.Truncate(email.Subject, 300),
		"body:",
		a.body(email, 12000),
		"",
		"Computed summary (JSON):",
		a.text.CompactJSON(summary, 2500),
		"",
		"Signature:",
		signature(pack),
	}, "\n")

	doc, err := completeJSON[draftDoc](ctx, a, "draft", draftSchema, user, 0.4)
	if err != nil {
		return nil, err
	}
	return &doc.DraftResult, nil
}

// Revise rewrites a draft following a human instruction
func (a *Assistant) Revise(ctx context.Context, pack *core.ContextPack, draft, instruction string) (*core.DraftResult, error) {
	user := strings.Join([]string{
		"Revise the draft according to the instruction.",
		"Tone: " + tone(pack),
		"Keep the reply accurate and aligned with the brand context/policies.",
		"Return the full revised draft as plain text.",
		"",
		"Context pack (compact):",
		a.compactContext(pack),
		"",
		"Instruction:",
		a.text.Truncate(instruction, 1200),
		"",
		"Current draft:",
		strings.TrimSpace(draft),
		"",
		"Signature (if present, keep at end):",
		signature(pack),
	}, "\n")

	doc, err := completeJSON[draftDoc](ctx, a, "revise", draftSchema, user, 0.3)
	if err != nil {
		return nil, err
	}
	return &doc.DraftResult, nil
}

// completeJSON asks for a JSON reply matching schema. An unusable reply is
// retried once with the validation error appended to the prompt.
func completeJSON[T any](ctx context.Context, a *Assistant, kind string, schema *replySchema, user string, temperature float32) (*T, error) {
	base := strings.TrimSpace(user) +
		"\n\nReturn ONLY valid JSON matching this schema (no markdown fences, no extra keys):\n" + schema.text

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		prompt := base
		if lastErr != nil {
			prompt += "\n\nYour previous output was invalid. Fix it. Error:\n" + a.text.Truncate(lastErr.Error(), maxRetryReason)
		}

		text, err := a.completer.Complete(ctx, ports.CompletionRequest{
			System:      systemPrompt,
			User:        prompt,
			Temperature: temperature,
			JSON:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("%s request to %s failed: %w", kind, a.completer.Name(), err)
		}

		var doc T
		lastErr = decodeDocument(text, schema, &doc)
		if lastErr == nil {
			return &doc, nil
		}
		a.logger.Warn("Invalid LLM output",
			zap.String("kind", kind),
			zap.String("provider", a.completer.Name()),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	return nil, fmt.Errorf("invalid JSON output for %s: %w", kind, lastErr)
}

func decodeDocument(text string, schema *replySchema, dst any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := schema.check(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("expected JSON object: %w", err)
	}
	return nil
}

func (a *Assistant) body(email *core.Email, limit int) string {
	if a.maxBodySize > 0 && a.maxBodySize < limit {
		limit = a.maxBodySize
	}
	return a.text.ProcessText(email.Body, limit)
}

func (a *Assistant) formatContext(pack *core.ContextPack) string {
	if pack == nil {
		pack = &core.ContextPack{}
	}
	keywords := pack.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	doc := map[string]any{
		"brand_name":         pack.BrandName,
		"brand_blurb":        pack.BrandBlurb,
		"tone":               pack.Tone,
		"signature":          pack.Signature,
		"keywords_array":     keywords,
		"products_info_json": pack.ProductsInfo,
		"policies_json":      pack.Policies,
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (a *Assistant) compactContext(pack *core.ContextPack) string {
	if pack == nil {
		pack = &core.ContextPack{}
	}
	return a.text.CompactJSON(map[string]any{
		"brand_name":    pack.BrandName,
		"brand_blurb":   pack.BrandBlurb,
		"policies_json": pack.Policies,
	}, 4000)
}

func tone(pack *core.ContextPack) string {
	if pack != nil {
		if t := strings.TrimSpace(pack.Tone); t != "" {
			return t
		}
	}
	return defaultTone
}

func signature(pack *core.ContextPack) string {
	if pack != nil {
		if s := strings.TrimSpace(pack.Signature); s != "" {
			return s
		}
	}
	return "(none)"
}
