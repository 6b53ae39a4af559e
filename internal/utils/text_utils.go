package utils

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const ellipsis = "…"

// TextProcessor prepares email text for LLM prompts
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// Truncate trims s and cuts it to at most maxChars characters, marking the
// cut with an ellipsis. A non-positive maxChars disables the limit.
func (tp *TextProcessor) Truncate(s string, maxChars int) string {
	s = strings.TrimSpace(s)
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	runes := []rune(s)
	truncated := strings.TrimRightFunc(string(runes[:maxChars-1]), func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})

	tp.logger.Debug("Text truncated",
		zap.Int("original_chars", len(runes)),
		zap.Int("max_chars", maxChars))

	return truncated + ellipsis
}

// SanitizeUTF8 drops invalid UTF-8 sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")
	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// ProcessText sanitizes and truncates text in one operation
func (tp *TextProcessor) ProcessText(text string, maxChars int) string {
	return tp.Truncate(tp.SanitizeUTF8(text), maxChars)
}

// CompactJSON renders v as compact JSON cut to maxChars
func (tp *TextProcessor) CompactJSON(v any, maxChars int) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return tp.Truncate(string(b), maxChars)
}
