package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	fenceStart = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceEnd   = regexp.MustCompile("\\s*```$")
)

// extractJSON pulls a JSON object out of a model reply. Markdown fences are
// stripped and, failing a direct parse, the outermost {...} span is used.
func extractJSON(text string) (json.RawMessage, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, errors.New("empty LLM response")
	}

	raw = fenceStart.ReplaceAllString(raw, "")
	raw = fenceEnd.ReplaceAllString(raw, "")

	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.New("could not locate JSON in LLM response")
	}

	candidate := raw[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, errors.New("LLM response contains malformed JSON")
	}
	return json.RawMessage(candidate), nil
}
