package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeBucket validates a stored bucket and coerces it into a strict record.
// Malformed matcher or action documents yield a *ConfigurationError.
func DecodeBucket(raw RawBucket) (Bucket, error) {
	b := Bucket{
		ID:          raw.ID,
		UserID:      raw.UserID,
		Slug:        strings.ToLower(strings.TrimSpace(raw.Slug)),
		Name:        raw.Name,
		Description: raw.Description,
		Priority:    raw.Priority,
		Enabled:     raw.Enabled,
	}

	matchers, err := decodeDocument(raw.ID, "matchers", raw.Matchers)
	if err != nil {
		return Bucket{}, err
	}
	actions, err := decodeDocument(raw.ID, "actions", raw.Actions)
	if err != nil {
		return Bucket{}, err
	}

	lists := []struct {
		key string
		dst *[]string
	}{
		{"keywords", &b.Matchers.Keywords},
		{"sender_domains", &b.Matchers.SenderDomains},
		{"sender_emails", &b.Matchers.SenderEmails},
		{"exclude_keywords", &b.Matchers.ExcludeKeywords},
		{"exclude_sender_domains", &b.Matchers.ExcludeSenderDomains},
		{"exclude_sender_emails", &b.Matchers.ExcludeSenderEmails},
	}
	for _, l := range lists {
		values, err := stringList(matchers[l.key])
		if err != nil {
			return Bucket{}, &ConfigurationError{BucketID: raw.ID, Field: "matchers." + l.key, Reason: err.Error()}
		}
		*l.dst = values
	}

	flags := []struct {
		keys []string
		def  bool
		dst  *bool
	}{
		{[]string{"ignore"}, false, &b.Actions.Ignore},
		{[]string{"llm_classify", "classify"}, true, &b.Actions.Classify},
		{[]string{"llm_summarize", "summarize"}, true, &b.Actions.Summarize},
		{[]string{"llm_draft", "draft"}, true, &b.Actions.Draft},
		{[]string{"push"}, true, &b.Actions.Push},
	}
	for _, f := range flags {
		v, key := lookup(actions, f.keys...)
		value, err := boolValue(v, f.def)
		if err != nil {
			return Bucket{}, &ConfigurationError{BucketID: raw.ID, Field: "actions." + key, Reason: err.Error()}
		}
		*f.dst = value
	}

	thresholds := []struct {
		key string
		dst **float64
	}{
		{"push_min_confidence", &b.Actions.PushMinConfidence},
		{"draft_min_confidence", &b.Actions.DraftMinConfidence},
	}
	for _, th := range thresholds {
		value, err := confidenceValue(actions[th.key])
		if err != nil {
			return Bucket{}, &ConfigurationError{BucketID: raw.ID, Field: "actions." + th.key, Reason: err.Error()}
		}
		*th.dst = value
	}

	return b, nil
}

// DecodeBuckets decodes every stored bucket, returning the valid ones and one
// error per bucket that failed validation.
func DecodeBuckets(raw []RawBucket) ([]Bucket, []error) {
	buckets := make([]Bucket, 0, len(raw))
	var errs []error
	for _, r := range raw {
		b, err := DecodeBucket(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		buckets = append(buckets, b)
	}
	return buckets, errs
}

// EncodeBucket converts a strict bucket back into its stored form
func EncodeBucket(b Bucket) (RawBucket, error) {
	matchers, err := json.Marshal(b.Matchers)
	if err != nil {
		return RawBucket{}, fmt.Errorf("failed to encode matchers: %w", err)
	}
	actions, err := json.Marshal(b.Actions)
	if err != nil {
		return RawBucket{}, fmt.Errorf("failed to encode actions: %w", err)
	}
	return RawBucket{
		ID:          b.ID,
		UserID:      b.UserID,
		Slug:        b.Slug,
		Name:        b.Name,
		Description: b.Description,
		Priority:    b.Priority,
		Enabled:     b.Enabled,
		Matchers:    matchers,
		Actions:     actions,
	}, nil
}

func decodeDocument(bucketID, field string, doc json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, &ConfigurationError{BucketID: bucketID, Field: field, Reason: "not a JSON object"}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func lookup(m map[string]any, keys ...string) (any, string) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, k
		}
	}
	return nil, keys[0]
}

// stringList accepts null, a single string or an array of strings
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{strings.ToLower(s)}, nil
		}
		return nil, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want string", i, item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, strings.ToLower(s))
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	default:
		return nil, fmt.Errorf("is %T, want string list", v)
	}
}

func boolValue(v any, def bool) (bool, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case bool:
		return t, nil
	default:
		return false, fmt.Errorf("is %T, want boolean", v)
	}
}

func confidenceValue(v any) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if t < 0 || t > 1 {
			return nil, fmt.Errorf("%v is outside [0, 1]", t)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("is %T, want number", v)
	}
}
