package llm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mikey/inbox-triage/internal/core"
)

const schemaBaseURL = "https://schemas.inbox-triage.local/"

// replySchema is a JSON Schema shown to the model and enforced on its reply
type replySchema struct {
	text     string
	compiled *jsonschema.Schema
}

var (
	classificationSchema = mustCompileSchema("classification", `{"type":"object","required":["is_relevant","confidence","category","reason"],"properties":{"is_relevant":{"type":"boolean"},"confidence":{"type":"number","minimum":0,"maximum":1},"category":{"type":"string","pattern":"\\S"},"reason":{"type":"string"}}}`)
	summarySchema        = mustCompileSchema("summary", `{"type":"object","required":["summary_bullets","what_they_want","suggested_next_step"],"properties":{"summary_bullets":{"type":"array","items":{"type":"string"},"minItems":1,"maxItems":6},"what_they_want":{"type":"array","items":{"type":"string"}},"suggested_next_step":{"type":"string"},"flags":{"type":"array","items":{"type":"string"}}}}`)
	draftSchema          = mustCompileSchema("draft", `{"type":"object","required":["draft_text"],"properties":{"draft_text":{"type":"string","minLength":1,"pattern":"\\S"},"clarifying_questions":{"type":"array","items":{"type":"string"},"maxItems":3}}}`)
)

func mustCompileSchema(name, text string) *replySchema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		panic(fmt.Sprintf("llm: parse %s schema: %v", name, err))
	}
	url := schemaBaseURL + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("llm: add %s schema: %v", name, err))
	}
	return &replySchema{text: text, compiled: c.MustCompile(url)}
}

// check validates raw JSON against the schema before it is decoded
func (s *replySchema) check(raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("expected JSON object: %w", err)
	}
	return s.compiled.Validate(inst)
}

type classificationDoc struct {
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
}

func (d *classificationDoc) classification() *core.Classification {
	return &core.Classification{
		IsRelevant: d.IsRelevant,
		Confidence: d.Confidence,
		Category:   strings.TrimSpace(d.Category),
		Reason:     strings.TrimSpace(d.Reason),
	}
}

type summaryDoc struct {
	core.Summary
}

type draftDoc struct {
	core.DraftResult
}
