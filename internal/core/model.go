package core

import (
	"encoding/json"
	"time"
)

// Status is the processing state of an email item
type Status string

const (
	StatusIngested    Status = "ingested"
	StatusIgnored     Status = "ignored"
	StatusProcessed   Status = "processed"
	StatusNeedsReview Status = "needs_review"
	StatusSent        Status = "sent"
	StatusFailed      Status = "failed"
)

// Email represents an ingested email message
type Email struct {
	ID         string
	UserID     string
	AccountID  string
	ThreadID   string
	MessageID  string
	From       string
	Subject    string
	Snippet    string
	Body       string
	ReceivedAt time.Time
}

// Matchers holds the inclusion and exclusion predicates of a bucket.
// Any inclusion match qualifies an email, any exclusion match disqualifies it.
type Matchers struct {
	Keywords             []string `json:"keywords" yaml:"keywords"`
	SenderDomains        []string `json:"sender_domains" yaml:"sender_domains"`
	SenderEmails         []string `json:"sender_emails" yaml:"sender_emails"`
	ExcludeKeywords      []string `json:"exclude_keywords" yaml:"exclude_keywords"`
	ExcludeSenderDomains []string `json:"exclude_sender_domains" yaml:"exclude_sender_domains"`
	ExcludeSenderEmails  []string `json:"exclude_sender_emails" yaml:"exclude_sender_emails"`
}

// IsWildcard reports whether every inclusion list is empty. Such a bucket
// claims every email that is not excluded and serves as a catch-all.
func (m Matchers) IsWildcard() bool {
	return len(m.Keywords) == 0 && len(m.SenderDomains) == 0 && len(m.SenderEmails) == 0
}

// Actions is the action policy of a bucket
type Actions struct {
	Ignore             bool     `json:"ignore" yaml:"ignore"`
	Classify           bool     `json:"llm_classify" yaml:"llm_classify"`
	Summarize          bool     `json:"llm_summarize" yaml:"llm_summarize"`
	Draft              bool     `json:"llm_draft" yaml:"llm_draft"`
	Push               bool     `json:"push" yaml:"push"`
	PushMinConfidence  *float64 `json:"push_min_confidence,omitempty" yaml:"push_min_confidence,omitempty"`
	DraftMinConfidence *float64 `json:"draft_min_confidence,omitempty" yaml:"draft_min_confidence,omitempty"`
}

// Bucket is a user-defined routing rule
type Bucket struct {
	ID          string
	UserID      string
	Slug        string
	Name        string
	Description string
	Priority    int
	Enabled     bool
	Matchers    Matchers
	Actions     Actions
}

// RawBucket is a bucket as stored, with loosely typed matcher and action documents
type RawBucket struct {
	ID          string
	UserID      string
	Slug        string
	Name        string
	Description string
	Priority    int
	Enabled     bool
	Matchers    json.RawMessage
	Actions     json.RawMessage
}

// Classification is the relevance verdict produced by the classifier
type Classification struct {
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
}

// Summary is a short structured summary of an email
type Summary struct {
	Bullets           []string `json:"summary_bullets"`
	WhatTheyWant      []string `json:"what_they_want"`
	SuggestedNextStep string   `json:"suggested_next_step"`
	Flags             []string `json:"flags,omitempty"`
}

// DraftResult is a generated reply draft
type DraftResult struct {
	Text                string   `json:"draft_text"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`
}

// DraftVersion is one stored version of a reply draft
type DraftVersion struct {
	EmailID     string
	Version     int
	Text        string
	Instruction string
	CreatedAt   time.Time
}

// AuthorizedActions is the final set of downstream actions permitted for an email.
// All four fields are always present.
type AuthorizedActions struct {
	Classify  bool `json:"classify"`
	Summarize bool `json:"summarize"`
	Draft     bool `json:"draft"`
	Push      bool `json:"push"`
}

// Any reports whether at least one action is authorized
func (a AuthorizedActions) Any() bool {
	return a.Classify || a.Summarize || a.Draft || a.Push
}

// ContextPack carries the user's brand context handed to LLM collaborators
type ContextPack struct {
	BrandName    string          `json:"brand_name,omitempty"`
	BrandBlurb   string          `json:"brand_blurb,omitempty"`
	Tone         string          `json:"tone,omitempty"`
	Signature    string          `json:"signature,omitempty"`
	Keywords     []string        `json:"keywords_array,omitempty"`
	ProductsInfo json.RawMessage `json:"products_info_json,omitempty"`
	Policies     json.RawMessage `json:"policies_json,omitempty"`
}

// PushMessage is the payload handed to the notifier
type PushMessage struct {
	EmailID string `json:"email_item_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	URL     string `json:"url"`
}

// Outcome is the resolved result of processing one email in a poll cycle
type Outcome struct {
	EmailID        string
	UserID         string
	BucketID       *string
	BucketSlug     string
	Actions        AuthorizedActions
	Classification *Classification
	Summary        *Summary
	Draft          *DraftResult
	Status         Status
	Error          string
	Pushed         bool
	ProcessedAt    time.Time
}

// Relevant reports whether the outcome counts toward the batch relevant total
func (o Outcome) Relevant() bool {
	switch {
	case o.BucketID == nil:
		return false
	case o.Status == StatusFailed, o.Status == StatusIgnored, o.Status == StatusIngested:
		return false
	}
	return o.Classification == nil || o.Classification.IsRelevant
}

// BatchReport aggregates the results of one poll cycle for one user
type BatchReport struct {
	UserID     string    `json:"user_id"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Relevant   int       `json:"relevant"`
	Ignored    int       `json:"ignored"`
	Failed     int       `json:"failed"`
	Pushed     int       `json:"pushed"`
	Skipped    int       `json:"skipped"`
	Errors     []string  `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ProcessingRun is the persisted record of one poll cycle
type ProcessingRun struct {
	UserID string
	Report BatchReport
}
