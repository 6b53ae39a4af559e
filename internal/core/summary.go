package core

import (
	"strings"
	"unicode/utf8"
)

const (
	pushTitleFallback = "Inbox Triage"
	pushBodyMaxChars  = 180
)

// placeholderSummary is handed to the drafter when no summary was produced
var placeholderSummary = Summary{
	Bullets:           []string{"(no summary)"},
	WhatTheyWant:      []string{"(unknown)"},
	SuggestedNextStep: "Reply if needed.",
}

// OneLineSummary picks the most useful single line describing an email:
// the first summary bullet, then the suggested next step, then the subject,
// then the snippet.
func OneLineSummary(s *Summary, e *Email) string {
	if s != nil {
		if len(s.Bullets) > 0 {
			if b := strings.TrimSpace(s.Bullets[0]); b != "" {
				return b
			}
		}
		if next := strings.TrimSpace(s.SuggestedNextStep); next != "" {
			return next
		}
	}
	if subject := strings.TrimSpace(e.Subject); subject != "" {
		return subject
	}
	if snippet := strings.TrimSpace(e.Snippet); snippet != "" {
		return snippet
	}
	return "New email"
}

// NewPushMessage builds the notification for a processed email
func NewPushMessage(e *Email, s *Summary) *PushMessage {
	title := strings.TrimSpace(e.From)
	if title == "" {
		title = pushTitleFallback
	}
	return &PushMessage{
		EmailID: e.ID,
		Title:   title,
		Body:    truncateRunes(OneLineSummary(s, e), pushBodyMaxChars),
		URL:     "/inbox/" + e.ID,
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
