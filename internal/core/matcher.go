package core

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/mikey/inbox-triage/internal/senders"
)

// Matches reports whether bucket b claims email e.
//
// Exclusions are checked first and always win. A bucket whose inclusion
// lists are all empty matches every email that is not excluded, which is how
// a low-priority catch-all bucket is expressed.
func Matches(b *Bucket, e *Email) bool {
	m := b.Matchers
	from := senders.Parse(e.From)
	hay := haystack(e)

	excluded := senders.NewList(m.ExcludeSenderEmails, m.ExcludeSenderDomains)
	if excluded.Contains(from) || containsAnyKeyword(hay, m.ExcludeKeywords) {
		return false
	}

	if m.IsWildcard() {
		return true
	}

	included := senders.NewList(m.SenderEmails, m.SenderDomains)
	return included.Contains(from) || containsAnyKeyword(hay, m.Keywords)
}

// haystack is the case-folded text keywords are searched in
func haystack(e *Email) string {
	return fold(strings.Join([]string{e.Subject, e.Snippet, e.Body}, "\n"))
}

func containsAnyKeyword(hay string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(hay, fold(kw)) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding. A Caser is stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
