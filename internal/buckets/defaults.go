// Package buckets provides the default bucket set and YAML bucket files.
package buckets

import (
	"github.com/mikey/inbox-triage/internal/core"
)

func confidence(v float64) *float64 { return &v }

var notNewsletter = []string{"unsubscribe"}

// Defaults returns the bucket set seeded for a user with no buckets.
// The set is aimed at solo founders and small teams: a handful of actionable
// categories, a newsletter sink and a high-confidence catch-all.
func Defaults() []core.Bucket {
	return []core.Bucket{
		{
			Slug:        "priority",
			Name:        "Priority",
			Description: "Time-sensitive, high-stakes messages.",
			Priority:    10,
			Enabled:     true,
			Matchers: core.Matchers{Keywords: []string{
				"urgent", "asap", "action required", "deadline", "past due", "overdue", "payment failed",
				"account suspended", "security alert", "verify your", "reset your password",
			}},
			Actions: allActions(),
		},
		{
			Slug:        "sales",
			Name:        "Sales",
			Description: "Leads, pricing, demos, and revenue conversations.",
			Priority:    20,
			Enabled:     true,
			Matchers: core.Matchers{
				Keywords: []string{
					"pricing", "price", "quote", "quotation", "demo", "trial", "pilot", "poc", "proposal", "rfp",
					"rfq", "buy", "purchase", "subscription", "enterprise", "licensing", "integration", "partnership",
				},
				ExcludeKeywords: notNewsletter,
			},
			Actions: allActions(),
		},
		{
			Slug:        "support",
			Name:        "Customer",
			Description: "Customer support, bugs, issues, cancellations.",
			Priority:    30,
			Enabled:     true,
			Matchers: core.Matchers{
				Keywords: []string{
					"support", "help", "issue", "bug", "error", "broken", "failed", "can't", "cannot", "refund",
					"cancel", "cancellation", "complaint",
				},
				ExcludeKeywords: notNewsletter,
			},
			Actions: allActions(),
		},
		{
			Slug:        "hiring",
			Name:        "Hiring",
			Description: "Candidates, recruiters, interviews, hiring logistics.",
			Priority:    40,
			Enabled:     true,
			Matchers: core.Matchers{
				Keywords: []string{
					"application", "apply", "resume", "cv", "candidate", "interview", "recruiter", "hiring", "role",
					"position", "offer", "salary",
				},
				ExcludeKeywords: notNewsletter,
			},
			Actions: allActions(),
		},
		{
			Slug:        "finance",
			Name:        "Finance",
			Description: "Invoices, receipts, payments, renewals.",
			Priority:    50,
			Enabled:     true,
			Matchers: core.Matchers{
				Keywords: []string{
					"invoice", "billing", "payment", "receipt", "charged", "charge", "renewal", "tax", "vat", "gst",
					"wire", "bank", "payout", "statement", "balance", "past due", "overdue",
				},
				ExcludeKeywords: notNewsletter,
			},
			Actions: noDraft(),
		},
		{
			Slug:        "ops",
			Name:        "Ops",
			Description: "Contracts, legal, security, vendor questionnaires.",
			Priority:    60,
			Enabled:     true,
			Matchers: core.Matchers{
				Keywords: []string{
					"contract", "nda", "msa", "dpa", "sow", "legal", "terms", "privacy", "security", "soc2", "soc 2",
					"iso", "gdpr", "data processing", "audit", "compliance", "questionnaire",
				},
				ExcludeKeywords: notNewsletter,
			},
			Actions: noDraft(),
		},
		{
			Slug:        "fyi",
			Name:        "FYI",
			Description: "Newsletters and low-signal updates.",
			Priority:    90,
			Enabled:     true,
			Matchers: core.Matchers{Keywords: []string{
				"unsubscribe", "newsletter", "digest", "view in browser", "no-reply", "noreply", "do not reply",
			}},
			Actions: core.Actions{Ignore: true},
		},
		{
			Slug:        "other",
			Name:        "Other",
			Description: "Everything else. We only push/draft when confidence is high.",
			Priority:    1000,
			Enabled:     true,
			Actions: core.Actions{
				Classify:           true,
				Summarize:          true,
				Draft:              true,
				Push:               true,
				PushMinConfidence:  confidence(0.85),
				DraftMinConfidence: confidence(0.7),
			},
		},
	}
}

func allActions() core.Actions {
	return core.Actions{Classify: true, Summarize: true, Draft: true, Push: true}
}

func noDraft() core.Actions {
	return core.Actions{Classify: true, Summarize: true, Push: true}
}
