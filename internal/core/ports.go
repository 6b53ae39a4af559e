package core

import (
	"context"
	"time"
)

// BucketSource reads a user's routing rules
type BucketSource interface {
	// ListBuckets returns every bucket of a user as stored, enabled or not
	ListBuckets(ctx context.Context, userID string) ([]RawBucket, error)
}

// EmailSource reads newly ingested emails
type EmailSource interface {
	// ListPending returns up to limit ingested emails of a user, oldest first
	ListPending(ctx context.Context, userID string, limit int) ([]Email, error)

	// GetEmail returns one email owned by the user, or ErrNotFound
	GetEmail(ctx context.Context, userID, emailID string) (*Email, error)
}

// ContextSource reads a user's context pack
type ContextSource interface {
	GetContextPack(ctx context.Context, userID string) (*ContextPack, error)
}

// OutcomeSink persists processing outcomes and drafts
type OutcomeSink interface {
	// SaveOutcome stores the resolved outcome of an email. A non-nil draft is
	// appended as a new draft version.
	SaveOutcome(ctx context.Context, outcome *Outcome) error
}

// DraftStore keeps the append-only history of reply drafts
type DraftStore interface {
	AppendDraft(ctx context.Context, emailID, text, instruction string) (*DraftVersion, error)
	LatestDraft(ctx context.Context, emailID string) (*DraftVersion, error)
	MarkSent(ctx context.Context, userID, emailID, sentMessageID string) error
	EmailStatus(ctx context.Context, userID, emailID string) (Status, error)
}

// Classifier decides whether an email is relevant
type Classifier interface {
	Classify(ctx context.Context, email *Email, pack *ContextPack) (*Classification, error)
}

// Summarizer produces a structured summary of an email
type Summarizer interface {
	Summarize(ctx context.Context, email *Email, pack *ContextPack) (*Summary, error)
}

// Drafter generates a reply draft
type Drafter interface {
	Draft(ctx context.Context, email *Email, pack *ContextPack, summary *Summary) (*DraftResult, error)
}

// Reviser rewrites a draft following a human instruction
type Reviser interface {
	Revise(ctx context.Context, pack *ContextPack, draft, instruction string) (*DraftResult, error)
}

// Notifier delivers push notifications to a user
type Notifier interface {
	Push(ctx context.Context, userID string, msg *PushMessage) error
}

// ReplySender dispatches a human-approved reply. Only the Reviewer holds one.
type ReplySender interface {
	// SendReply sends text as a reply to email and returns the sent message id
	SendReply(ctx context.Context, email *Email, text string) (string, error)
}

// Observer receives pipeline telemetry
type Observer interface {
	ObserveStep(ctx context.Context, step, result string, duration time.Duration)
	ObserveOutcome(ctx context.Context, outcome *Outcome)
	ObserveBatch(ctx context.Context, report *BatchReport)
}

type nopObserver struct{}

func (nopObserver) ObserveStep(context.Context, string, string, time.Duration) {}
func (nopObserver) ObserveOutcome(context.Context, *Outcome)                  {}
func (nopObserver) ObserveBatch(context.Context, *BatchReport)                {}
