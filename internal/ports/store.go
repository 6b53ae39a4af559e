package ports

import (
	"context"
	"time"

	"github.com/mikey/inbox-triage/internal/core"
)

// User is an account whose inbox is triaged
type User struct {
	ID          string
	Email       string
	DisplayName string
	Active      bool
}

// Store defines the persistence interface shared by the memory, SQLite and MySQL adapters
type Store interface {
	core.BucketSource
	core.EmailSource
	core.ContextSource
	core.OutcomeSink
	core.DraftStore

	// SaveUser creates or updates a user
	SaveUser(ctx context.Context, user *User) error

	// GetUser returns a user, or core.ErrNotFound
	GetUser(ctx context.Context, userID string) (*User, error)

	// ListUsers returns the active users
	ListUsers(ctx context.Context) ([]User, error)

	// SaveBuckets stores buckets for a user, assigning IDs to buckets without one
	SaveBuckets(ctx context.Context, userID string, buckets []core.Bucket) error

	// AddEmail stores a newly ingested email with status ingested
	AddEmail(ctx context.Context, email *core.Email) error

	// GetOutcome returns the stored outcome of an email, or core.ErrNotFound
	GetOutcome(ctx context.Context, emailID string) (*core.Outcome, error)

	// SaveContextPack creates or replaces a user's context pack
	SaveContextPack(ctx context.Context, userID string, pack *core.ContextPack) error

	// RecordRun stores the report of one poll cycle
	RecordRun(ctx context.Context, run *core.ProcessingRun) error

	// ListRuns returns the most recent poll cycle reports of a user, newest first
	ListRuns(ctx context.Context, userID string, limit int) ([]core.ProcessingRun, error)

	// Cleanup removes processing runs older than the retention period
	Cleanup(ctx context.Context, retention time.Duration) error

	// Close stops background tasks and releases the underlying connection
	Close() error
}
