package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

type emailRecord struct {
	email   core.Email
	status  core.Status
	outcome *core.Outcome
	sentID  string
}

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]ports.User
	buckets map[string][]core.RawBucket
	emails  map[string]*emailRecord
	packs   map[string]core.ContextPack
	drafts  map[string][]core.DraftVersion
	runs    map[string][]core.ProcessingRun
	logger  *zap.Logger
	janitor *janitor
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger, opts Options) *MemoryStore {
	s := &MemoryStore{
		users:   make(map[string]ports.User),
		buckets: make(map[string][]core.RawBucket),
		emails:  make(map[string]*emailRecord),
		packs:   make(map[string]core.ContextPack),
		drafts:  make(map[string][]core.DraftVersion),
		runs:    make(map[string][]core.ProcessingRun),
		logger:  logger,
		now:     time.Now,
	}
	s.janitor = newJanitor(opts, logger, s.Cleanup)
	s.janitor.start()

	return s
}

// SaveUser creates or updates a user
func (s *MemoryStore) SaveUser(ctx context.Context, user *ports.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = *user
	return nil
}

// GetUser returns a user
func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &u, nil
}

// ListUsers returns the active users ordered by ID
func (s *MemoryStore) ListUsers(ctx context.Context) ([]ports.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]ports.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Active {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// ListBuckets returns every bucket of a user
func (s *MemoryStore) ListBuckets(ctx context.Context, userID string) ([]core.RawBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]core.RawBucket(nil), s.buckets[userID]...), nil
}

// SaveBuckets upserts buckets by ID
func (s *MemoryStore) SaveBuckets(ctx context.Context, userID string, buckets []core.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.buckets[userID]
	for i := range buckets {
		if buckets[i].ID == "" {
			buckets[i].ID = uuid.NewString()
		}
		buckets[i].UserID = userID

		raw, err := core.EncodeBucket(buckets[i])
		if err != nil {
			return err
		}

		replaced := false
		for j := range existing {
			if existing[j].ID == raw.ID {
				existing[j] = raw
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, raw)
		}
	}
	s.buckets[userID] = existing

	return nil
}

// AddEmail stores an ingested email. Re-adding a known email is a no-op.
func (s *MemoryStore) AddEmail(ctx context.Context, email *core.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	if _, ok := s.emails[email.ID]; ok {
		return nil
	}
	s.emails[email.ID] = &emailRecord{email: *email, status: core.StatusIngested}
	return nil
}

// ListPending returns up to limit ingested emails of a user, oldest first
func (s *MemoryStore) ListPending(ctx context.Context, userID string, limit int) ([]core.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []core.Email
	for _, r := range s.emails {
		if r.email.UserID == userID && r.status == core.StatusIngested {
			pending = append(pending, r.email)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ReceivedAt.Equal(pending[j].ReceivedAt) {
			return pending[i].ReceivedAt.Before(pending[j].ReceivedAt)
		}
		return pending[i].ID < pending[j].ID
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// GetEmail returns one email owned by the user
func (s *MemoryStore) GetEmail(ctx context.Context, userID, emailID string) (*core.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.emails[emailID]
	if !ok || r.email.UserID != userID {
		return nil, core.ErrNotFound
	}
	e := r.email
	return &e, nil
}

// GetContextPack returns a user's context pack, or an empty one
func (s *MemoryStore) GetContextPack(ctx context.Context, userID string) (*core.ContextPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pack := s.packs[userID]
	return &pack, nil
}

// SaveContextPack replaces a user's context pack
func (s *MemoryStore) SaveContextPack(ctx context.Context, userID string, pack *core.ContextPack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packs[userID] = *pack
	return nil
}

// SaveOutcome stores the outcome of an email and appends its draft, if any
func (s *MemoryStore) SaveOutcome(ctx context.Context, outcome *core.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.emails[outcome.EmailID]
	if !ok || r.email.UserID != outcome.UserID {
		return fmt.Errorf("email %s: %w", outcome.EmailID, core.ErrNotFound)
	}

	cp := *outcome
	r.outcome = &cp
	r.status = outcome.Status
	if outcome.Draft != nil {
		s.appendDraftLocked(outcome.EmailID, outcome.Draft.Text, "")
	}
	return nil
}

// GetOutcome returns the stored outcome of an email
func (s *MemoryStore) GetOutcome(ctx context.Context, emailID string) (*core.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.emails[emailID]
	if !ok || r.outcome == nil {
		return nil, core.ErrNotFound
	}
	out := *r.outcome
	out.Status = r.status
	return &out, nil
}

// AppendDraft stores a new draft version
func (s *MemoryStore) AppendDraft(ctx context.Context, emailID, text, instruction string) (*core.DraftVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[emailID]; !ok {
		return nil, core.ErrNotFound
	}
	v := s.appendDraftLocked(emailID, text, instruction)
	return &v, nil
}

func (s *MemoryStore) appendDraftLocked(emailID, text, instruction string) core.DraftVersion {
	v := core.DraftVersion{
		EmailID:     emailID,
		Version:     len(s.drafts[emailID]) + 1,
		Text:        text,
		Instruction: instruction,
		CreatedAt:   s.now(),
	}
	s.drafts[emailID] = append(s.drafts[emailID], v)
	return v
}

// LatestDraft returns the newest draft version of an email
func (s *MemoryStore) LatestDraft(ctx context.Context, emailID string) (*core.DraftVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.drafts[emailID]
	if len(versions) == 0 {
		return nil, core.ErrNotFound
	}
	v := versions[len(versions)-1]
	return &v, nil
}

// MarkSent marks an email as sent
func (s *MemoryStore) MarkSent(ctx context.Context, userID, emailID, sentMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.emails[emailID]
	if !ok || r.email.UserID != userID {
		return core.ErrNotFound
	}
	r.status = core.StatusSent
	r.sentID = sentMessageID
	return nil
}

// EmailStatus returns the processing status of an email
func (s *MemoryStore) EmailStatus(ctx context.Context, userID, emailID string) (core.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.emails[emailID]
	if !ok || r.email.UserID != userID {
		return "", core.ErrNotFound
	}
	return r.status, nil
}

// RecordRun stores the report of one poll cycle
func (s *MemoryStore) RecordRun(ctx context.Context, run *core.ProcessingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.UserID] = append(s.runs[run.UserID], *run)
	return nil
}

// ListRuns returns the newest processing runs of a user
func (s *MemoryStore) ListRuns(ctx context.Context, userID string, limit int) ([]core.ProcessingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.runs[userID]
	runs := make([]core.ProcessingRun, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		runs = append(runs, all[i])
	}
	return runs, nil
}

// Cleanup removes processing runs that finished before the retention window
func (s *MemoryStore) Cleanup(ctx context.Context, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-retention)
	removed := 0
	for userID, runs := range s.runs {
		kept := runs[:0]
		for _, r := range runs {
			if r.Report.FinishedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		s.runs[userID] = kept
	}

	s.logger.Debug("Cleaned up processing runs", zap.Int("removed", removed))
	return nil
}

// Close stops the background cleanup task
func (s *MemoryStore) Close() error {
	s.janitor.stop()
	return nil
}
