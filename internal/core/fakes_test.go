package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeBuckets struct {
	raw []RawBucket
	err error
}

func (f *fakeBuckets) ListBuckets(context.Context, string) ([]RawBucket, error) {
	return f.raw, f.err
}

type fakeEmails struct {
	emails []Email
	err    error
}

func (f *fakeEmails) ListPending(_ context.Context, _ string, limit int) ([]Email, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.emails) > limit {
		return f.emails[:limit], nil
	}
	return f.emails, nil
}

func (f *fakeEmails) GetEmail(_ context.Context, userID, emailID string) (*Email, error) {
	for i := range f.emails {
		if f.emails[i].ID == emailID && f.emails[i].UserID == userID {
			e := f.emails[i]
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

type fakeSink struct {
	mu       sync.Mutex
	outcomes map[string]*Outcome
	err      error
}

func newFakeSink() *fakeSink {
	return &fakeSink{outcomes: make(map[string]*Outcome)}
}

func (f *fakeSink) SaveOutcome(_ context.Context, o *Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *o
	f.outcomes[o.EmailID] = &cp
	return nil
}

func (f *fakeSink) get(id string) *Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[id]
}

// fakeLLM serves as classifier, summarizer, drafter and reviser
type fakeLLM struct {
	mu sync.Mutex

	classification map[string]*Classification
	failOn         map[string]string // email id -> step
	empty          map[string]string // email id -> step answered with (nil, nil)
	block          bool

	classifyCalls  int
	summarizeCalls int
	draftCalls     int
	draftBasis     *Summary
}

func (f *fakeLLM) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeLLM) failing(id, step string) bool {
	return f.failOn != nil && f.failOn[id] == step
}

func (f *fakeLLM) silent(id, step string) bool {
	return f.empty != nil && f.empty[id] == step
}

func (f *fakeLLM) Classify(ctx context.Context, e *Email, _ *ContextPack) (*Classification, error) {
	f.mu.Lock()
	f.classifyCalls++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.failing(e.ID, StepClassify) {
		return nil, errors.New("model unavailable")
	}
	if f.silent(e.ID, StepClassify) {
		return nil, nil
	}
	if c, ok := f.classification[e.ID]; ok {
		return c, nil
	}
	return &Classification{IsRelevant: true, Confidence: 0.9, Category: "general"}, nil
}

func (f *fakeLLM) Summarize(ctx context.Context, e *Email, _ *ContextPack) (*Summary, error) {
	f.mu.Lock()
	f.summarizeCalls++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.failing(e.ID, StepSummarize) {
		return nil, errors.New("model unavailable")
	}
	if f.silent(e.ID, StepSummarize) {
		return nil, nil
	}
	return &Summary{Bullets: []string{"Customer asks about " + e.Subject}, SuggestedNextStep: "Reply"}, nil
}

func (f *fakeLLM) Draft(ctx context.Context, e *Email, _ *ContextPack, s *Summary) (*DraftResult, error) {
	f.mu.Lock()
	f.draftCalls++
	f.draftBasis = s
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.failing(e.ID, StepDraft) {
		return nil, errors.New("model unavailable")
	}
	if f.silent(e.ID, StepDraft) {
		return nil, nil
	}
	return &DraftResult{Text: "Thanks for reaching out."}, nil
}

func (f *fakeLLM) Revise(_ context.Context, _ *ContextPack, draft, instruction string) (*DraftResult, error) {
	return &DraftResult{Text: draft + " [" + instruction + "]"}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []*PushMessage
	err      error
}

func (f *fakeNotifier) Push(_ context.Context, _ string, msg *PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeDrafts struct {
	versions []*DraftVersion
	sent     map[string]string
}

func (f *fakeDrafts) AppendDraft(_ context.Context, emailID, text, instruction string) (*DraftVersion, error) {
	v := &DraftVersion{EmailID: emailID, Version: len(f.versions) + 1, Text: text, Instruction: instruction, CreatedAt: time.Now()}
	f.versions = append(f.versions, v)
	return v, nil
}

func (f *fakeDrafts) LatestDraft(_ context.Context, emailID string) (*DraftVersion, error) {
	for i := len(f.versions) - 1; i >= 0; i-- {
		if f.versions[i].EmailID == emailID {
			return f.versions[i], nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeDrafts) EmailStatus(_ context.Context, _, emailID string) (Status, error) {
	if _, ok := f.sent[emailID]; ok {
		return StatusSent, nil
	}
	return StatusNeedsReview, nil
}

func (f *fakeDrafts) MarkSent(_ context.Context, _, emailID, sentID string) error {
	if f.sent == nil {
		f.sent = make(map[string]string)
	}
	f.sent[emailID] = sentID
	return nil
}

type fakeSender struct {
	calls int
	err   error
}

func (f *fakeSender) SendReply(context.Context, *Email, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "sent-1", nil
}

type recordingObserver struct {
	mu      sync.Mutex
	steps   map[string]int
	batches int
}

func (r *recordingObserver) ObserveStep(_ context.Context, step, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.steps == nil {
		r.steps = make(map[string]int)
	}
	r.steps[step+":"+result]++
}

func (r *recordingObserver) ObserveOutcome(context.Context, *Outcome) {}

func (r *recordingObserver) ObserveBatch(context.Context, *BatchReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
}

func floatPtr(f float64) *float64 { return &f }
