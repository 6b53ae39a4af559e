package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline step names, also used as metric labels
const (
	StepClassify  = "classify"
	StepSummarize = "summarize"
	StepDraft     = "draft"
	StepPush      = "push"
	StepPersist   = "persist"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 25
)

// Collaborators groups the external systems the coordinator drives.
// The coordinator never holds a ReplySender: replies go out only through
// the Reviewer, on explicit human request.
type Collaborators struct {
	Buckets    BucketSource
	Emails     EmailSource
	Contexts   ContextSource
	Outcomes   OutcomeSink
	Classifier Classifier
	Summarizer Summarizer
	Drafter    Drafter
	Notifier   Notifier
	Observer   Observer
}

// PipelineOptions tunes batch processing
type PipelineOptions struct {
	// Workers bounds how many emails are processed concurrently
	Workers int
	// StepTimeout bounds each collaborator call; zero disables it
	StepTimeout time.Duration
	// BatchSize caps the number of emails read per poll cycle
	BatchSize int
}

// Coordinator routes emails to buckets and runs the authorized actions
type Coordinator struct {
	collab Collaborators
	opts   PipelineOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator creates a new pipeline coordinator
func NewCoordinator(collab Collaborators, opts PipelineOptions, logger *zap.Logger) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if collab.Observer == nil {
		collab.Observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		collab: collab,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessBatch runs one poll cycle for a user. Buckets and the context pack
// are read once at the start and stay fixed for the whole batch. Failures are
// isolated per email and only reported through the returned counts.
func (c *Coordinator) ProcessBatch(ctx context.Context, userID string) *BatchReport {
	report := &BatchReport{UserID: userID, StartedAt: c.now()}
	defer func() {
		report.FinishedAt = c.now()
		c.collab.Observer.ObserveBatch(ctx, report)
	}()

	snapshot, err := c.loadSnapshot(ctx, userID, report)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	pack := c.loadContextPack(ctx, userID)

	emails, err := c.collab.Emails.ListPending(ctx, userID, c.opts.BatchSize)
	if err != nil {
		c.logger.Error("Failed to list pending emails", zap.String("user_id", userID), zap.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("failed to list pending emails: %v", err))
		return report
	}
	report.Total = len(emails)

	acc := &accumulator{report: report}
	var g errgroup.Group
	g.SetLimit(c.opts.Workers)

	for i := range emails {
		if ctx.Err() != nil {
			acc.skip(len(emails) - i)
			break
		}
		email := emails[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				acc.skip(1)
				return nil
			}
			acc.add(c.ProcessEmail(ctx, snapshot, pack, &email))
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("Batch processed",
		zap.String("user_id", userID),
		zap.Int("total", report.Total),
		zap.Int("processed", report.Processed),
		zap.Int("relevant", report.Relevant),
		zap.Int("failed", report.Failed),
		zap.Int("pushed", report.Pushed),
		zap.Int("skipped", report.Skipped))

	return report
}

// ProcessEmail routes one email against a bucket snapshot (as returned by
// SnapshotBuckets), runs the authorized actions and persists the outcome.
func (c *Coordinator) ProcessEmail(ctx context.Context, snapshot []Bucket, pack *ContextPack, email *Email) *Outcome {
	out := &Outcome{EmailID: email.ID, UserID: email.UserID, Status: StatusIngested}
	logger := c.logger.With(zap.String("email_id", email.ID), zap.String("user_id", email.UserID))

	bucket, ok := resolveSnapshot(snapshot, email)
	if !ok {
		logger.Debug("No bucket matched, leaving for manual review")
		out.Status = StatusNeedsReview
		return c.finish(ctx, logger, out, email)
	}
	out.BucketID = &bucket.ID
	out.BucketSlug = bucket.Slug
	logger = logger.With(zap.String("bucket", bucket.Slug))

	auth := Authorize(bucket.Actions, nil)
	out.Actions = auth
	if !auth.Any() {
		logger.Debug("Bucket authorizes no actions", zap.Bool("ignore", bucket.Actions.Ignore))
		out.Status = StatusIgnored
		return c.finish(ctx, logger, out, email)
	}

	if auth.Classify {
		cls, err := runStep(ctx, c, StepClassify, func(stepCtx context.Context) (*Classification, error) {
			return present(c.collab.Classifier.Classify(stepCtx, email, pack))
		})
		if err != nil {
			return c.fail(ctx, logger, out, err)
		}
		out.Classification = cls
		auth = Authorize(bucket.Actions, cls)
		if !cls.IsRelevant {
			auth.Summarize, auth.Draft, auth.Push = false, false, false
		}
		out.Actions = auth
		if !cls.IsRelevant {
			logger.Debug("Classified as not relevant", zap.Float64("confidence", cls.Confidence))
			out.Status = StatusProcessed
			return c.finish(ctx, logger, out, email)
		}
	}

	if auth.Summarize {
		summary, err := runStep(ctx, c, StepSummarize, func(stepCtx context.Context) (*Summary, error) {
			return present(c.collab.Summarizer.Summarize(stepCtx, email, pack))
		})
		if err != nil {
			return c.fail(ctx, logger, out, err)
		}
		out.Summary = summary
	}

	if auth.Draft {
		basis := out.Summary
		if basis == nil {
			basis = &placeholderSummary
		}
		draft, err := runStep(ctx, c, StepDraft, func(stepCtx context.Context) (*DraftResult, error) {
			return present(c.collab.Drafter.Draft(stepCtx, email, pack, basis))
		})
		if err != nil {
			return c.fail(ctx, logger, out, err)
		}
		out.Draft = draft
	}

	out.Status = StatusProcessed
	if out.Summary != nil || out.Draft != nil {
		out.Status = StatusNeedsReview
	}
	return c.finish(ctx, logger, out, email)
}

// finish persists the outcome and, when authorized, sends the push
func (c *Coordinator) finish(ctx context.Context, logger *zap.Logger, out *Outcome, email *Email) *Outcome {
	out.ProcessedAt = c.now()

	_, err := runStep(ctx, c, StepPersist, func(stepCtx context.Context) (struct{}, error) {
		return struct{}{}, c.collab.Outcomes.SaveOutcome(stepCtx, out)
	})
	if err != nil {
		return c.fail(ctx, logger, out, err)
	}

	if out.Actions.Push && c.collab.Notifier != nil {
		msg := NewPushMessage(email, out.Summary)
		_, err := runStep(ctx, c, StepPush, func(stepCtx context.Context) (struct{}, error) {
			return struct{}{}, c.collab.Notifier.Push(stepCtx, email.UserID, msg)
		})
		if err != nil {
			logger.Warn("Failed to send push notification", zap.Error(err))
		} else {
			out.Pushed = true
		}
	}

	logger.Info("Email processed",
		zap.String("status", string(out.Status)),
		zap.Bool("pushed", out.Pushed))
	c.collab.Observer.ObserveOutcome(ctx, out)
	return out
}

// fail records a collaborator failure on the outcome. When the batch itself
// was cancelled the email is abandoned instead and stays ingested.
func (c *Coordinator) fail(ctx context.Context, logger *zap.Logger, out *Outcome, err error) *Outcome {
	if ctx.Err() != nil {
		logger.Warn("Batch cancelled, abandoning email", zap.Error(err))
		out.Status = StatusIngested
		out.Error = err.Error()
		return out
	}

	logger.Error("Email processing failed", zap.Error(err))
	out.Status = StatusFailed
	out.Error = err.Error()
	out.ProcessedAt = c.now()
	if saveErr := c.collab.Outcomes.SaveOutcome(ctx, out); saveErr != nil {
		logger.Error("Failed to record failed outcome", zap.Error(saveErr))
	}
	c.collab.Observer.ObserveOutcome(ctx, out)
	return out
}

func (c *Coordinator) loadSnapshot(ctx context.Context, userID string, report *BatchReport) ([]Bucket, error) {
	raw, err := c.collab.Buckets.ListBuckets(ctx, userID)
	if err != nil {
		c.logger.Error("Failed to load buckets", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to load buckets: %w", err)
	}

	buckets, errs := DecodeBuckets(raw)
	for _, err := range errs {
		c.logger.Warn("Skipping invalid bucket", zap.String("user_id", userID), zap.Error(err))
		report.Errors = append(report.Errors, err.Error())
	}

	return SnapshotBuckets(buckets), nil
}

func (c *Coordinator) loadContextPack(ctx context.Context, userID string) *ContextPack {
	if c.collab.Contexts == nil {
		return &ContextPack{}
	}
	pack, err := c.collab.Contexts.GetContextPack(ctx, userID)
	if err != nil || pack == nil {
		if err != nil {
			c.logger.Warn("Failed to load context pack, using empty pack", zap.String("user_id", userID), zap.Error(err))
		}
		return &ContextPack{}
	}
	return pack
}

type stepResult[T any] struct {
	value T
	err   error
}

// runStep calls fn under the step timeout. A collaborator that ignores its
// context is abandoned once the deadline passes.
func runStep[T any](ctx context.Context, c *Coordinator, step string, fn func(context.Context) (T, error)) (T, error) {
	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.opts.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, c.opts.StepTimeout)
	}
	defer cancel()

	start := c.now()
	done := make(chan stepResult[T], 1)
	go func() {
		v, err := fn(stepCtx)
		done <- stepResult[T]{value: v, err: err}
	}()

	var res stepResult[T]
	select {
	case res = <-done:
	case <-stepCtx.Done():
		res.err = stepCtx.Err()
	}

	result := "success"
	if res.err != nil {
		res.err = collaboratorError(step, stepCtx, res.err)
		result = "error"
		if res.err.(*CollaboratorError).Timeout {
			result = "timeout"
		}
	}
	c.collab.Observer.ObserveStep(ctx, step, result, c.now().Sub(start))

	return res.value, res.err
}

// present turns a nil result without an error into a step failure
func present[T any](v *T, err error) (*T, error) {
	if err == nil && v == nil {
		return nil, errNoResult
	}
	return v, err
}

// accumulator is the single synchronisation point between email workers
type accumulator struct {
	mu     sync.Mutex
	report *BatchReport
}

func (a *accumulator) add(out *Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch out.Status {
	case StatusFailed:
		a.report.Failed++
		a.report.Errors = append(a.report.Errors, fmt.Sprintf("%s: %s", out.EmailID, out.Error))
	case StatusIngested:
		a.report.Skipped++
	default:
		a.report.Processed++
		if out.Status == StatusIgnored {
			a.report.Ignored++
		}
	}
	if out.Relevant() {
		a.report.Relevant++
	}
	if out.Pushed {
		a.report.Pushed++
	}
}

func (a *accumulator) skip(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Skipped += n
}
