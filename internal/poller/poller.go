// Package poller runs the triage pipeline for every active user on a fixed
// interval and records each cycle.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/buckets"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/ports"
)

// BatchProcessor runs one poll cycle for one user
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, userID string) *core.BatchReport
}

// Poller implements ports.Runner
type Poller struct {
	store    ports.Store
	batch    BatchProcessor
	interval time.Duration
	logger   *zap.Logger

	cycleMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ ports.Runner = (*Poller)(nil)

// NewPoller creates a new poller
func NewPoller(store ports.Store, batch BatchProcessor, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		store:    store,
		batch:    batch,
		interval: interval,
		logger:   logger,
	}
}

// RunOnce runs one cycle for every active user. Cycles never overlap: a call
// made while another is in flight waits for it. One user's failure is
// recorded in that user's report and does not stop the others.
func (p *Poller) RunOnce(ctx context.Context) ([]*core.BatchReport, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	reports := make([]*core.BatchReport, 0, len(users))
	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		reports = append(reports, p.runUser(ctx, user.ID))
	}
	return reports, nil
}

func (p *Poller) runUser(ctx context.Context, userID string) *core.BatchReport {
	logger := p.logger.With(zap.String("user_id", userID))

	if err := p.seedBuckets(ctx, userID); err != nil {
		logger.Error("Failed to seed default buckets", zap.Error(err))
	}

	report := p.batch.ProcessBatch(ctx, userID)

	// the run record outlives a cancelled cycle
	recordCtx := context.WithoutCancel(ctx)
	if err := p.store.RecordRun(recordCtx, &core.ProcessingRun{UserID: userID, Report: *report}); err != nil {
		logger.Error("Failed to record processing run", zap.Error(err))
	}
	return report
}

// seedBuckets stores the default bucket set for a user who has none
func (p *Poller) seedBuckets(ctx context.Context, userID string) error {
	existing, err := p.store.ListBuckets(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	p.logger.Info("Seeding default buckets", zap.String("user_id", userID))
	return p.store.SaveBuckets(ctx, userID, buckets.Defaults())
}

// Start starts the periodic poll loop
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("poller already running")
	}
	if p.interval <= 0 {
		return fmt.Errorf("invalid poll interval: %s", p.interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(ctx, p.done)

	p.logger.Info("Poller started", zap.Duration("interval", p.interval))
	return nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reports, err := p.RunOnce(ctx)
			if err != nil {
				p.logger.Error("Poll cycle failed", zap.Error(err))
				continue
			}
			p.logger.Debug("Poll cycle finished", zap.Int("users", len(reports)))
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the loop and waits for an in-flight cycle to wind down
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done

	p.logger.Info("Poller stopped")
	return nil
}
