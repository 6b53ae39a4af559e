package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options controls background maintenance of a store
type Options struct {
	// CleanupInterval is how often old processing runs are pruned; zero disables pruning
	CleanupInterval time.Duration
	// RunRetention is how long processing runs are kept
	RunRetention time.Duration
}

// janitor runs a store's Cleanup on a ticker until stopped
type janitor struct {
	opts     Options
	logger   *zap.Logger
	cleanup  func(ctx context.Context, retention time.Duration) error
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newJanitor(opts Options, logger *zap.Logger, cleanup func(context.Context, time.Duration) error) *janitor {
	return &janitor{
		opts:    opts,
		logger:  logger,
		cleanup: cleanup,
		stopCh:  make(chan struct{}),
	}
}

func (j *janitor) start() {
	if j.opts.CleanupInterval <= 0 || j.opts.RunRetention <= 0 {
		return
	}
	go j.run()
}

func (j *janitor) run() {
	ticker := time.NewTicker(j.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.cleanup(context.Background(), j.opts.RunRetention); err != nil {
				j.logger.Error("Failed to clean up processing runs", zap.Error(err))
			}
		case <-j.stopCh:
			return
		}
	}
}

func (j *janitor) stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}
