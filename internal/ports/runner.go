package ports

import (
	"context"

	"github.com/mikey/inbox-triage/internal/core"
)

// Runner defines the interface for the background poll loop
type Runner interface {
	// RunOnce runs one poll cycle for every active user
	RunOnce(ctx context.Context) ([]*core.BatchReport, error)

	// Start starts the periodic poll loop
	Start() error

	// Stop stops the poll loop and waits for an in-flight cycle to finish
	Stop() error
}
