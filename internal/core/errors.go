package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced email or bucket no longer exists
	ErrNotFound = errors.New("not found")
	// ErrCollaboratorTimeout is matched by collaborator errors caused by a step deadline
	ErrCollaboratorTimeout = errors.New("collaborator timed out")

	errNoResult = errors.New("collaborator returned no result")
)

// ConfigurationError reports a malformed bucket definition
type ConfigurationError struct {
	BucketID string
	Field    string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid bucket %q: %s: %s", e.BucketID, e.Field, e.Reason)
}

// CollaboratorError wraps a failure of an external collaborator
type CollaboratorError struct {
	Step    string
	Timeout bool
	Err     error
}

func (e *CollaboratorError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrCollaboratorTimeout
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorTimeout && e.Timeout
}

// collaboratorError classifies err from a step that ran under stepCtx
func collaboratorError(step string, stepCtx context.Context, err error) error {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded)
	return &CollaboratorError{Step: step, Timeout: timeout, Err: err}
}
