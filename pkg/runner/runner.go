// Package runner hands out execution contexts for runner ids.
package runner

import (
	"context"
	"fmt"
)

// ExecutionContext is the environment a job runs in. It is owned by a single
// executor invocation between Acquire and Release.
type ExecutionContext struct {
	RunnerID    string
	RunID       string
	WorkDir     string
	Environment map[string]string
}

type Provider interface {
	Acquire(ctx context.Context, runnerID string) (*ExecutionContext, error)
	Release(ctx context.Context, ec *ExecutionContext) error
}

// InfrastructureError means no execution context could be obtained for the
// runner. Nothing was executed.
type InfrastructureError struct {
	RunnerID string
	Err      error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("acquiring runner %q: %v", e.RunnerID, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
