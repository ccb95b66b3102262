package executor

import (
	"fmt"
	"time"
)

// StepFailure reports a step that did not succeed. ExitCode is -1 when the
// command never produced an exit status.
type StepFailure struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *StepFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %q exited with code %d", e.Step, e.ExitCode)
}

func (e *StepFailure) Unwrap() error {
	return e.Err
}

type TimeoutError struct {
	StepFailure
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out after %s", e.Step, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return &e.StepFailure
}

type CancelledError struct {
	StepFailure
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("step %q was cancelled", e.Step)
}

func (e *CancelledError) Unwrap() error {
	return &e.StepFailure
}
