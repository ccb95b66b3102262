package executor

import (
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusAborted Status = "Aborted"
)

type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepTimedOut  StepStatus = "timed-out"
	StepCancelled StepStatus = "cancelled"
)

// StepResult is the outcome of one executed step. Skipped steps have no
// StepResult.
type StepResult struct {
	Step      string
	AlwaysRun bool
	Command   []string
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Status    StepStatus
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

func (r StepResult) Succeeded() bool {
	return r.Status == StepSucceeded
}

// Result is the outcome of one job run. It is not modified after it is
// returned.
type Result struct {
	RunID       string
	Job         string
	RunnerID    string
	StepResults []StepResult
	// Skipped names the steps that never ran because an earlier step failed
	// or the run was cancelled.
	Skipped    []string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Result) Success() bool {
	return r.Status == StatusSuccess
}

func (r *Result) StepResult(name string) (StepResult, bool) {
	for _, sr := range r.StepResults {
		if sr.Step == name {
			return sr, true
		}
	}
	return StepResult{}, false
}

// Err aggregates the errors of all failed steps, including failed cleanup
// steps of a run that still ended in Success.
func (r *Result) Err() error {
	var result *multierror.Error
	for _, sr := range r.StepResults {
		if sr.Err != nil {
			result = multierror.Append(result, sr.Err)
		}
	}
	if result == nil && r.Status == StatusAborted {
		return errors.Errorf("run %s was cancelled before all steps ran", r.RunID)
	}
	return result.ErrorOrNil()
}
