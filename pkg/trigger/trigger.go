// Package trigger connects external events to the executor. Deciding whether
// an event should run a job is left to a Gate; no matching is done here.
package trigger

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mumoshu/runjob/pkg/executor"
	"github.com/mumoshu/runjob/pkg/job"
)

// Event is an opaque notification such as a push or a schedule tick.
type Event struct {
	Kind       string
	Attributes map[string]string
}

// Dispatch is a resolved decision to run Job on RunnerID.
type Dispatch struct {
	Job      *job.Job
	RunnerID string
}

type Gate interface {
	// Resolve returns false when the event should not run anything.
	Resolve(ctx context.Context, ev Event) (Dispatch, bool, error)
}

type GateFunc func(ctx context.Context, ev Event) (Dispatch, bool, error)

func (f GateFunc) Resolve(ctx context.Context, ev Event) (Dispatch, bool, error) {
	return f(ctx, ev)
}

// Static dispatches the same job to the same runner for every event.
type Static Dispatch

func (s Static) Resolve(ctx context.Context, ev Event) (Dispatch, bool, error) {
	return Dispatch(s), true, nil
}

type Runner interface {
	Run(ctx context.Context, j *job.Job, runnerID string) (*executor.Result, error)
}

type Dispatcher struct {
	Gate     Gate
	Executor Runner
	Log      log.FieldLogger
}

// Handle resolves ev and runs the resulting job. It returns (nil, nil) when
// the gate decides not to run.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (*executor.Result, error) {
	logger := d.Log
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("event", ev.Kind)

	dispatch, ok, err := d.Gate.Resolve(ctx, ev)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving event %q", ev.Kind)
	}
	if !ok {
		logger.Debug("event resolved to nothing to run")
		return nil, nil
	}
	if dispatch.Job == nil {
		return nil, &job.ConfigError{Err: errors.Errorf("gate resolved event %q without a job", ev.Kind)}
	}

	logger.WithFields(log.Fields{
		"job":    dispatch.Job.Name(),
		"runner": dispatch.RunnerID,
	}).Info("dispatching job")

	return d.Executor.Run(ctx, dispatch.Job, dispatch.RunnerID)
}
