// Package executor runs a job's steps in order on a single runner. The first
// failing step skips the remaining steps except those marked to always run,
// which execute in order regardless of earlier failures or cancellation.
package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mumoshu/runjob/pkg/job"
	"github.com/mumoshu/runjob/pkg/runner"
	"github.com/mumoshu/runjob/pkg/shell"
	"github.com/mumoshu/runjob/pkg/util/envutil"
)

const (
	EnvRunID    = "RUNJOB_RUN_ID"
	EnvRunnerID = "RUNJOB_RUNNER_ID"
	EnvJob      = "RUNJOB_JOB"
	EnvStep     = "RUNJOB_STEP"
)

type CommandRunner interface {
	Run(ctx context.Context, c shell.Command) (*shell.Result, error)
}

type Executor struct {
	provider runner.Provider
	shell    CommandRunner
	timeout  time.Duration
	environ  map[string]string
	log      log.FieldLogger
}

type Option func(*Executor)

// WithTimeout sets the per-step timeout for steps that declare none. Zero
// means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.timeout = d
	}
}

func WithCommandRunner(r CommandRunner) Option {
	return func(e *Executor) {
		e.shell = r
	}
}

// WithProcessEnv replaces the inherited process environment every step
// starts from.
func WithProcessEnv(env map[string]string) Option {
	return func(e *Executor) {
		e.environ = env
	}
}

func WithLogger(logger log.FieldLogger) Option {
	return func(e *Executor) {
		e.log = logger
	}
}

func New(provider runner.Provider, opts ...Option) *Executor {
	e := &Executor{
		provider: provider,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.StandardLogger()
	}
	if e.shell == nil {
		e.shell = &shell.Runner{MaxOutput: shell.DefaultMaxOutput, Log: e.log}
	}
	if e.environ == nil {
		e.environ = envutil.ParseEnviron()
	}
	return e
}

// Run acquires an execution context for runnerID, executes j on it and
// releases it. A *runner.InfrastructureError is returned without a result
// when no context could be acquired.
func (e *Executor) Run(ctx context.Context, j *job.Job, runnerID string) (*Result, error) {
	if j == nil {
		return nil, &job.ConfigError{Err: errors.New("no job given")}
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}

	ec, err := e.provider.Acquire(ctx, runnerID)
	if err != nil {
		var infraErr *runner.InfrastructureError
		if !errors.As(err, &infraErr) {
			err = &runner.InfrastructureError{RunnerID: runnerID, Err: err}
		}
		return nil, err
	}
	defer func() {
		if err := e.provider.Release(context.WithoutCancel(ctx), ec); err != nil {
			e.log.WithFields(log.Fields{"runner": ec.RunnerID, "run": ec.RunID}).Warnf("releasing runner: %v", err)
		}
	}()

	return e.Execute(ctx, j, ec)
}

// Execute runs the steps of j on ec. The returned error is non-nil only for
// an invalid job; step failures are reported in the Result.
func (e *Executor) Execute(ctx context.Context, j *job.Job, ec *runner.ExecutionContext) (*Result, error) {
	if j == nil {
		return nil, &job.ConfigError{Err: errors.New("no job given")}
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}

	logger := e.log.WithFields(log.Fields{
		"job":    j.Name(),
		"runner": ec.RunnerID,
		"run":    ec.RunID,
	})

	res := &Result{
		RunID:     ec.RunID,
		Job:       j.Name(),
		RunnerID:  ec.RunnerID,
		StartedAt: time.Now(),
	}

	logger.Infof("job %s started", j.Name())

	// halted is set by any failing step and skips the remaining regular
	// steps. Only regular steps that fail or get skipped by a failure make the
	// run Failed; a cleanup failure is reported through its StepResult.
	var halted, failed, aborted bool
	for _, s := range j.Steps() {
		if ctx.Err() != nil {
			aborted = true
		}

		if (halted || aborted) && !s.AlwaysRun() {
			logger.WithField("step", s.Name()).Infof("skipping step %s", s.Name())
			res.Skipped = append(res.Skipped, s.Name())
			if halted {
				failed = true
			}
			continue
		}

		stepCtx := ctx
		if s.AlwaysRun() {
			// Cleanup is never interrupted by cancellation, only by its timeout.
			stepCtx = context.WithoutCancel(ctx)
		}

		sr := e.runStep(stepCtx, logger.WithField("step", s.Name()), j, s, ec)
		res.StepResults = append(res.StepResults, sr)

		switch sr.Status {
		case StepCancelled:
			aborted = true
		case StepFailed, StepTimedOut:
			halted = true
			if !s.AlwaysRun() {
				failed = true
			}
		}
	}

	switch {
	case aborted:
		res.Status = StatusAborted
	case failed:
		res.Status = StatusFailed
	default:
		res.Status = StatusSuccess
	}
	res.FinishedAt = time.Now()

	logger.WithFields(log.Fields{
		"status":   res.Status,
		"duration": res.FinishedAt.Sub(res.StartedAt).String(),
	}).Infof("job %s finished", j.Name())

	return res, nil
}

func (e *Executor) runStep(ctx context.Context, logger log.FieldLogger, j *job.Job, s job.Step, ec *runner.ExecutionContext) StepResult {
	sr := StepResult{
		Step:      s.Name(),
		AlwaysRun: s.AlwaysRun(),
		StartedAt: time.Now(),
	}

	fail := func(err error) StepResult {
		sr.Status = StepFailed
		sr.ExitCode = -1
		sr.Err = &StepFailure{Step: s.Name(), ExitCode: -1, Err: err}
		sr.Duration = time.Since(sr.StartedAt)
		logger.Errorf("step %s failed: %v", s.Name(), err)
		return sr
	}

	env := envutil.Merge(e.environ, ec.Environment, j.Env(), s.Env(), map[string]string{
		EnvRunID:    ec.RunID,
		EnvRunnerID: ec.RunnerID,
		EnvJob:      j.Name(),
		EnvStep:     s.Name(),
	})

	data := templateData{
		Env:     env,
		Runner:  ec.RunnerID,
		RunID:   ec.RunID,
		Job:     j.Name(),
		Step:    s.Name(),
		WorkDir: ec.WorkDir,
	}

	argv, wd := s.Command(), s.WorkingDirectory()
	if !s.Literal() {
		var err error
		argv, err = renderAll(fmt.Sprintf("%s.%s.command", j.Name(), s.Name()), argv, data)
		if err != nil {
			return fail(err)
		}
		wd, err = render(fmt.Sprintf("%s.%s.working_directory", j.Name(), s.Name()), wd, data)
		if err != nil {
			return fail(err)
		}
	}
	sr.Command = argv
	if s.Shell() {
		argv = []string{"sh", "-c", argv[0]}
	}

	dir, err := resolveDir(ec.WorkDir, wd)
	if err != nil {
		return fail(err)
	}

	timeout := s.Timeout()
	if timeout == 0 {
		timeout = e.timeout
	}

	logger.Infof("step %s started", s.Name())

	out, err := e.shell.Run(ctx, shell.Command{
		Args:    argv,
		Dir:     dir,
		Env:     envutil.ToList(env),
		Timeout: timeout,
		Log:     logger,
	})
	if err != nil {
		return fail(err)
	}

	sr.ExitCode = out.ExitCode
	sr.Stdout = string(out.Stdout)
	sr.Stderr = string(out.Stderr)
	sr.Truncated = out.Truncated
	sr.Duration = time.Since(sr.StartedAt)

	failure := StepFailure{Step: s.Name(), ExitCode: out.ExitCode}
	switch {
	case out.Cancelled:
		sr.Status = StepCancelled
		sr.Err = &CancelledError{StepFailure: failure}
	case out.TimedOut:
		sr.Status = StepTimedOut
		sr.Err = &TimeoutError{StepFailure: failure, Timeout: timeout}
	case out.ExitCode != 0:
		sr.Status = StepFailed
		sr.Err = &failure
	default:
		sr.Status = StepSucceeded
	}

	entry := logger.WithFields(log.Fields{
		"exit_code": sr.ExitCode,
		"duration":  sr.Duration.String(),
		"status":    sr.Status,
	})
	if sr.Err != nil {
		entry.Errorf("step %s %s", s.Name(), sr.Status)
	} else {
		entry.Infof("step %s succeeded", s.Name())
	}

	return sr
}

// resolveDir resolves a step working directory against the runner workdir.
// Relative paths must stay inside it.
func resolveDir(workDir, dir string) (string, error) {
	if dir == "" {
		return workDir, nil
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir), nil
	}

	resolved := filepath.Clean(filepath.Join(workDir, dir))
	rel, err := filepath.Rel(workDir, resolved)
	if err != nil {
		return "", errors.Wrapf(err, "resolving working directory %q", dir)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("working directory %q is outside the runner workdir %q", dir, workDir)
	}
	return resolved, nil
}
