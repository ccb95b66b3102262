// Package shell runs step commands as child processes, capturing their exit
// code and bounded stdout/stderr while streaming each line to the log.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxOutput bounds captured output per stream.
const DefaultMaxOutput = 1 << 20

// waitDelay is how long Wait keeps draining pipes after the process was
// killed. Grandchildren holding the pipes open are abandoned after that.
const waitDelay = 2 * time.Second

type Command struct {
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
	// Log overrides Runner.Log for this command.
	Log log.FieldLogger
}

type Result struct {
	ExitCode  int
	Stdout    []byte
	Stderr    []byte
	Truncated bool
	TimedOut  bool
	Cancelled bool
	Duration  time.Duration
}

func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut && !r.Cancelled
}

type Runner struct {
	MaxOutput int
	Log       log.FieldLogger
}

func New() *Runner {
	return &Runner{MaxOutput: DefaultMaxOutput}
}

// Run executes c and waits for it. A non-zero exit is reported through
// Result.ExitCode, not as an error. An error means the process could not be
// started at all.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("empty argv")
	}

	logger := c.Log
	if logger == nil {
		logger = r.Log
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("cmd", c.Args)

	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	runCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	stdoutLog := newLineLogger(logger.WithField("stream", "stdout"), maxOutput)
	stderrLog := newLineLogger(logger.WithField("stream", "stderr"), maxOutput)
	stdoutCapture := &limitWriter{buf: &stdout, limit: maxOutput}
	stderrCapture := &limitWriter{buf: &stderr, limit: maxOutput}
	cmd.Stdout = &teeWriter{capture: stdoutCapture, log: stdoutLog}
	cmd.Stderr = &teeWriter{capture: stderrCapture, log: stderrLog}

	logger.Debug("command started")

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	stdoutLog.Flush()
	stderrLog.Flush()

	res := &Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: stdoutCapture.truncated || stderrCapture.truncated,
		Duration:  elapsed,
	}

	if runErr != nil {
		switch {
		case ctx.Err() != nil:
			res.Cancelled = true
		case runCtx.Err() == context.DeadlineExceeded:
			res.TimedOut = true
		}

		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		case errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil:
			// The process exited but something it spawned kept the pipes open.
			res.ExitCode = cmd.ProcessState.ExitCode()
		case res.Cancelled || res.TimedOut:
			res.ExitCode = -1
		default:
			return nil, errors.Wrapf(runErr, "executing %s", c.Args[0])
		}
		if (res.Cancelled || res.TimedOut) && res.ExitCode == 0 {
			res.ExitCode = -1
		}
	}

	logger.WithFields(log.Fields{
		"exit_code": res.ExitCode,
		"duration":  elapsed.String(),
		"timed_out": res.TimedOut,
		"cancelled": res.Cancelled,
	}).Debug("command finished")

	return res, nil
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf       *bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

type teeWriter struct {
	capture *limitWriter
	log     *lineLogger
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.log.Write(p)
	return w.capture.Write(p)
}

// lineLogger emits one info entry per complete line. Lines longer than max
// are split into entries of at most max bytes.
type lineLogger struct {
	entry   log.FieldLogger
	max     int
	partial []byte
}

func newLineLogger(entry log.FieldLogger, limit int) *lineLogger {
	if limit <= 0 || limit > bufio.MaxScanTokenSize {
		limit = bufio.MaxScanTokenSize
	}
	return &lineLogger{entry: entry, max: limit}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		switch {
		case i >= 0 && i <= l.max:
			l.emit(l.partial[:i])
			l.partial = l.partial[i+1:]
		case len(l.partial) >= l.max:
			l.emit(l.partial[:l.max])
			l.partial = l.partial[l.max:]
		default:
			// Drop the reference to the consumed prefix.
			l.partial = append([]byte(nil), l.partial...)
			return len(p), nil
		}
	}
}

func (l *lineLogger) Flush() {
	if len(l.partial) > 0 {
		l.emit(l.partial)
		l.partial = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	l.entry.Info(string(bytes.TrimRight(line, "\r")))
}
