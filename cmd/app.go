package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mumoshu/runjob/pkg/executor"
	"github.com/mumoshu/runjob/pkg/job"
	"github.com/mumoshu/runjob/pkg/runner"
)

const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitAborted = 2
	// ExitConfig covers invalid job declarations, runner acquisition
	// failures and usage errors.
	ExitConfig = 3
)

// ExitError carries the exit status of a completed run.
type ExitError struct {
	Code   int
	Status executor.Status
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("job %s", e.Status)
}

// App holds what the commands of one invocation share.
type App struct {
	Viper  *viper.Viper
	Log    *logrus.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	configFile  string
	verbose     bool
	output      string
	color       bool
	logToStderr bool
}

func NewApp(stdout, stderr io.Writer) *App {
	logger := logrus.New()
	logger.SetOutput(stdout)
	return &App{
		Viper:  viper.New(),
		Log:    logger,
		Stdin:  os.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}
}

// ExitCode maps the error returned by a command to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitConfig
}

func exitCodeFor(status executor.Status) int {
	switch status {
	case executor.StatusSuccess:
		return ExitSuccess
	case executor.StatusAborted:
		return ExitAborted
	default:
		return ExitFailed
	}
}

// HandleError prints err unless it only reports a run outcome that the
// report already shows, and returns the exit status.
func (a *App) HandleError(err error) int {
	code := ExitCode(err)
	if err == nil {
		return code
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return code
	}

	var configErr *job.ConfigError
	var infraErr *runner.InfrastructureError
	switch {
	case errors.As(err, &configErr):
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
	case errors.As(err, &infraErr):
		fmt.Fprintf(a.Stderr, "Error: runner unavailable: %v\n", err)
	default:
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
	}
	if a.verbose {
		fmt.Fprintf(a.Stderr, "Stack trace:\n%s\n", errors.ErrorStack(err))
	}
	return code
}

// Execute runs the CLI with args and returns the exit status.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := NewApp(stdout, stderr)
	root := NewRootCmd(app)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return app.HandleError(root.ExecuteContext(ctx))
}

// MustRun runs the CLI with the process arguments and exits. The first
// SIGINT or SIGTERM cancels the run so that cleanup steps can finish; a second
// one terminates the process.
func MustRun() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stop()
			fmt.Fprintln(os.Stderr, "Interrupted. Running cleanup steps, interrupt again to exit immediately.")
		case <-done:
		}
	}()

	args := os.Args[1:]
	if len(args) == 0 {
		fromEnv, err := ArgsFromEnvVars()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitConfig)
		}
		args = fromEnv
	}

	code := Execute(ctx, args, os.Stdout, os.Stderr)
	close(done)
	stop()
	os.Exit(code)
}
