package job

import (
	"fmt"
	"time"

	multierror "github.com/hashicorp/go-multierror"
)

// Step is a single named unit of work. Steps are immutable once built.
type Step struct {
	name      string
	command   []string
	shell     bool
	workDir   string
	alwaysRun bool
	env       map[string]string
	timeout   time.Duration
	literal   bool
}

type StepOption func(*Step)

// AlwaysRun marks the step as cleanup: it runs even after an earlier step failed.
func AlwaysRun() StepOption {
	return func(s *Step) {
		s.alwaysRun = true
	}
}

// Shell runs the step's single command string through `sh -c`.
func Shell() StepOption {
	return func(s *Step) {
		s.shell = true
	}
}

// Literal passes the command and working directory through as written,
// without template rendering.
func Literal() StepOption {
	return func(s *Step) {
		s.literal = true
	}
}

func WorkingDirectory(dir string) StepOption {
	return func(s *Step) {
		s.workDir = dir
	}
}

func Env(env map[string]string) StepOption {
	return func(s *Step) {
		s.env = copyEnv(env)
	}
}

func Timeout(d time.Duration) StepOption {
	return func(s *Step) {
		s.timeout = d
	}
}

func NewStep(name string, command []string, opts ...StepOption) Step {
	s := Step{
		name:    name,
		command: append([]string(nil), command...),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s Step) Name() string {
	return s.name
}

// Command returns the declared argv. For shell steps it holds the script as
// its only element.
func (s Step) Command() []string {
	return append([]string(nil), s.command...)
}

func (s Step) Shell() bool {
	return s.shell
}

func (s Step) Literal() bool {
	return s.literal
}

func (s Step) WorkingDirectory() string {
	return s.workDir
}

func (s Step) AlwaysRun() bool {
	return s.alwaysRun
}

func (s Step) Env() map[string]string {
	return copyEnv(s.env)
}

// Timeout is zero when the step does not override the executor default.
func (s Step) Timeout() time.Duration {
	return s.timeout
}

func (s Step) Validate() error {
	if problems := s.problems(); len(problems) > 0 {
		return &ConfigError{Err: multierror.Append(nil, problems...)}
	}
	return nil
}

func (s Step) problems() []error {
	var problems []error
	if s.name == "" {
		problems = append(problems, fmt.Errorf("step name must not be empty"))
	}
	if len(s.command) == 0 || s.command[0] == "" {
		problems = append(problems, fmt.Errorf("step %q: command must not be empty", s.name))
	}
	if s.shell && len(s.command) > 1 {
		problems = append(problems, fmt.Errorf("step %q: a shell step takes a single command string, got %d tokens", s.name, len(s.command)))
	}
	if s.timeout < 0 {
		problems = append(problems, fmt.Errorf("step %q: timeout must be positive, got %s", s.name, s.timeout))
	}
	return problems
}

func copyEnv(env map[string]string) map[string]string {
	if env == nil {
		return nil
	}
	c := make(map[string]string, len(env))
	for k, v := range env {
		c[k] = v
	}
	return c
}
