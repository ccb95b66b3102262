package job

import (
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
)

// Job is an ordered sequence of steps. Pre hooks run first, post hooks run
// last and always run.
type Job struct {
	name  string
	env   map[string]string
	pre   []Step
	steps []Step
	post  []Step
}

type Option func(*Job)

func WithEnv(env map[string]string) Option {
	return func(j *Job) {
		j.env = copyEnv(env)
	}
}

func WithPre(steps ...Step) Option {
	return func(j *Job) {
		j.pre = append(j.pre, steps...)
	}
}

// WithPost appends post hooks. They are forced to always run.
func WithPost(steps ...Step) Option {
	return func(j *Job) {
		for _, s := range steps {
			s.alwaysRun = true
			j.post = append(j.post, s)
		}
	}
}

func New(name string, steps []Step, opts ...Option) *Job {
	j := &Job{
		name:  name,
		steps: append([]Step(nil), steps...),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Job) Name() string {
	return j.name
}

func (j *Job) Env() map[string]string {
	return copyEnv(j.env)
}

// Steps returns pre hooks, steps and post hooks in execution order.
func (j *Job) Steps() []Step {
	all := make([]Step, 0, len(j.pre)+len(j.steps)+len(j.post))
	all = append(all, j.pre...)
	all = append(all, j.steps...)
	all = append(all, j.post...)
	return all
}

func (j *Job) Validate() error {
	var result *multierror.Error

	seen := map[string]int{}
	for i, s := range j.Steps() {
		for _, p := range s.problems() {
			result = multierror.Append(result, fmt.Errorf("steps[%d]: %v", i, p))
		}
		if s.name == "" {
			continue
		}
		if first, ok := seen[s.name]; ok {
			result = multierror.Append(result, fmt.Errorf("steps[%d]: step name %q is already used by steps[%d]", i, s.name, first))
			continue
		}
		seen[s.name] = i
	}

	if err := result.ErrorOrNil(); err != nil {
		return &ConfigError{Source: j.name, Err: err}
	}
	return nil
}
