package runner

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mumoshu/runjob/pkg/shell"
	"github.com/mumoshu/runjob/pkg/util/envutil"
	"github.com/mumoshu/runjob/pkg/util/fileutil"
)

// Config declares one runner.
type Config struct {
	// WorkDir is resolved against the provider's base directory when relative.
	WorkDir string `mapstructure:"workdir"`
	// Env holds KEY=VALUE pairs.
	Env []string `mapstructure:"env"`
	// Check is a shell command that must exit zero for the runner to be acquired.
	Check string `mapstructure:"check"`
}

type CommandRunner interface {
	Run(ctx context.Context, c shell.Command) (*shell.Result, error)
}

// LocalProvider acquires runners on the local host.
type LocalProvider struct {
	runners map[string]Config
	adHoc   bool
	baseDir string
	shell   CommandRunner
	log     log.FieldLogger
}

type LocalProviderOption func(*LocalProvider)

func WithRunners(runners map[string]Config) LocalProviderOption {
	return func(p *LocalProvider) {
		for id, c := range runners {
			p.runners[id] = c
		}
	}
}

// WithAdHocRunners controls whether undeclared runner ids are acquired with
// the base directory as their workdir.
func WithAdHocRunners(enabled bool) LocalProviderOption {
	return func(p *LocalProvider) {
		p.adHoc = enabled
	}
}

func WithBaseDir(dir string) LocalProviderOption {
	return func(p *LocalProvider) {
		p.baseDir = dir
	}
}

func WithLogger(logger log.FieldLogger) LocalProviderOption {
	return func(p *LocalProvider) {
		p.log = logger
	}
}

func WithCommandRunner(r CommandRunner) LocalProviderOption {
	return func(p *LocalProvider) {
		p.shell = r
	}
}

func NewLocalProvider(opts ...LocalProviderOption) *LocalProvider {
	p := &LocalProvider{
		runners: map[string]Config{},
		adHoc:   true,
		baseDir: ".",
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = log.StandardLogger()
	}
	if p.shell == nil {
		p.shell = &shell.Runner{Log: p.log}
	}
	return p
}

// FromViper builds a provider from the `runners` and `allow_ad_hoc_runners`
// keys. Viper lowercases map keys, so runner ids are matched case-insensitively.
func FromViper(v *viper.Viper, opts ...LocalProviderOption) (*LocalProvider, error) {
	runners := map[string]Config{}
	if err := v.UnmarshalKey("runners", &runners); err != nil {
		return nil, errors.Wrap(err, "reading runners configuration")
	}

	adHoc := true
	if v.IsSet("allow_ad_hoc_runners") {
		adHoc = v.GetBool("allow_ad_hoc_runners")
	}

	opts = append([]LocalProviderOption{WithRunners(runners), WithAdHocRunners(adHoc)}, opts...)
	return NewLocalProvider(opts...), nil
}

func (p *LocalProvider) lookup(runnerID string) (Config, bool) {
	if c, ok := p.runners[runnerID]; ok {
		return c, true
	}
	c, ok := p.runners[strings.ToLower(runnerID)]
	return c, ok
}

func (p *LocalProvider) Acquire(ctx context.Context, runnerID string) (*ExecutionContext, error) {
	if runnerID == "" {
		return nil, &InfrastructureError{Err: errors.New("runner id must not be empty")}
	}

	conf, ok := p.lookup(runnerID)
	if !ok && !p.adHoc {
		return nil, &InfrastructureError{RunnerID: runnerID, Err: errors.New("runner is not declared and ad-hoc runners are disabled")}
	}

	workDir := conf.WorkDir
	if workDir == "" {
		workDir = p.baseDir
	} else if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(p.baseDir, workDir)
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, &InfrastructureError{RunnerID: runnerID, Err: errors.Wrap(err, "resolving workdir")}
	}
	if !fileutil.IsDir(workDir) {
		return nil, &InfrastructureError{RunnerID: runnerID, Err: errors.Errorf("workdir %s is not a directory", workDir)}
	}

	env := envutil.Parse(conf.Env)

	if conf.Check != "" {
		if err := p.check(ctx, conf.Check, workDir, env); err != nil {
			return nil, &InfrastructureError{RunnerID: runnerID, Err: err}
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, &InfrastructureError{RunnerID: runnerID, Err: errors.Wrap(err, "generating run id")}
	}

	ec := &ExecutionContext{
		RunnerID:    runnerID,
		RunID:       id.String(),
		WorkDir:     workDir,
		Environment: env,
	}

	p.log.WithFields(log.Fields{
		"runner":  runnerID,
		"run":     ec.RunID,
		"workdir": workDir,
	}).Debug("runner acquired")

	return ec, nil
}

func (p *LocalProvider) check(ctx context.Context, script, dir string, env map[string]string) error {
	res, err := p.shell.Run(ctx, shell.Command{
		Args: []string{"sh", "-c", script},
		Dir:  dir,
		Env:  envutil.ToList(envutil.Merge(envutil.ParseEnviron(), env)),
	})
	if err != nil {
		return errors.Wrapf(err, "running check %q", script)
	}
	if !res.Success() {
		return errors.Errorf("check %q exited with %d: %s", script, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}

func (p *LocalProvider) Release(ctx context.Context, ec *ExecutionContext) error {
	if ec == nil {
		return nil
	}
	p.log.WithFields(log.Fields{
		"runner": ec.RunnerID,
		"run":    ec.RunID,
	}).Debug("runner released")
	return nil
}
