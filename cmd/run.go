package cmd

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"github.com/mumoshu/runjob/pkg/executor"
	"github.com/mumoshu/runjob/pkg/report"
	"github.com/mumoshu/runjob/pkg/runner"
	"github.com/mumoshu/runjob/pkg/shell"
)

type runOptions struct {
	runner string
	report string
	format string
	logDir string
}

func newRunCmd(app *App) *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run <job-file|source>",
		Short: "Run a job on a runner",
		Long: `Run a job on a runner.

The job is read from a local YAML file, from stdin when "-" is given, or from a
go-getter source such as github.com/org/repo//ci/job.yaml?ref=main.

Step commands and working directories containing "{{" are rendered as Go
templates with sprig functions, e.g. {{ .Env.HOME }} or {{ .RunID }}. Write
literal braces as {{"{{"}} or set "template: false" on the step.

Exit status is 0 when every step succeeded, 1 when a step failed, 2 when the
run was interrupted and 3 when the job or the runner could not be used.`,
		Example: `runjob run ci/integration-tests.yaml --runner gpu-box --timeout 3600`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, args[0], o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.runner, "runner", "r", "", "ID of the runner to execute the job on")
	flags.Int("timeout", 0, "Default per-step timeout in seconds. 0 disables it")
	flags.StringVar(&o.report, "report", "", "Write the execution report to this file. The format follows the extension (.json, .yaml, .md)")
	flags.StringVar(&o.format, "format", report.FormatText, "Format of the report printed to stdout. One of: "+strings.Join(report.Formats, "|"))
	flags.StringVar(&o.logDir, "log-dir", "", "Write the captured output of each step under this directory")
	cmd.MarkFlagRequired("runner")

	app.Viper.BindPFlag("timeout", flags.Lookup("timeout"))

	return cmd
}

func (a *App) run(cmd *cobra.Command, src string, o runOptions) error {
	ctx := cmd.Context()
	v := a.Viper

	if !validFormat(o.format) {
		return errors.Errorf("unsupported --format %q: must be one of %s", o.format, strings.Join(report.Formats, ", "))
	}

	j, err := a.loadJob(ctx, src)
	if err != nil {
		return err
	}

	timeout := v.GetInt("timeout")
	if timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %d", timeout)
	}

	provider, err := runner.FromViper(v, runner.WithLogger(a.Log))
	if err != nil {
		return errors.Trace(err)
	}

	e := executor.New(provider,
		executor.WithTimeout(time.Duration(timeout)*time.Second),
		executor.WithLogger(a.Log),
		executor.WithCommandRunner(&shell.Runner{MaxOutput: v.GetInt("max_output"), Log: a.Log}),
	)

	res, err := e.Run(ctx, j, o.runner)
	if err != nil {
		return err
	}

	if err := report.Write(a.Stdout, res, o.format, a.color); err != nil {
		return errors.Trace(err)
	}

	if o.report != "" {
		if err := report.WriteFile(o.report, res, reportFormat(o.report)); err != nil {
			a.Log.Errorf("writing report: %v", err)
		}
	}
	if o.logDir != "" {
		paths, err := report.WriteStepLogs(o.logDir, res)
		if err != nil {
			a.Log.Errorf("writing step logs: %v", err)
		}
		a.Log.Debugf("wrote %d step logs under %s", len(paths), o.logDir)
	}

	if !res.Success() {
		return &ExitError{Code: exitCodeFor(res.Status), Status: res.Status}
	}
	return nil
}

func reportFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return report.FormatJSON
	case ".yaml", ".yml":
		return report.FormatYAML
	case ".md":
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

func validFormat(format string) bool {
	for _, f := range report.Formats {
		if f == format {
			return true
		}
	}
	return false
}
