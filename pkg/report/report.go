// Package report renders execution results for humans and machines.
package report

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/mitchellh/colorstring"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/mumoshu/runjob/pkg/executor"
)

const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatMarkdown}

type StepView struct {
	Name      string   `json:"name" yaml:"name"`
	Command   []string `json:"command,omitempty" yaml:"command,omitempty"`
	Status    string   `json:"status" yaml:"status"`
	ExitCode  int      `json:"exitCode" yaml:"exitCode"`
	AlwaysRun bool     `json:"alwaysRun,omitempty" yaml:"alwaysRun,omitempty"`
	StartedAt string   `json:"startedAt" yaml:"startedAt"`
	Duration  string   `json:"duration" yaml:"duration"`
	Truncated bool     `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Stdout    string   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr    string   `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// View is the serializable form of an executor.Result.
type View struct {
	RunID      string     `json:"runId" yaml:"runId"`
	Job        string     `json:"job" yaml:"job"`
	Runner     string     `json:"runner" yaml:"runner"`
	Status     string     `json:"status" yaml:"status"`
	StartedAt  string     `json:"startedAt" yaml:"startedAt"`
	FinishedAt string     `json:"finishedAt" yaml:"finishedAt"`
	Duration   string     `json:"duration" yaml:"duration"`
	Steps      []StepView `json:"steps" yaml:"steps"`
	Skipped    []string   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func NewView(res *executor.Result) View {
	v := View{
		RunID:      res.RunID,
		Job:        res.Job,
		Runner:     res.RunnerID,
		Status:     string(res.Status),
		StartedAt:  res.StartedAt.Format(time.RFC3339Nano),
		FinishedAt: res.FinishedAt.Format(time.RFC3339Nano),
		Duration:   res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String(),
		Steps:      []StepView{},
		Skipped:    append([]string(nil), res.Skipped...),
	}
	for _, sr := range res.StepResults {
		sv := StepView{
			Name:      sr.Step,
			Command:   sr.Command,
			Status:    string(sr.Status),
			ExitCode:  sr.ExitCode,
			AlwaysRun: sr.AlwaysRun,
			StartedAt: sr.StartedAt.Format(time.RFC3339Nano),
			Duration:  sr.Duration.Round(time.Millisecond).String(),
			Truncated: sr.Truncated,
			Stdout:    sr.Stdout,
			Stderr:    sr.Stderr,
		}
		if sr.Err != nil {
			sv.Error = sr.Err.Error()
		}
		v.Steps = append(v.Steps, sv)
	}
	return v
}

// Write renders res to w. color only affects the text format.
func Write(w io.Writer, res *executor.Result, format string, color bool) error {
	v := NewView(res)

	var out []byte
	var err error
	switch format {
	case FormatText, "":
		out, err = renderTemplate("text", textReport, v, color)
	case FormatMarkdown:
		out, err = renderTemplate("markdown", markdownReport, v, false)
	case FormatJSON:
		out, err = json.MarshalIndent(v, "", "  ")
		out = append(out, '\n')
	case FormatYAML:
		out, err = yaml.Marshal(v)
	default:
		return errors.Errorf("unsupported report format %q: must be one of %s", format, strings.Join(Formats, ", "))
	}
	if err != nil {
		return errors.Wrapf(err, "rendering %s report", format)
	}

	_, err = w.Write(out)
	return errors.WithStack(err)
}

func WriteFile(path string, res *executor.Result, format string) error {
	var buf bytes.Buffer
	if err := Write(&buf, res, format, false); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating report directory %s", dir)
		}
	}
	if err := ioutil.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing report %s", path)
	}
	return nil
}

func statusColor(status string) string {
	switch status {
	case string(executor.StatusSuccess), string(executor.StepSucceeded):
		return "green"
	case string(executor.StatusAborted), string(executor.StepCancelled):
		return "yellow"
	default:
		return "red"
	}
}

func renderTemplate(name, text string, v View, color bool) ([]byte, error) {
	colorize := &colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: !color,
		Reset:   true,
	}

	tpl, err := template.New(name).Funcs(template.FuncMap{
		"status": func(s string) string {
			return colorize.Color("[" + statusColor(s) + "]" + s)
		},
		"indent": func(prefix, s string) string {
			s = strings.TrimRight(s, "\n")
			return prefix + strings.Replace(s, "\n", "\n"+prefix, -1)
		},
		"join": strings.Join,
	}).Parse(text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var textReport = `Job {{ .Job }} on runner {{ .Runner }} (run {{ .RunID }}): {{ status .Status }} in {{ .Duration }}
{{- range .Steps }}
  {{ .Name }}: {{ status .Status }} (exit {{ .ExitCode }}, {{ .Duration }}){{ if .AlwaysRun }} [always]{{ end }}{{ if .Truncated }} [truncated]{{ end }}
{{- if .Error }}
{{ indent "    " .Error }}
{{- end }}
{{- end }}
{{- range .Skipped }}
  {{ . }}: skipped
{{- end }}
`

var markdownReport = "#### {{ .Job }}: run `{{ .RunID }}` on `{{ .Runner }}` completed. Status: {{ .Status }}\n" +
	"{{ range .Steps }}" +
	"- `{{ .Name }}`: {{ .Status }} (exit {{ .ExitCode }}, {{ .Duration }})\n" +
	"{{ end }}" +
	"{{ range .Skipped }}" +
	"- `{{ . }}`: skipped\n" +
	"{{ end }}" +
	"{{ range .Steps }}{{ if .Error }}" +
	"<details><summary>{{ .Name }}</summary>\n\n" +
	"```\n" +
	"{{ if .Stderr }}{{ indent \"\" .Stderr }}{{ else }}{{ .Error }}{{ end }}\n" +
	"```\n" +
	"</details>\n" +
	"{{ end }}{{ end }}"
