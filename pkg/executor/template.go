package executor

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// templateData is what step commands and working directories are rendered
// against, e.g. `{{ .Env.HOME }}` or `{{ .RunID }}`.
type templateData struct {
	Env     map[string]string
	Runner  string
	RunID   string
	Job     string
	Step    string
	WorkDir string
}

func funcMap() template.FuncMap {
	fns := sprig.TxtFuncMap()
	fns["toYaml"] = toYaml
	fns["escapeDoubleQuotes"] = escapeDoubleQuotes
	return fns
}

func toYaml(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", errors.Wrapf(err, "toYaml(%v)", v)
	}
	return string(data), nil
}

func escapeDoubleQuotes(str string) string {
	return strings.Replace(str, "\"", "\\\"", -1)
}

// render leaves text without template actions untouched, so literal braces in
// plain commands need no escaping.
func render(name, text string, data templateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcMap()).Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s", name)
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, data); err != nil {
		return "", errors.Wrapf(err, "rendering %s", name)
	}
	return buff.String(), nil
}

func renderAll(name string, texts []string, data templateData) ([]string, error) {
	rendered := make([]string, len(texts))
	for i, text := range texts {
		r, err := render(name, text, data)
		if err != nil {
			return nil, err
		}
		rendered[i] = r
	}
	return rendered, nil
}
