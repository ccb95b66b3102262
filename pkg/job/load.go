package job

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/mattn/go-shellwords"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v2"

	"github.com/mumoshu/runjob/pkg/util/maputil"
)

type jobDef struct {
	Name  string            `yaml:"name,omitempty"`
	Env   map[string]string `yaml:"env,omitempty"`
	Pre   []stepDef         `yaml:"pre,omitempty"`
	Steps []stepDef         `yaml:"steps,omitempty"`
	Post  []stepDef         `yaml:"post,omitempty"`
}

type stepDef struct {
	Name      string            `yaml:"name"`
	Command   commandDef        `yaml:"command"`
	Shell     bool              `yaml:"shell,omitempty"`
	WorkDir   string            `yaml:"working_directory,omitempty"`
	AlwaysRun bool              `yaml:"always_run,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Timeout   string            `yaml:"timeout,omitempty"`
	Template  *bool             `yaml:"template,omitempty"`
}

// commandDef accepts either `command: pytest -vs test` or `command: [pytest, -vs, test]`.
type commandDef struct {
	line   string
	tokens []string
	isLine bool
}

func (c *commandDef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var line string
	if err := unmarshal(&line); err == nil {
		c.line = line
		c.isLine = true
		return nil
	}

	var tokens []string
	if err := unmarshal(&tokens); err != nil {
		return fmt.Errorf("command must be a string or a list of strings")
	}
	c.tokens = tokens
	return nil
}

// LoadFile reads a job declaration from path. The job is named after the
// file when the declaration has no name.
func LoadFile(path string) (*Job, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: errors.Annotatef(err, "reading job file")}
	}

	return ParseNamed(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}

func Parse(data []byte) (*Job, error) {
	return ParseNamed(data, "")
}

// ParseNamed parses a job declaration, using defaultName when the document
// does not declare one.
func ParseNamed(data []byte, defaultName string) (*Job, error) {
	source := defaultName

	if err := validateSchema(data); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}

	var def jobDef
	if err := yaml.UnmarshalStrict(data, &def); err != nil {
		return nil, &ConfigError{Source: source, Err: errors.Annotate(err, "decoding job")}
	}

	if def.Name == "" {
		def.Name = defaultName
	}

	log.WithField("job", def.Name).Debugf("decoded job with %d pre, %d steps, %d post", len(def.Pre), len(def.Steps), len(def.Post))

	pre, err := toSteps("pre", def.Pre)
	if err != nil {
		return nil, &ConfigError{Source: def.Name, Err: err}
	}
	steps, err := toSteps("steps", def.Steps)
	if err != nil {
		return nil, &ConfigError{Source: def.Name, Err: err}
	}
	post, err := toSteps("post", def.Post)
	if err != nil {
		return nil, &ConfigError{Source: def.Name, Err: err}
	}

	if len(pre)+len(steps)+len(post) == 0 {
		return nil, &ConfigError{Source: def.Name, Err: fmt.Errorf("job declares no steps")}
	}

	j := New(def.Name, steps, WithEnv(def.Env), WithPre(pre...), WithPost(post...))
	if err := j.Validate(); err != nil {
		return nil, err
	}

	return j, nil
}

func validateSchema(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Annotate(err, "parsing yaml")
	}
	if raw == nil {
		return fmt.Errorf("job declaration is empty")
	}

	doc, err := maputil.RecursivelyStringifyKeys(raw)
	if err != nil {
		return errors.Annotate(err, "parsing yaml")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.Annotate(err, "validating job against schema")
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("schema violations:\n- %s", strings.Join(problems, "\n- "))
}

func toSteps(section string, defs []stepDef) ([]Step, error) {
	steps := make([]Step, 0, len(defs))
	for i, d := range defs {
		s, err := d.toStep()
		if err != nil {
			return nil, errors.Annotatef(err, "%s[%d]", section, i)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (d stepDef) toStep() (Step, error) {
	var command []string
	switch {
	case d.Command.isLine && d.Shell:
		command = []string{d.Command.line}
	case d.Command.isLine:
		args, err := shellwords.Parse(d.Command.line)
		if err != nil {
			return Step{}, errors.Annotatef(err, "step %q: splitting command %q", d.Name, d.Command.line)
		}
		command = args
	default:
		command = d.Command.tokens
	}

	opts := []StepOption{Env(d.Env), WorkingDirectory(d.WorkDir)}
	if d.Shell {
		opts = append(opts, Shell())
	}
	if d.AlwaysRun {
		opts = append(opts, AlwaysRun())
	}
	if d.Template != nil && !*d.Template {
		opts = append(opts, Literal())
	}
	if d.Timeout != "" {
		timeout, err := time.ParseDuration(d.Timeout)
		if err != nil {
			return Step{}, errors.Annotatef(err, "step %q: parsing timeout", d.Name)
		}
		if timeout <= 0 {
			return Step{}, fmt.Errorf("step %q: timeout must be positive, got %s", d.Name, d.Timeout)
		}
		opts = append(opts, Timeout(timeout))
	}

	return NewStep(d.Name, command, opts...), nil
}
