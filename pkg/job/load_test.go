package job

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
)

const integrationTestsYaml = `
name: Integration-Tests
env:
  PYTHONUNBUFFERED: "1"
pre:
  - name: install
    command: pip install -e "python[tests]"
steps:
  - name: unit-tests
    command: [pytest, -vs, test/unit]
    working_directory: python
  - name: lock-clocks
    command: sudo nvidia-smi -i 0 -lgc 1350,1350
  - name: list-containers
    command: docker ps --format '{{.ID}}'
    template: false
  - name: regression
    command: cd python/test/regression && pytest -vs .
    shell: true
    timeout: 30m
    env:
      CUDA_VISIBLE_DEVICES: "0"
  - name: unlock-gpu-clocks
    command: sudo nvidia-smi -i 0 -rgc
    always_run: true
post:
  - name: unlock-mem-clocks
    command: sudo nvidia-smi -i 0 -rmc
`

type stepView struct {
	Name      string
	Command   []string
	Shell     bool
	WorkDir   string
	AlwaysRun bool
	Env       map[string]string
	Timeout   time.Duration
	Literal   bool
}

func viewOf(steps []Step) []stepView {
	views := make([]stepView, 0, len(steps))
	for _, s := range steps {
		views = append(views, stepView{
			Name:      s.Name(),
			Command:   s.Command(),
			Shell:     s.Shell(),
			WorkDir:   s.WorkingDirectory(),
			AlwaysRun: s.AlwaysRun(),
			Env:       s.Env(),
			Timeout:   s.Timeout(),
			Literal:   s.Literal(),
		})
	}
	return views
}

func TestParseIntegrationTests(t *testing.T) {
	log.SetLevel(log.DebugLevel)

	j, err := Parse([]byte(integrationTestsYaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if j.Name() != "Integration-Tests" {
		t.Errorf("Name() = %q, want Integration-Tests", j.Name())
	}
	if diff := cmp.Diff(map[string]string{"PYTHONUNBUFFERED": "1"}, j.Env()); diff != "" {
		t.Errorf("Env() mismatch (-want +got):\n%s", diff)
	}

	expected := []stepView{
		{Name: "install", Command: []string{"pip", "install", "-e", "python[tests]"}},
		{Name: "unit-tests", Command: []string{"pytest", "-vs", "test/unit"}, WorkDir: "python"},
		{Name: "lock-clocks", Command: []string{"sudo", "nvidia-smi", "-i", "0", "-lgc", "1350,1350"}},
		{Name: "list-containers", Command: []string{"docker", "ps", "--format", "{{.ID}}"}, Literal: true},
		{
			Name:    "regression",
			Command: []string{"cd python/test/regression && pytest -vs ."},
			Shell:   true,
			Env:     map[string]string{"CUDA_VISIBLE_DEVICES": "0"},
			Timeout: 30 * time.Minute,
		},
		{Name: "unlock-gpu-clocks", Command: []string{"sudo", "nvidia-smi", "-i", "0", "-rgc"}, AlwaysRun: true},
		{Name: "unlock-mem-clocks", Command: []string{"sudo", "nvidia-smi", "-i", "0", "-rmc"}, AlwaysRun: true},
	}

	if diff := cmp.Diff(expected, viewOf(j.Steps())); diff != "" {
		t.Errorf("Parse() steps mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsMalformedDeclarations(t *testing.T) {
	testcases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty document",
			yaml:    "",
			wantErr: "empty",
		},
		{
			name:    "not a mapping",
			yaml:    "- name: a\n",
			wantErr: "mapping",
		},
		{
			name:    "unknown job key",
			yaml:    "name: x\nruns-on: gpu\nsteps:\n  - name: a\n    command: \"true\"\n",
			wantErr: "runs-on",
		},
		{
			name:    "unknown step key",
			yaml:    "steps:\n  - name: a\n    run: \"true\"\n",
			wantErr: "schema violations",
		},
		{
			name:    "missing command",
			yaml:    "steps:\n  - name: a\n",
			wantErr: "command",
		},
		{
			name:    "empty command string",
			yaml:    "steps:\n  - name: a\n    command: \"\"\n",
			wantErr: "command must not be empty",
		},
		{
			name:    "duplicate step names",
			yaml:    "steps:\n  - name: a\n    command: \"true\"\npost:\n  - name: a\n    command: \"true\"\n",
			wantErr: `step name "a" is already used`,
		},
		{
			name:    "bad timeout",
			yaml:    "steps:\n  - name: a\n    command: \"true\"\n    timeout: soon\n",
			wantErr: "parsing timeout",
		},
		{
			name:    "unterminated quote",
			yaml:    "steps:\n  - name: a\n    command: echo \"oops\n",
			wantErr: "splitting command",
		},
		{
			name:    "no steps",
			yaml:    "name: nothing\n",
			wantErr: "no steps",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("error %T is not a *ConfigError: %v", err, err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadFileDefaultsNameToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nightly.yaml")
	if err := ioutil.WriteFile(path, []byte("steps:\n  - name: a\n    command: [\"true\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	j, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Name() != "nightly" {
		t.Errorf("Name() = %q, want nightly", j.Name())
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a *ConfigError: %v", err, err)
	}
}
