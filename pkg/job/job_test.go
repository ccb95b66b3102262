package job

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStepValidate(t *testing.T) {
	testcases := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{
			name: "valid",
			step: NewStep("install", []string{"pip", "install", "-e", "."}),
		},
		{
			name:    "empty name",
			step:    NewStep("", []string{"true"}),
			wantErr: "step name must not be empty",
		},
		{
			name:    "nil command",
			step:    NewStep("checkout", nil),
			wantErr: "command must not be empty",
		},
		{
			name:    "blank command",
			step:    NewStep("checkout", []string{""}),
			wantErr: "command must not be empty",
		},
		{
			name:    "shell with argv",
			step:    NewStep("lint", []string{"echo", "hi"}, Shell()),
			wantErr: "single command string",
		},
		{
			name:    "negative timeout",
			step:    NewStep("sleep", []string{"sleep", "1"}, Timeout(-time.Second)),
			wantErr: "timeout must be positive",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.step.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("error %T is not a *ConfigError", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestJobValidateDuplicateNames(t *testing.T) {
	j := New("integration-tests", []Step{
		NewStep("tests", []string{"true"}),
	}, WithPost(NewStep("tests", []string{"true"})))

	err := j.Validate()
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a *ConfigError", err)
	}
	if ce.Source != "integration-tests" {
		t.Errorf("Source = %q, want integration-tests", ce.Source)
	}
	if !strings.Contains(err.Error(), `step name "tests" is already used by steps[0]`) {
		t.Errorf("error = %q, want duplicate name message", err)
	}
}

func TestJobValidateCollectsAllProblems(t *testing.T) {
	j := New("broken", []Step{
		NewStep("", []string{"true"}),
		NewStep("empty", nil),
	})

	err := j.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"steps[0]: step name must not be empty", `steps[1]: step "empty": command must not be empty`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want to contain %q", err, want)
		}
	}
}

func TestJobStepsOrderAndPostHooks(t *testing.T) {
	j := New("ci", []Step{
		NewStep("unit-tests", []string{"pytest", "test/unit"}),
		NewStep("regression", []string{"pytest", "test/regression"}),
	},
		WithPre(NewStep("install", []string{"pip", "install", "-e", "."})),
		WithPost(NewStep("unlock-clocks", []string{"nvidia-smi", "-rgc"})),
	)

	if err := j.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var names []string
	var alwaysRun []bool
	for _, s := range j.Steps() {
		names = append(names, s.Name())
		alwaysRun = append(alwaysRun, s.AlwaysRun())
	}

	if diff := cmp.Diff([]string{"install", "unit-tests", "regression", "unlock-clocks"}, names); diff != "" {
		t.Errorf("step order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false, false, false, true}, alwaysRun); diff != "" {
		t.Errorf("alwaysRun mismatch (-want +got):\n%s", diff)
	}
}

func TestStepIsImmutable(t *testing.T) {
	command := []string{"echo", "hello"}
	env := map[string]string{"A": "1"}
	s := NewStep("echo", command, Env(env))

	command[0] = "rm"
	env["A"] = "2"
	s.Command()[1] = "changed"
	s.Env()["A"] = "3"

	if diff := cmp.Diff([]string{"echo", "hello"}, s.Command()); diff != "" {
		t.Errorf("command was mutated (-want +got):\n%s", diff)
	}
	if got := s.Env()["A"]; got != "1" {
		t.Errorf("env A = %q, want 1", got)
	}
}
