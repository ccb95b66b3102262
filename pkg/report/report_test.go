package report

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
	"gopkg.in/yaml.v2"

	"github.com/mumoshu/runjob/pkg/executor"
)

func testResult() *executor.Result {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &executor.Result{
		RunID:    "0190c2f6-0000-7000-8000-000000000000",
		Job:      "integration-tests",
		RunnerID: "gpu-box",
		StepResults: []executor.StepResult{
			{
				Step:      "unit-tests",
				Command:   []string{"pytest", "-vs", "test/unit"},
				Status:    executor.StepSucceeded,
				Stdout:    "3 passed\n",
				StartedAt: started,
				Duration:  2 * time.Second,
			},
			{
				Step:      "regression",
				Command:   []string{"pytest", "-vs", "test/regression"},
				Status:    executor.StepFailed,
				ExitCode:  1,
				Stderr:    "1 failed\n",
				Err:       &executor.StepFailure{Step: "regression", ExitCode: 1},
				StartedAt: started.Add(2 * time.Second),
				Duration:  3 * time.Second,
			},
			{
				Step:      "unlock-gpu-clocks",
				Command:   []string{"sudo", "nvidia-smi", "-i", "0", "-rgc"},
				Status:    executor.StepSucceeded,
				AlwaysRun: true,
				StartedAt: started.Add(5 * time.Second),
				Duration:  time.Second,
			},
		},
		Skipped:    []string{"benchmarks"},
		Status:     executor.StatusFailed,
		StartedAt:  started,
		FinishedAt: started.Add(6 * time.Second),
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testResult(), FormatText, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `Job integration-tests on runner gpu-box (run 0190c2f6-0000-7000-8000-000000000000): Failed in 6s
  unit-tests: succeeded (exit 0, 2s)
  regression: failed (exit 1, 3s)
    step "regression" exited with code 1
  unlock-gpu-clocks: succeeded (exit 0, 1s) [always]
  benchmarks: skipped
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("text report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteTextColor(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testResult(), FormatText, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "\033[31mFailed\033[0m") {
		t.Errorf("expected a red Failed status, got %q", buf.String())
	}
}

func TestWriteJSONAndYAML(t *testing.T) {
	want := NewView(testResult())

	testcases := []struct {
		format    string
		unmarshal func([]byte, interface{}) error
	}{
		{FormatJSON, json.Unmarshal},
		{FormatYAML, yaml.Unmarshal},
	}

	for _, tc := range testcases {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, testResult(), tc.format, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got View
			if err := tc.unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("decoding %s report: %v\n%s", tc.format, err, buf.String())
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s report mismatch (-want +got):\n%s", tc.format, diff)
			}
		})
	}
}

func TestNewView(t *testing.T) {
	v := NewView(testResult())

	if v.Status != "Failed" || v.Duration != "6s" {
		t.Errorf("unexpected view: %s", pretty.Sprint(v))
	}
	if got := v.Steps[1].Error; got != `step "regression" exited with code 1` {
		t.Errorf("Steps[1].Error = %q", got)
	}
	if diff := cmp.Diff([]string{"benchmarks"}, v.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, testResult(), FormatMarkdown, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Status: Failed",
		"- `regression`: failed (exit 1, 3s)",
		"- `benchmarks`: skipped",
		"<details><summary>regression</summary>\n\n```\n1 failed\n```\n</details>\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown report does not contain %q:\n%s", want, out)
		}
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(ioutil.Discard, testResult(), "xml", false); err == nil {
		t.Error("expected an error")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := WriteFile(path, testResult(), FormatJSON); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatal(err)
	}
	if v.RunID != testResult().RunID {
		t.Errorf("RunID = %q", v.RunID)
	}
}

func TestWriteStepLogs(t *testing.T) {
	dir := t.TempDir()
	res := testResult()

	paths, err := WriteStepLogs(dir, res)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runDir := filepath.Join(dir, res.RunID)
	want := []string{
		filepath.Join(runDir, "01-unit-tests.stdout.log"),
		filepath.Join(runDir, "01-unit-tests.stderr.log"),
		filepath.Join(runDir, "02-regression.stdout.log"),
		filepath.Join(runDir, "02-regression.stderr.log"),
		filepath.Join(runDir, "03-unlock-gpu-clocks.stdout.log"),
		filepath.Join(runDir, "03-unlock-gpu-clocks.stderr.log"),
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	data, err := ioutil.ReadFile(filepath.Join(runDir, "02-regression.stderr.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1 failed\n" {
		t.Errorf("regression stderr = %q", data)
	}
}
