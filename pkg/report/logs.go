package report

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mumoshu/runjob/pkg/executor"
	"github.com/mumoshu/runjob/pkg/util/stringutil"
)

// WriteStepLogs writes the captured output of every executed step under
// dir/<run id>/ as NN-<step>.stdout.log and NN-<step>.stderr.log, and returns
// the paths written.
func WriteStepLogs(dir string, res *executor.Result) ([]string, error) {
	runDir := filepath.Join(dir, res.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating log directory %s", runDir)
	}

	var written []string
	for i, sr := range res.StepResults {
		base := fmt.Sprintf("%02d-%s", i+1, stringutil.ToFileName(sr.Step))
		for _, stream := range []struct {
			name string
			data string
		}{
			{"stdout", sr.Stdout},
			{"stderr", sr.Stderr},
		} {
			path := filepath.Join(runDir, fmt.Sprintf("%s.%s.log", base, stream.name))
			if err := ioutil.WriteFile(path, []byte(stream.data), 0o644); err != nil {
				return written, errors.Wrapf(err, "writing %s of step %s", stream.name, sr.Step)
			}
			written = append(written, path)
		}
	}
	return written, nil
}
