package cmd

import (
	"os"
	"strings"

	"github.com/mattn/go-shellwords"
)

const (
	envRun           = "RUNJOB_RUN"
	envRunTrimPrefix = "RUNJOB_RUN_TRIM_PREFIX"
)

// ArgsFromEnvVars reads the command line from RUNJOB_RUN when runjob is
// started without arguments, e.g. by a trigger that only passes environment
// variables. RUNJOB_RUN_TRIM_PREFIX strips a leading prefix such as a chat
// command.
func ArgsFromEnvVars() ([]string, error) {
	return argsFromEnvVars(os.Getenv)
}

func argsFromEnvVars(getenv func(string) string) ([]string, error) {
	run := getenv(envRun)
	prefix := getenv(envRunTrimPrefix)

	if run != "" {
		run = strings.TrimSpace(run)
		if prefix != "" {
			run = strings.TrimSpace(strings.TrimPrefix(run, prefix))
		}

		return shellwords.Parse(run)
	}
	return nil, nil
}
