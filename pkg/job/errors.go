package job

import (
	"fmt"
)

// ConfigError reports a malformed job or step declaration. It is always
// returned before anything is executed.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid job declaration: %v", e.Err)
	}
	return fmt.Sprintf("invalid job declaration %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
