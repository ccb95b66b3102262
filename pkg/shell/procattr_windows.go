//go:build windows

package shell

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
