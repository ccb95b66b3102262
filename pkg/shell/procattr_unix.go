//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so that a timeout
// or cancellation kills everything `sh -c` spawned, not just the shell.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
