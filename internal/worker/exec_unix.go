//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the command in a new process group and makes
// cancellation kill the whole group, including background children.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
