//go:build unix

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

func terminate(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// kill signals the whole process group led by pid.
func kill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// isolate starts cmd in its own process group so terminal signals reach
// only the supervisor, which forwards them.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
