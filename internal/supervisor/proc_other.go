//go:build !unix

package supervisor

import (
	"os"
	"os/exec"
)

func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func terminate(pid int) error {
	return kill(pid)
}

func kill(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Kill()
}

func isolate(*exec.Cmd) {}
