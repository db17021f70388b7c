//go:build !unix

package worker

import "os/exec"

func configureProcessGroup(*exec.Cmd) {}
