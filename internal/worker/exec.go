package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// TimeoutExitCode is reported for commands killed at their deadline.
const TimeoutExitCode = 124

// maxCapture bounds how much of each output stream is kept in memory.
const maxCapture = 64 << 10

type Result struct {
	ExitCode int
	Output   string
	TimedOut bool
	Duration time.Duration
}

func (r Result) Succeeded() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) Result
}

// ShellExecutor runs commands with sh -c in their own process group.
type ShellExecutor struct {
	Shell string
	// WaitDelay bounds how long Execute waits for output pipes after the
	// process group has been killed.
	WaitDelay time.Duration
}

func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{Shell: "sh", WaitDelay: 2 * time.Second}
}

// Execute never returns early because ctx is cancelled. Only the timeout
// interrupts a running command.
func (e *ShellExecutor) Execute(ctx context.Context, command string, timeout time.Duration) Result {
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: maxCapture}
	stderr := &cappedBuffer{limit: maxCapture}

	cmd := exec.CommandContext(execCtx, e.Shell, "-c", command)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.WaitDelay
	configureProcessGroup(cmd)

	started := time.Now()
	err := cmd.Run()
	result := Result{Duration: time.Since(started)}

	output := stderr.Text()
	if output == "" {
		output = stdout.Text()
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = TimeoutExitCode
		result.Output = fmt.Sprintf("timeout: command exceeded %s", timeout)
		if output != "" {
			result.Output += "\n" + output
		}
	case err == nil:
		result.Output = output
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Output = output
		if result.Output == "" {
			result.Output = exitErr.Error()
		}
	default:
		result.ExitCode = -1
		result.Output = err.Error()
	}

	return result
}

type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

// Write keeps the first limit bytes and discards the rest, so the child
// never blocks on a full pipe.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

// Text returns the trimmed capture as valid UTF-8. Invalid sequences,
// including a rune split by the capture limit, become U+FFFD.
func (b *cappedBuffer) Text() string {
	return strings.ToValidUTF8(strings.TrimSpace(b.buf.String()), "\uFFFD")
}
