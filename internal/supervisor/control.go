package supervisor

import (
	"errors"
	"fmt"
)

type Status struct {
	PID     int
	Running bool
}

// Stop sends SIGTERM to the supervisor recorded in the pidfile and removes
// the marker. A marker naming a dead process is removed and reported as
// ErrNotRunning.
func Stop(pidfile *PIDFile) (int, error) {
	pid, err := pidfile.Read()
	if err != nil {
		return 0, err
	}

	if !processAlive(pid) {
		_ = pidfile.Remove()
		return pid, fmt.Errorf("%w: stale pidfile for pid %d removed", ErrNotRunning, pid)
	}

	signalErr := terminate(pid)
	removeErr := pidfile.Remove()
	if signalErr != nil {
		return pid, fmt.Errorf("signal supervisor %d: %w", pid, signalErr)
	}

	return pid, removeErr
}

// Inspect reports the pid recorded in the pidfile and whether it is alive.
func Inspect(pidfile *PIDFile) (Status, error) {
	pid, err := pidfile.Read()
	if errors.Is(err, ErrNotRunning) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	return Status{PID: pid, Running: processAlive(pid)}, nil
}
