package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

var (
	ErrAlreadyRunning = errors.New("supervisor: already running")
	ErrNotRunning     = errors.New("supervisor: not running")
)

// PIDFile marks a running supervisor. A file naming a dead process is stale
// and may be replaced.
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

func (p *PIDFile) Path() string {
	return p.path
}

// Read returns the recorded pid, or ErrNotRunning when no file exists.
func (p *PIDFile) Read() (int, error) {
	content, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read pidfile: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pidfile %s is corrupt: %q", p.path, strings.TrimSpace(string(content)))
	}

	return pid, nil
}

// Acquire records pid exclusively. It fails with ErrAlreadyRunning while the
// recorded process is alive.
func (p *PIDFile) Acquire(pid int) error {
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, writeErr := file.WriteString(strconv.Itoa(pid) + "\n")
			closeErr := file.Close()
			if writeErr != nil || closeErr != nil {
				_ = os.Remove(p.path)
				return fmt.Errorf("write pidfile: %w", errors.Join(writeErr, closeErr))
			}
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create pidfile: %w", err)
		}

		existing, readErr := p.Read()
		if readErr == nil && processAlive(existing) {
			return fmt.Errorf("%w: pid %d (%s)", ErrAlreadyRunning, existing, p.path)
		}

		if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale pidfile: %w", err)
		}
	}

	return fmt.Errorf("%w: pidfile %s keeps reappearing", ErrAlreadyRunning, p.path)
}

// Release removes the file if it still records pid.
func (p *PIDFile) Release(pid int) error {
	existing, err := p.Read()
	if err != nil || existing != pid {
		return nil
	}

	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
