// Package supervisor runs a fixed number of worker processes, restarts the
// ones that crash and shuts them all down within a grace period when its
// context is cancelled.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

var ErrWorkersExhausted = errors.New("supervisor: every worker slot exhausted its restarts")

// CommandFunc builds the child process for a worker slot.
type CommandFunc func(slot int) (*exec.Cmd, error)

type Config struct {
	PIDFile       *PIDFile
	ShutdownGrace time.Duration
	MaxRestarts   int
	RestartDelay  time.Duration
	Command       CommandFunc
}

type Supervisor struct {
	config Config
	logger *slog.Logger
}

func New(config Config, logger *slog.Logger) *Supervisor {
	if config.Command == nil {
		config.Command = WorkerCommand
	}
	if config.RestartDelay <= 0 {
		config.RestartDelay = time.Second
	}

	return &Supervisor{config: config, logger: logger}
}

// WorkerCommand re-executes the current binary as a worker child.
func WorkerCommand(slot int) (*exec.Cmd, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	cmd := exec.Command(executable, "worker", "run", "--slot", strconv.Itoa(slot))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	return cmd, nil
}

type child struct {
	cmd      *exec.Cmd
	restarts int
	running  bool
	pending  bool
}

type exit struct {
	slot int
	err  error
}

// Start spawns count workers and blocks until ctx is cancelled and every
// child has exited. It returns ErrAlreadyRunning when another supervisor
// holds the pidfile.
func (s *Supervisor) Start(ctx context.Context, count int) error {
	if count < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", count)
	}

	pid := os.Getpid()
	if err := s.config.PIDFile.Acquire(pid); err != nil {
		return err
	}
	defer func() {
		if err := s.config.PIDFile.Release(pid); err != nil {
			s.logger.Warn("pidfile removal failed", "path", s.config.PIDFile.Path(), "err", err)
		}
	}()

	s.logger.Info("supervisor started", "pid", pid, "workers", count, "pidfile", s.config.PIDFile.Path())

	children := make(map[int]*child, count)
	exits := make(chan exit, count)
	restarts := make(chan int, count)

	for slot := 1; slot <= count; slot++ {
		children[slot] = &child{}
		if err := s.spawn(slot, children[slot], exits); err != nil {
			s.shutdown(children, exits)
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor stopping", "grace", s.config.ShutdownGrace)
			s.shutdown(children, exits)
			s.logger.Info("supervisor stopped")
			return nil

		case e := <-exits:
			c := children[e.slot]
			c.running = false
			s.logger.Warn("worker exited unexpectedly", "slot", e.slot, "err", e.err, "restarts", c.restarts)

			if c.restarts >= s.config.MaxRestarts {
				s.logger.Error("worker slot exhausted restarts", "slot", e.slot, "max_restarts", s.config.MaxRestarts)
				if !anyActive(children) {
					return ErrWorkersExhausted
				}
				continue
			}

			c.restarts++
			c.pending = true
			go func(slot int) {
				select {
				case <-ctx.Done():
				case <-time.After(s.config.RestartDelay):
					restarts <- slot
				}
			}(e.slot)

		case slot := <-restarts:
			children[slot].pending = false
			if ctx.Err() != nil {
				continue
			}
			if err := s.spawn(slot, children[slot], exits); err != nil {
				s.logger.Error("worker restart failed", "slot", slot, "err", err)
				if !anyActive(children) {
					return err
				}
			}
		}
	}
}

func (s *Supervisor) spawn(slot int, c *child, exits chan<- exit) error {
	cmd, err := s.config.Command(slot)
	if err != nil {
		return err
	}
	isolate(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker %d: %w", slot, err)
	}

	c.cmd = cmd
	c.running = true
	s.logger.Info("worker started", "slot", slot, "pid", cmd.Process.Pid)

	go func() {
		exits <- exit{slot: slot, err: cmd.Wait()}
	}()

	return nil
}

// shutdown asks every running child to stop, waits up to the grace period and
// then kills the process groups of the survivors.
func (s *Supervisor) shutdown(children map[int]*child, exits <-chan exit) {
	remaining := 0
	for slot, c := range children {
		if !c.running {
			continue
		}
		remaining++
		if err := terminate(c.cmd.Process.Pid); err != nil {
			s.logger.Warn("worker signal failed", "slot", slot, "err", err)
		}
	}

	grace := time.NewTimer(s.config.ShutdownGrace)
	defer grace.Stop()

	killed := false
	for remaining > 0 {
		select {
		case e := <-exits:
			children[e.slot].running = false
			remaining--
			s.logger.Info("worker exited", "slot", e.slot)

		case <-grace.C:
			if killed {
				continue
			}
			killed = true
			for slot, c := range children {
				if !c.running {
					continue
				}
				s.logger.Warn("worker did not stop within grace period, killing", "slot", slot, "pid", c.cmd.Process.Pid)
				if err := kill(c.cmd.Process.Pid); err != nil {
					s.logger.Warn("worker kill failed", "slot", slot, "err", err)
				}
			}
		}
	}
}

// anyActive reports whether a child is running or waiting to be restarted.
func anyActive(children map[int]*child) bool {
	for _, c := range children {
		if c.running || c.pending {
			return true
		}
	}
	return false
}
