package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("store: not found")
	ErrConflict               = errors.New("store: id already exists")
	ErrUnavailable            = errors.New("store: storage unavailable")
	ErrInvalidStateTransition = errors.New("store: invalid state transition")
)

// Unavailable wraps a driver failure so callers can match ErrUnavailable
// while the original error stays reachable through errors.Is/As.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
