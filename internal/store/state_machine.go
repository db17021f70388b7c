package store

import "fmt"

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"

	// JobDeadLettered is a transition target only. Dead-lettered jobs leave
	// the jobs table, so no row ever carries this state.
	JobDeadLettered = "dead"
)

var terminalStates = map[string]bool{
	JobCompleted:    true,
	JobDeadLettered: true,
}

var allowedTransitions = map[string]map[string]bool{
	JobPending: {
		JobProcessing: true,
	},
	JobProcessing: {
		JobCompleted:    true,
		JobPending:      true,
		JobDeadLettered: true,
	},
}

// JobStates lists the states a row in the jobs table can hold.
var JobStates = []string{JobPending, JobProcessing, JobCompleted}

func ValidateJobTransition(from, to string) error {
	if terminalStates[from] {
		return fmt.Errorf("%w: cannot transition from terminal state %s", ErrInvalidStateTransition, from)
	}

	if allowed, ok := allowedTransitions[from][to]; !ok || !allowed {
		return fmt.Errorf("%w: %s to %s", ErrInvalidStateTransition, from, to)
	}

	return nil
}

// IsValidState reports whether state can appear in the jobs table.
func IsValidState(state string) bool {
	for _, s := range JobStates {
		if s == state {
			return true
		}
	}
	return false
}
