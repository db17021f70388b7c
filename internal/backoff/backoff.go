// Package backoff decides what happens to a job after an execution attempt.
package backoff

import (
	"math"
	"time"
)

type Action int

const (
	Complete Action = iota
	Retry
	DeadLetter
)

func (a Action) String() string {
	switch a {
	case Complete:
		return "complete"
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

type Decision struct {
	Action Action
	// Delay is only set for Retry.
	Delay time.Duration
}

type Policy struct {
	// Base is raised to the attempt count to get the delay in seconds.
	Base float64
	// Max caps the delay. Zero means uncapped.
	Max time.Duration
}

// Delay returns floor(Base^attempts) seconds, capped by Max when set.
func (p Policy) Delay(attempts int) time.Duration {
	seconds := math.Floor(math.Pow(p.Base, float64(attempts)))

	if p.Max > 0 && seconds >= p.Max.Seconds() {
		return p.Max
	}
	if seconds >= math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(seconds) * time.Second
}

// Decide applies the retry policy to the outcome of attempt number attempts.
// A job runs at most maxRetries+1 times before it is dead-lettered.
func (p Policy) Decide(succeeded bool, attempts, maxRetries int) Decision {
	if succeeded {
		return Decision{Action: Complete}
	}

	if attempts > maxRetries {
		return Decision{Action: DeadLetter}
	}

	return Decision{Action: Retry, Delay: p.Delay(attempts)}
}
