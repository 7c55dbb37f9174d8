package reactor

import (
	"errors"
	"time"
)

var (
	// ErrInterrupted is returned by a Waiter when the wait was cut short by
	// signal delivery. The loop treats it as a normal wake.
	ErrInterrupted = errors.New("reactor: wait interrupted")

	// ErrFatalWait wraps any other wait failure; RunLoop exits with it.
	ErrFatalWait = errors.New("reactor: wait failed")

	ErrInvalidTimeout = errors.New("reactor: timeout must be positive")
	ErrNilHandler     = errors.New("reactor: nil handler")
	ErrRunning        = errors.New("reactor: loop already running")
)

// Waiter blocks the control goroutine until a watched descriptor is ready,
// the waiter is woken, or the timeout elapses.
type Waiter interface {
	// Wait returns the subset of fds that are ready. A wake or a timeout
	// returns an empty set and a nil error.
	Wait(fds []int, timeout time.Duration) ([]int, error)
	// Wake makes a blocked or the next Wait return promptly. It is safe to
	// call from any goroutine.
	Wake() error
	Close() error
}
