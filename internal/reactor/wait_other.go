//go:build !unix

package reactor

import (
	"errors"
	"fmt"
)

// NewPollWaiter is only available on unix systems.
func NewPollWaiter() (Waiter, error) {
	return nil, fmt.Errorf("reactor: poll waiter: %w", errors.ErrUnsupported)
}
