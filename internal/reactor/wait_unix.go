//go:build unix

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const readyEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR | unix.POLLNVAL

// pollWaiter waits with poll(2) and wakes through a non-blocking self-pipe.
type pollWaiter struct {
	wakeR, wakeW int
	pfds         []unix.PollFd
}

// NewPollWaiter returns the default Waiter for unix systems.
func NewPollWaiter() (Waiter, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("reactor: wake pipe: %w", err)
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("reactor: wake pipe nonblock: %w", err)
		}
		unix.CloseOnExec(fd)
	}
	return &pollWaiter{wakeR: p[0], wakeW: p[1]}, nil
}

func (w *pollWaiter) Wait(fds []int, timeout time.Duration) ([]int, error) {
	w.pfds = w.pfds[:0]
	w.pfds = append(w.pfds, unix.PollFd{Fd: int32(w.wakeR), Events: unix.POLLIN})
	for _, fd := range fds {
		w.pfds = append(w.pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}

	n, err := unix.Poll(w.pfds, pollTimeout(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, ErrInterrupted
		}
		return nil, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	var ready []int
	for i, pfd := range w.pfds {
		if pfd.Revents&readyEvents == 0 {
			continue
		}
		if i == 0 {
			w.drain()
			continue
		}
		ready = append(ready, int(pfd.Fd))
	}
	return ready, nil
}

// pollTimeout rounds up to whole milliseconds so a sub-millisecond remainder
// does not turn into a busy loop.
func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

func (w *pollWaiter) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *pollWaiter) Wake() error {
	_, err := unix.Write(w.wakeW, []byte{1})
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("reactor: wake: %w", err)
	}
	return nil
}

func (w *pollWaiter) Close() error {
	return errors.Join(unix.Close(w.wakeR), unix.Close(w.wakeW))
}
