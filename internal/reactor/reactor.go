// Package reactor runs a single-threaded dispatch loop that multiplexes
// descriptor readiness, a fixed-cadence periodic tick and OS signals.
//
// Every handler runs on the goroutine that called RunLoop. The only
// cross-goroutine entry points are TerminateLoop and signal delivery, both
// of which record a flag and wake the loop without touching registrations.
package reactor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback runs once per periodic tick. A non-zero result ends the round.
type Callback func() int

// EventHandler runs when its descriptor is readable. A non-zero result ends
// the round.
type EventHandler func() int

// SignalHandler runs on the loop goroutine after sig was caught. A non-zero
// result stops the loop and becomes RunLoop's result.
type SignalHandler func(sig syscall.Signal) int

// State is the loop's position in Idle -> Waiting -> Dispatching -> Idle.
// Stopped is terminal.
type State int32

const (
	StateIdle State = iota
	StateWaiting
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const defaultPeriod = time.Second

type handle struct {
	fd int
	cb EventHandler
}

type signalBinding struct {
	sig syscall.Signal
	cb  SignalHandler
}

// Reactor is the dispatch loop. Create one with New.
type Reactor struct {
	logger    *slog.Logger
	waiter    Waiter
	ownWaiter bool
	now       func() time.Time
	stats     *dispatchStats

	mu        sync.Mutex
	period    time.Duration
	deadline  time.Time
	callbacks []Callback
	handles   []handle
	signals   []signalBinding

	terminate atomic.Bool
	running   atomic.Bool
	state     atomic.Int32
	relay     *signalRelay
}

// Option configures a Reactor.
type Option func(*Reactor)

func WithLogger(l *slog.Logger) Option { return func(r *Reactor) { r.logger = l } }

// WithWaiter replaces the poll(2) based waiter. The reactor does not close a
// waiter it did not create.
func WithWaiter(w Waiter) Option { return func(r *Reactor) { r.waiter = w } }

// WithClock replaces time.Now for deadline tracking.
func WithClock(now func() time.Time) Option { return func(r *Reactor) { r.now = now } }

// WithTimeout sets the periodic cadence. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(r *Reactor) {
		if d > 0 {
			r.period = d
		}
	}
}

// New builds a reactor. Without WithWaiter it opens a poll based waiter.
func New(opts ...Option) (*Reactor, error) {
	r := &Reactor{
		now:    time.Now,
		period: defaultPeriod,
		stats:  newDispatchStats(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.waiter == nil {
		w, err := NewPollWaiter()
		if err != nil {
			return nil, err
		}
		r.waiter, r.ownWaiter = w, true
	}
	return r, nil
}

// Close releases the waiter if the reactor created it.
func (r *Reactor) Close() error {
	if r.ownWaiter {
		return r.waiter.Close()
	}
	return nil
}

// RegisterCallback appends cb to the periodic callbacks.
func (r *Reactor) RegisterCallback(cb Callback) error {
	if cb == nil {
		return ErrNilHandler
	}
	r.mu.Lock()
	r.callbacks = append(r.callbacks, cb)
	r.mu.Unlock()
	return nil
}

// RegisterEventHandler watches fd for readability.
func (r *Reactor) RegisterEventHandler(fd int, cb EventHandler) error {
	if cb == nil {
		return ErrNilHandler
	}
	if fd < 0 {
		return fmt.Errorf("reactor: invalid descriptor %d", fd)
	}
	r.mu.Lock()
	r.handles = append(r.handles, handle{fd: fd, cb: cb})
	r.mu.Unlock()
	return nil
}

// UnregisterEventHandler removes the first handler registered for fd.
func (r *Reactor) UnregisterEventHandler(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.handles, func(h handle) bool { return h.fd == fd })
	if i < 0 {
		return false
	}
	r.handles = slices.Delete(r.handles, i, i+1)
	return true
}

// RegisterSignalHandler binds cb to sig. The signal is subscribed at the
// start of the next loop iteration.
func (r *Reactor) RegisterSignalHandler(sig syscall.Signal, cb SignalHandler) error {
	if cb == nil {
		return ErrNilHandler
	}
	if sig <= 0 {
		return fmt.Errorf("reactor: invalid signal %d", int(sig))
	}
	r.mu.Lock()
	r.signals = append(r.signals, signalBinding{sig: sig, cb: cb})
	r.mu.Unlock()
	return nil
}

// UnregisterSignalHandler removes the first binding for sig.
func (r *Reactor) UnregisterSignalHandler(sig syscall.Signal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.signals, func(b signalBinding) bool { return b.sig == sig })
	if i < 0 {
		return false
	}
	r.signals = slices.Delete(r.signals, i, i+1)
	return true
}

// SetTimeout sets the periodic cadence, which is also the longest a single
// wait blocks.
func (r *Reactor) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, d)
	}
	r.mu.Lock()
	r.period = d
	if !r.deadline.IsZero() {
		if limit := r.now().Add(d); r.deadline.After(limit) {
			r.deadline = limit
		}
	}
	r.mu.Unlock()
	return nil
}

// TerminateLoop asks RunLoop to return at the top of its next iteration.
// A handler that is already running finishes first.
func (r *Reactor) TerminateLoop() {
	r.terminate.Store(true)
	r.wake()
}

// State reports where the loop currently is.
func (r *Reactor) State() State { return State(r.state.Load()) }

// Stats summarizes dispatch round latency so far.
func (r *Reactor) Stats() Stats { return r.stats.snapshot() }

func (r *Reactor) wake() {
	if err := r.waiter.Wake(); err != nil {
		r.logger.Warn("reactor: wake failed", slog.String("error", err.Error()))
	}
}

// RunLoop dispatches until TerminateLoop is called, a signal handler returns
// non-zero, or the waiter fails. The int is the stopping signal handler's
// result, 0 otherwise. The error is non-nil only for a failed wait and
// matches ErrFatalWait.
func (r *Reactor) RunLoop() (int, error) {
	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrRunning
	}
	r.relay = newSignalRelay(r.wake)
	defer func() {
		r.relay.stop()
		r.state.Store(int32(StateStopped))
		r.running.Store(false)
	}()

	r.mu.Lock()
	r.deadline = r.now().Add(r.period)
	r.mu.Unlock()

	for {
		r.state.Store(int32(StateIdle))
		if r.terminate.Load() {
			r.logger.Debug("reactor: terminated")
			return 0, nil
		}

		fds, sigs := r.watchSet()
		r.relay.sync(sigs)

		if sig := r.relay.take(); sig != 0 {
			if cb := r.signalHandler(sig); cb != nil {
				r.state.Store(int32(StateDispatching))
				rc := cb(sig)
				r.logger.Debug("reactor: signal handled",
					slog.Int("signal", int(sig)), slog.Int("result", rc))
				if rc != 0 {
					return rc, nil
				}
			}
			continue
		}

		r.state.Store(int32(StateWaiting))
		ready, err := r.waiter.Wait(fds, r.untilDeadline())
		r.state.Store(int32(StateDispatching))
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				continue
			}
			r.logger.Error("reactor: wait failed", slog.String("error", err.Error()))
			return 0, fmt.Errorf("%w: %w", ErrFatalWait, err)
		}

		if len(ready) > 0 {
			start := r.now()
			r.dispatchReady(ready)
			r.stats.record(r.now().Sub(start), 0, false)
		}

		r.mu.Lock()
		due := !r.now().Before(r.deadline)
		period := r.period
		r.mu.Unlock()
		if due {
			start := r.now()
			r.runPeriodic()
			end := r.now()
			r.stats.record(end.Sub(start), period, true)
			r.mu.Lock()
			r.deadline = end.Add(r.period)
			r.mu.Unlock()
		}
	}
}

func (r *Reactor) untilDeadline() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.deadline.Sub(r.now())
	if d < 0 {
		return 0
	}
	return d
}

// watchSet returns the distinct watched descriptors and signals.
func (r *Reactor) watchSet() ([]int, []syscall.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fds := make([]int, 0, len(r.handles))
	for _, h := range r.handles {
		if !slices.Contains(fds, h.fd) {
			fds = append(fds, h.fd)
		}
	}
	sigs := make([]syscall.Signal, 0, len(r.signals))
	for _, b := range r.signals {
		if !slices.Contains(sigs, b.sig) {
			sigs = append(sigs, b.sig)
		}
	}
	return fds, sigs
}

func (r *Reactor) signalHandler(sig syscall.Signal) SignalHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.signals {
		if b.sig == sig {
			return b.cb
		}
	}
	return nil
}

// dispatchReady runs the handlers of ready descriptors in registration
// order. Handlers may change registrations; the round uses a copy.
func (r *Reactor) dispatchReady(ready []int) {
	r.mu.Lock()
	handles := slices.Clone(r.handles)
	r.mu.Unlock()
	for _, h := range handles {
		if !slices.Contains(ready, h.fd) {
			continue
		}
		if rc := h.cb(); rc != 0 {
			r.logger.Debug("reactor: event round ended early",
				slog.Int("fd", h.fd), slog.Int("result", rc))
			return
		}
	}
}

func (r *Reactor) runPeriodic() {
	r.mu.Lock()
	callbacks := slices.Clone(r.callbacks)
	r.mu.Unlock()
	for i, cb := range callbacks {
		if rc := cb(); rc != 0 {
			r.logger.Debug("reactor: periodic round ended early",
				slog.Int("callback", i), slog.Int("result", rc))
			return
		}
	}
}
