package reactor

import (
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
)

// signalRelay turns asynchronous signal delivery into a recorded number
// plus a wake of the waiter. Handlers never run from here; the loop picks
// the number up at the top of its next iteration.
type signalRelay struct {
	ch         chan os.Signal
	caught     atomic.Int32
	wake       func()
	subscribed []syscall.Signal
	done       chan struct{}
}

func newSignalRelay(wake func()) *signalRelay {
	r := &signalRelay{
		ch:   make(chan os.Signal, 8),
		wake: wake,
		done: make(chan struct{}),
	}
	go r.forward()
	return r
}

func (r *signalRelay) forward() {
	defer close(r.done)
	for sig := range r.ch {
		r.trampoline(sig)
	}
}

// trampoline is the only code reached from signal delivery. It records the
// number and writes one wake byte.
func (r *signalRelay) trampoline(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	r.caught.Store(int32(s))
	r.wake()
}

// take returns and clears the recorded signal, or 0.
func (r *signalRelay) take() syscall.Signal {
	return syscall.Signal(r.caught.Swap(0))
}

// sync subscribes newly registered signals and restores the default
// disposition of those no longer registered.
func (r *signalRelay) sync(want []syscall.Signal) {
	var added, removed []os.Signal
	for _, s := range want {
		if !slices.Contains(r.subscribed, s) {
			added = append(added, s)
		}
	}
	for _, s := range r.subscribed {
		if !slices.Contains(want, s) {
			removed = append(removed, s)
		}
	}
	if len(added) > 0 {
		signal.Notify(r.ch, added...)
	}
	if len(removed) > 0 {
		signal.Reset(removed...)
	}
	r.subscribed = append(r.subscribed[:0], want...)
}

func (r *signalRelay) stop() {
	signal.Stop(r.ch)
	if len(r.subscribed) > 0 {
		s := make([]os.Signal, len(r.subscribed))
		for i, sig := range r.subscribed {
			s[i] = sig
		}
		signal.Reset(s...)
	}
	r.subscribed = nil
	close(r.ch)
	<-r.done
}
