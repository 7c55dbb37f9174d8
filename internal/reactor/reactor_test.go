package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeWaiter hands each Wait call to step. Without step it simulates a
// timeout by advancing the clock by the requested duration.
type fakeWaiter struct {
	clock    *fakeClock
	step     func(call int, fds []int, timeout time.Duration) ([]int, error)
	calls    int
	timeouts []time.Duration
	wakes    atomic.Int32
}

func (w *fakeWaiter) Wait(fds []int, timeout time.Duration) ([]int, error) {
	w.calls++
	w.timeouts = append(w.timeouts, timeout)
	if w.step != nil {
		return w.step(w.calls, fds, timeout)
	}
	w.clock.Advance(timeout)
	return nil, nil
}

func (w *fakeWaiter) Wake() error {
	w.wakes.Add(1)
	return nil
}

func (w *fakeWaiter) Close() error { return nil }

func newTestReactor(t *testing.T, w *fakeWaiter, period time.Duration) *Reactor {
	t.Helper()
	r, err := New(WithWaiter(w), WithClock(w.clock.Now), WithTimeout(period))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestPeriodicNonZeroEndsRoundNotLoop(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	r := newTestReactor(t, w, 40*time.Millisecond)

	var aCalls, bCalls int
	r.RegisterCallback(func() int {
		aCalls++
		if aCalls == 3 {
			r.TerminateLoop()
		}
		return 1
	})
	r.RegisterCallback(func() int {
		bCalls++
		return 0
	})

	rc, err := r.RunLoop()
	if err != nil || rc != 0 {
		t.Fatalf("RunLoop = (%d, %v), want (0, nil)", rc, err)
	}
	if aCalls != 3 {
		t.Errorf("A ran %d times, want 3", aCalls)
	}
	if bCalls != 0 {
		t.Errorf("B ran %d times, want 0", bCalls)
	}
	if r.State() != StateStopped {
		t.Errorf("state = %v, want stopped", r.State())
	}
}

func TestPeriodicCallbacksRunInOrder(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	r := newTestReactor(t, w, 10*time.Millisecond)

	var order []string
	r.RegisterCallback(func() int { order = append(order, "first"); return 0 })
	r.RegisterCallback(func() int {
		order = append(order, "second")
		r.TerminateLoop()
		return 0
	})

	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

func TestEventHandlersFirstNonZeroEndsRound(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		w.clock.Advance(time.Millisecond)
		return []int{5, 6}, nil
	}
	r := newTestReactor(t, w, time.Second)

	var order []string
	r.RegisterEventHandler(5, func() int { order = append(order, "h1"); return 0 })
	r.RegisterEventHandler(6, func() int {
		order = append(order, "h2")
		r.TerminateLoop()
		return 1
	})
	r.RegisterEventHandler(5, func() int { order = append(order, "h3"); return 0 })

	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "h1" || order[1] != "h2" {
		t.Errorf("order = %v, want [h1 h2]", order)
	}
}

func TestReadinessKeepsCadencePhaseLocked(t *testing.T) {
	const period = 100 * time.Millisecond
	w := &fakeWaiter{clock: newFakeClock()}
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		switch call {
		case 1:
			w.clock.Advance(30 * time.Millisecond)
			return []int{3}, nil
		default:
			w.clock.Advance(timeout)
			return nil, nil
		}
	}
	r := newTestReactor(t, w, period)

	var events, ticks int
	r.RegisterEventHandler(3, func() int { events++; return 0 })
	r.RegisterCallback(func() int {
		ticks++
		if ticks == 2 {
			r.TerminateLoop()
		}
		return 0
	})

	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	want := []time.Duration{period, 70 * time.Millisecond, period}
	if len(w.timeouts) != len(want) {
		t.Fatalf("timeouts = %v, want %v", w.timeouts, want)
	}
	for i := range want {
		if w.timeouts[i] != want[i] {
			t.Errorf("wait %d timeout = %v, want %v", i+1, w.timeouts[i], want[i])
		}
	}
	if events != 1 {
		t.Errorf("events = %d, want 1", events)
	}
}

func TestOverdueDeadlineRunsPeriodicAfterEvents(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		w.clock.Advance(timeout + 5*time.Millisecond)
		return []int{4}, nil
	}
	r := newTestReactor(t, w, 20*time.Millisecond)

	var trace []string
	r.RegisterEventHandler(4, func() int { trace = append(trace, "event"); return 0 })
	r.RegisterCallback(func() int {
		trace = append(trace, "tick")
		r.TerminateLoop()
		return 0
	})

	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	if len(trace) != 2 || trace[0] != "event" || trace[1] != "tick" {
		t.Errorf("trace = %v, want [event tick]", trace)
	}
}

func TestCaughtSignalRunsHandlerOnce(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	var r *Reactor
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		if call == 1 {
			r.relay.trampoline(syscall.SIGUSR1)
			return nil, ErrInterrupted
		}
		t.Errorf("unexpected wait call %d", call)
		r.TerminateLoop()
		return nil, nil
	}
	r = newTestReactor(t, w, time.Second)

	var got []syscall.Signal
	r.RegisterSignalHandler(syscall.SIGUSR1, func(sig syscall.Signal) int {
		got = append(got, sig)
		return 7
	})

	rc, err := r.RunLoop()
	if err != nil {
		t.Fatal(err)
	}
	if rc != 7 {
		t.Errorf("RunLoop result = %d, want 7", rc)
	}
	if len(got) != 1 || got[0] != syscall.SIGUSR1 {
		t.Errorf("handler calls = %v, want one SIGUSR1", got)
	}
	if w.wakes.Load() == 0 {
		t.Error("trampoline did not wake the waiter")
	}
}

func TestSignalHandlerZeroContinues(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	var r *Reactor
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		switch call {
		case 1:
			r.relay.trampoline(syscall.SIGUSR2)
			return nil, ErrInterrupted
		default:
			w.clock.Advance(timeout)
			return nil, nil
		}
	}
	r = newTestReactor(t, w, 10*time.Millisecond)

	handled := 0
	r.RegisterSignalHandler(syscall.SIGUSR2, func(syscall.Signal) int {
		handled++
		return 0
	})
	r.RegisterCallback(func() int {
		r.TerminateLoop()
		return 0
	})

	rc, err := r.RunLoop()
	if err != nil || rc != 0 {
		t.Fatalf("RunLoop = (%d, %v), want (0, nil)", rc, err)
	}
	if handled != 1 {
		t.Errorf("handled = %d, want 1", handled)
	}
}

func TestUnregisteredSignalIsIgnored(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	var r *Reactor
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		if call == 1 {
			r.relay.trampoline(syscall.SIGUSR1)
			return nil, ErrInterrupted
		}
		r.TerminateLoop()
		return nil, nil
	}
	r = newTestReactor(t, w, time.Second)

	called := false
	r.RegisterSignalHandler(syscall.SIGUSR1, func(syscall.Signal) int { called = true; return 1 })
	if !r.UnregisterSignalHandler(syscall.SIGUSR1) {
		t.Fatal("unregister reported no binding")
	}

	rc, err := r.RunLoop()
	if err != nil || rc != 0 {
		t.Fatalf("RunLoop = (%d, %v), want (0, nil)", rc, err)
	}
	if called {
		t.Error("removed handler ran")
	}
}

func TestFatalWaitError(t *testing.T) {
	boom := errors.New("bad file descriptor")
	w := &fakeWaiter{clock: newFakeClock()}
	w.step = func(int, []int, time.Duration) ([]int, error) { return nil, boom }
	r := newTestReactor(t, w, time.Second)

	_, err := r.RunLoop()
	if !errors.Is(err, ErrFatalWait) {
		t.Errorf("err = %v, want ErrFatalWait", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want cause preserved", err)
	}
}

func TestInterruptedWaitLoopsAgain(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	var r *Reactor
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		if call < 3 {
			return nil, ErrInterrupted
		}
		r.TerminateLoop()
		return nil, nil
	}
	r = newTestReactor(t, w, time.Second)

	if _, err := r.RunLoop(); err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if w.calls != 3 {
		t.Errorf("wait calls = %d, want 3", w.calls)
	}
}

func TestUnregisterEventHandlerRemovesFirstMatch(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	w.step = func(call int, fds []int, timeout time.Duration) ([]int, error) {
		w.clock.Advance(time.Millisecond)
		return fds, nil
	}
	r := newTestReactor(t, w, time.Second)

	var order []string
	r.RegisterEventHandler(9, func() int { order = append(order, "a"); return 0 })
	r.RegisterEventHandler(9, func() int {
		order = append(order, "b")
		r.TerminateLoop()
		return 0
	})
	if !r.UnregisterEventHandler(9) {
		t.Fatal("unregister reported no handler")
	}
	if r.UnregisterEventHandler(42) {
		t.Error("unregister of unknown fd reported success")
	}

	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 1 || order[0] != "b" {
		t.Errorf("order = %v, want [b]", order)
	}
}

func TestRegistrationDuringRoundAppliesNextRound(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	r := newTestReactor(t, w, 10*time.Millisecond)

	lateCalls, ticks := 0, 0
	r.RegisterCallback(func() int {
		ticks++
		switch ticks {
		case 1:
			r.RegisterCallback(func() int { lateCalls++; return 0 })
		case 2:
			r.TerminateLoop()
		}
		return 0
	})

	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	if lateCalls != 1 {
		t.Errorf("late callback ran %d times, want 1", lateCalls)
	}
}

func TestValidation(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	r := newTestReactor(t, w, time.Second)

	if err := r.SetTimeout(0); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("SetTimeout(0) = %v, want ErrInvalidTimeout", err)
	}
	if err := r.SetTimeout(-time.Second); !errors.Is(err, ErrInvalidTimeout) {
		t.Errorf("SetTimeout(-1s) = %v, want ErrInvalidTimeout", err)
	}
	if err := r.RegisterCallback(nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("RegisterCallback(nil) = %v", err)
	}
	if err := r.RegisterEventHandler(-1, func() int { return 0 }); err == nil {
		t.Error("negative descriptor accepted")
	}
	if err := r.RegisterSignalHandler(syscall.SIGHUP, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("RegisterSignalHandler(nil) = %v", err)
	}
}

func TestTerminateBeforeRun(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	r := newTestReactor(t, w, time.Second)
	r.TerminateLoop()

	rc, err := r.RunLoop()
	if rc != 0 || err != nil {
		t.Fatalf("RunLoop = (%d, %v)", rc, err)
	}
	if w.calls != 0 {
		t.Errorf("waited %d times after terminate", w.calls)
	}
}

func TestStatsCountRounds(t *testing.T) {
	w := &fakeWaiter{clock: newFakeClock()}
	r := newTestReactor(t, w, 10*time.Millisecond)
	ticks := 0
	r.RegisterCallback(func() int {
		ticks++
		if ticks == 5 {
			r.TerminateLoop()
		}
		return 0
	})
	if _, err := r.RunLoop(); err != nil {
		t.Fatal(err)
	}
	st := r.Stats()
	if st.Rounds != 5 {
		t.Errorf("rounds = %d, want 5", st.Rounds)
	}
	if st.Overruns != 0 {
		t.Errorf("overruns = %d, want 0", st.Overruns)
	}
}
