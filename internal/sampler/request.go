package sampler

import "sync"

// request is the single-slot mailbox between Probe callers and the worker.
// pending stays set from the first post until the pass it triggered ends, so
// posts made while a pass is queued or running fold into that pass.
type request struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pending   bool
	terminate bool
}

func newRequest() *request {
	r := &request{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// post asks for a pass. It reports false when the request was coalesced.
func (r *request) post() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending || r.terminate {
		return false
	}
	r.pending = true
	r.cond.Signal()
	return true
}

// wait blocks until a pass is pending or termination was requested. It
// returns false when the worker should exit; termination wins over a
// pending pass.
func (r *request) wait() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.pending && !r.terminate {
		r.cond.Wait()
	}
	return !r.terminate
}

// done clears the slot after a pass completes.
func (r *request) done() {
	r.mu.Lock()
	r.pending = false
	r.mu.Unlock()
}

func (r *request) stop() {
	r.mu.Lock()
	r.terminate = true
	r.cond.Broadcast()
	r.mu.Unlock()
}
