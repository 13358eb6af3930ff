package howlhouse

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// waitResult delivers either the matched event or the reason the wait
// can never resolve.
type waitResult struct {
	ev  *Event
	err error
}

// pendingWait is one registered WaitFor. Resolution is exactly-once:
// the entry is removed from the registry before the result is sent.
type pendingWait struct {
	seq   uint64
	event string
	pred  func(*Event) bool
	ch    chan waitResult
}

// waiterRegistry bridges push-style event delivery to call/response
// usage. Waits for the same event name coexist; a matching frame
// resolves only the earliest-registered wait whose predicate accepts
// it (FIFO tie-break).
type waiterRegistry struct {
	mu     sync.Mutex
	seq    uint64
	waits  map[string][]*pendingWait
	closed error
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{waits: make(map[string][]*pendingWait)}
}

func (r *waiterRegistry) register(event string, pred func(*Event) bool) (*pendingWait, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed != nil {
		return nil, r.closed
	}
	r.seq++
	w := &pendingWait{
		seq:   r.seq,
		event: event,
		pred:  pred,
		ch:    make(chan waitResult, 1),
	}
	r.waits[event] = append(r.waits[event], w)
	return w, nil
}

// remove drops the wait if it is still registered; no value will ever
// be delivered afterwards. Used for timeout and cancellation paths.
func (r *waiterRegistry) remove(w *pendingWait) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.waits[w.event]
	for i, entry := range entries {
		if entry == w {
			r.waits[w.event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// resolve matches the event against pending waits and resolves at most
// the single earliest-registered one whose predicate accepts it.
func (r *waiterRegistry) resolve(ev *Event) bool {
	r.mu.Lock()
	entries := r.waits[ev.Name]
	var match *pendingWait
	idx := -1
	for i, w := range entries {
		if w.pred != nil && !w.pred(ev) {
			continue
		}
		if match == nil || w.seq < match.seq {
			match, idx = w, i
		}
	}
	if match != nil {
		r.waits[ev.Name] = append(entries[:idx], entries[idx+1:]...)
	}
	r.mu.Unlock()

	if match == nil {
		return false
	}
	match.ch <- waitResult{ev: ev}
	return true
}

// failAll fails every outstanding wait with err and refuses new
// registrations. Called when the session closes: a wait can never
// resolve post-close, so leaving it to its own timeout only delays the
// caller.
func (r *waiterRegistry) failAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed != nil {
		return
	}
	r.closed = err
	for _, entries := range r.waits {
		for _, w := range entries {
			w.ch <- waitResult{err: err}
		}
	}
	r.waits = make(map[string][]*pendingWait)
}

// WaitFor suspends the caller until an event with the given name, for
// which pred holds, is dispatched; only frames dispatched after
// registration can match. It returns ErrWaitTimeout once timeout
// elapses with no match, the context error on cancellation, and
// ErrConnectionClosed if the session closes first. A nil pred accepts
// any event with the name.
func (c *Client) WaitFor(ctx context.Context, event string, pred func(*Event) bool, timeout time.Duration) (*Event, error) {
	if timeout <= 0 {
		timeout = c.opts.waitTimeout
	}

	w, err := c.waiters.register(event, pred)
	if err != nil {
		return nil, err
	}
	defer c.waiters.remove(w)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		return res.ev, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%w waiting for %q", ErrWaitTimeout, event)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
