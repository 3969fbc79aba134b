// Package ring provides MsgQueue, the bounded producer/consumer ring
// buffer described in spec §4.4: a mutex plus two condition variables
// (notEmpty, notFull) guarding a fixed-size slice of *core.Payload.
//
// MsgQueue holds up to capacity items (the usable depth callers asked
// for) and allocates capacity+1 slots internally. Full and empty are
// decided by an item count kept under the mutex, not by comparing head
// and tail.
package ring

import (
	"sync"
	"time"

	"github.com/uniyakcom/eventengine/core"
)

// MsgQueue is a bounded FIFO ring of payload pointers, internally
// synchronized per §5's shared-resource policy.
type MsgQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf        []*core.Payload
	head, tail int
	count      int
	capacity   int // usable depth; len(buf) == capacity+1

	active bool
}

// New creates a queue with the given usable capacity.
func New(capacity int) *MsgQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &MsgQueue{
		buf:      make([]*core.Payload, capacity+1),
		capacity: capacity,
		active:   true,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *MsgQueue) isFull() bool  { return q.count == q.capacity }
func (q *MsgQueue) isEmpty() bool { return q.count == 0 }

// Len returns the number of items currently queued.
func (q *MsgQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Put is the non-blocking enqueue: it returns ErrQueueFull rather than
// waiting for space.
func (q *MsgQueue) Put(p *core.Payload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isFull() {
		return core.ErrQueueFull
	}
	q.pushLocked(p)
	return nil
}

// Get is the non-blocking dequeue: it returns ErrQueueEmpty rather than
// waiting for an item.
func (q *MsgQueue) Get() (*core.Payload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isEmpty() {
		return nil, core.ErrQueueEmpty
	}
	return q.popLocked(), nil
}

// PutAwait blocks until space is available or the queue is closed.
func (q *MsgQueue) PutAwait(p *core.Payload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.isFull() && q.active {
		q.notFull.Wait()
	}
	if !q.active {
		return core.NewError(core.ErrCodeLifecycle, "queue closed")
	}
	q.pushLocked(p)
	return nil
}

// GetAwait blocks until an item is available or the queue is closed
// with nothing left to drain.
func (q *MsgQueue) GetAwait() (*core.Payload, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.isEmpty() && q.active {
		q.notEmpty.Wait()
	}
	if q.isEmpty() {
		return nil, core.NewError(core.ErrCodeLifecycle, "queue closed")
	}
	return q.popLocked(), nil
}

// PutHybrid spins for up to spin iterations attempting a non-blocking
// put before falling back to a timed wait. timeout of 0 waits
// indefinitely (until space or Close); a timeout elapsing without
// success returns ErrQueueFull.
func (q *MsgQueue) PutHybrid(p *core.Payload, spin int, timeout time.Duration) error {
	for i := 0; i < spin; i++ {
		if err := q.Put(p); err == nil {
			return nil
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	deadline, hasDeadline := deadlineOf(timeout)
	for q.isFull() && q.active {
		if !waitWithDeadline(q.notFull, deadline, hasDeadline) {
			return core.ErrQueueFull
		}
	}
	if !q.active {
		return core.NewError(core.ErrCodeLifecycle, "queue closed")
	}
	q.pushLocked(p)
	return nil
}

// GetHybrid is PutHybrid's dequeue counterpart.
func (q *MsgQueue) GetHybrid(spin int, timeout time.Duration) (*core.Payload, error) {
	for i := 0; i < spin; i++ {
		if p, err := q.Get(); err == nil {
			return p, nil
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	deadline, hasDeadline := deadlineOf(timeout)
	for q.isEmpty() && q.active {
		if !waitWithDeadline(q.notEmpty, deadline, hasDeadline) {
			return nil, core.ErrQueueEmpty
		}
	}
	if q.isEmpty() {
		return nil, core.NewError(core.ErrCodeLifecycle, "queue closed")
	}
	return q.popLocked(), nil
}

// Close signals shutdown per §5: active is set false and both
// condition variables are woken so blocked producers/consumers can
// observe the closed state. A consumer already holding dequeued items
// may continue draining; GetAwait/GetHybrid only report the queue
// closed once it is also empty.
func (q *MsgQueue) Close() {
	q.mu.Lock()
	q.active = false
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Active reports whether Close has not yet been called.
func (q *MsgQueue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func (q *MsgQueue) pushLocked(p *core.Payload) {
	q.buf[q.tail] = p
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.notEmpty.Signal()
}

func (q *MsgQueue) popLocked() *core.Payload {
	p := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.notFull.Signal()
	return p
}

// deadlineOf mirrors spec §5's timeout convention: 0 means wait
// indefinitely (no deadline), anything else is a relative deadline
// from now.
func deadlineOf(timeout time.Duration) (time.Time, bool) {
	if timeout <= 0 {
		return time.Time{}, false
	}
	return time.Now().Add(timeout), true
}

// waitWithDeadline waits on cond, returning false if deadline has
// already passed. sync.Cond has no timed wait, so a deadline is
// enforced by a companion timer goroutine that broadcasts the same
// cond on expiry; the predicate re-check after wake distinguishes a
// real signal from a timeout wake.
func waitWithDeadline(cond *sync.Cond, deadline time.Time, hasDeadline bool) bool {
	if !hasDeadline {
		cond.Wait()
		return true
	}
	if !time.Now().Before(deadline) {
		return false
	}
	remaining := time.Until(deadline)
	timer := time.AfterFunc(remaining, cond.Broadcast)
	cond.Wait()
	stopped := timer.Stop()
	if !stopped && !time.Now().Before(deadline) {
		return false
	}
	return true
}
