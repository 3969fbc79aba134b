// Package pool provides PayloadPool, a fixed-size slab of reusable
// *core.Payload slots backed by a free list, per §4.3. It is internally
// synchronized — unlike KeyMap, a pool is hit from every producer
// goroutine concurrently.
package pool

import "github.com/uniyakcom/eventengine/core"

// PayloadPool hands out *core.Payload slots, reusing freed ones up to
// capacity and falling back to a fresh heap allocation when the free
// list is empty. Deactivating the pool stops released payloads from
// returning to the free list; Acquire still reuses slots already in
// it. AllocationError is
// never raised by Acquire itself — per §7, overflow always falls back
// to the heap rather than failing the publish.
type PayloadPool struct {
	mu       chan struct{} // binary semaphore guarding free/active
	free     []*core.Payload
	capacity int
	active   bool
}

// New creates a pool that reuses up to capacity payload slots.
func New(capacity int) *PayloadPool {
	if capacity < 0 {
		capacity = 0
	}
	p := &PayloadPool{
		mu:       make(chan struct{}, 1),
		free:     make([]*core.Payload, 0, capacity),
		capacity: capacity,
		active:   true,
	}
	p.mu <- struct{}{}
	return p
}

func (p *PayloadPool) lock()   { <-p.mu }
func (p *PayloadPool) unlock() { p.mu <- struct{}{} }

// Acquire returns a payload slot, reused from the free list when
// available, freshly allocated otherwise.
func (p *PayloadPool) Acquire() *core.Payload {
	p.lock()
	var pl *core.Payload
	if n := len(p.free); n > 0 {
		pl = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.unlock()

	if pl == nil {
		pl = &core.Payload{}
	}
	pl.SetReleaser(p.release)
	return pl
}

// release returns pl to the free list if the pool is active and under
// capacity; otherwise it is left for the garbage collector. Installed
// as pl's releaser by Acquire, so application code calls pl.Release()
// rather than this directly.
func (p *PayloadPool) release(pl *core.Payload) {
	pl.Reset()
	p.lock()
	if p.active && len(p.free) < p.capacity {
		p.free = append(p.free, pl)
	}
	p.unlock()
}

// SetActive toggles hot disabling: while inactive, released payloads are
// dropped instead of being returned to the free list.
func (p *PayloadPool) SetActive(active bool) {
	p.lock()
	p.active = active
	p.unlock()
}

// Active reports whether the pool is currently accepting released
// payloads back into its free list.
func (p *PayloadPool) Active() bool {
	p.lock()
	defer p.unlock()
	return p.active
}

// Len returns the number of payloads currently sitting in the free
// list (for tests and diagnostics, not a hot-path call).
func (p *PayloadPool) Len() int {
	p.lock()
	defer p.unlock()
	return len(p.free)
}
