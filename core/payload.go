package core

// RefCounted is an optional interface for Args/Kwargs values that need
// explicit lifecycle management (e.g. a pooled buffer). Publish calls
// AddRef once when it fills the payload, and the dispatcher calls DropRef
// once after the last hook in a dispatch completes, per §5's memory
// discipline. Ordinary Go values
// don't need to implement this — the garbage collector already handles
// their lifetime — it exists only for payloads that wrap external
// resources.
type RefCounted interface {
	AddRef()
	DropRef()
}

func addRefIfCounted(v interface{}) {
	if rc, ok := v.(RefCounted); ok {
		rc.AddRef()
	}
}

func dropRefIfCounted(v interface{}) {
	if rc, ok := v.(RefCounted); ok {
		rc.DropRef()
	}
}

// Payload is the on-queue message record: a borrowed reference to its
// Topic, opaque positional/named arguments, and a monotonic sequence id.
// Payloads are recycled by a PayloadPool; callers never construct one
// directly — use PayloadPool.Acquire (internal/support/pool).
type Payload struct {
	Topic  *Topic
	Args   interface{}
	Kwargs interface{}
	SeqID  uint64

	releaser func(*Payload)
}

// SetReleaser installs the function called by Release. Used by
// PayloadPool.Acquire; not meant for application code.
func (p *Payload) SetReleaser(f func(*Payload)) {
	p.releaser = f
}

// AddRefs add-refs Args and Kwargs if they implement RefCounted. Called
// once by publish() when the payload is filled.
func (p *Payload) AddRefs() {
	addRefIfCounted(p.Args)
	addRefIfCounted(p.Kwargs)
}

// DropRefs drop-refs Args and Kwargs if they implement RefCounted.
// Called once by the dispatcher after the last matching hook for this
// payload has been invoked.
func (p *Payload) DropRefs() {
	dropRefIfCounted(p.Args)
	dropRefIfCounted(p.Kwargs)
}

// Reset clears all payload fields except the releaser, so the slot is
// ready for reuse by the pool.
func (p *Payload) Reset() {
	p.Topic = nil
	p.Args = nil
	p.Kwargs = nil
	p.SeqID = 0
}

// Release returns the payload to whichever pool produced it. A no-op on
// a payload that wasn't pool-issued.
func (p *Payload) Release() {
	if p.releaser != nil {
		p.releaser(p)
	}
}

// KwargsWithTopic returns a shallow copy of kwargs with "topic" bound to
// t, for the with-topic handler calling convention in §4.5. If kwargs is
// not a map[string]interface{}, it is returned unchanged alongside a
// false ok so the caller can fall back to calling without injecting
// topic.
func KwargsWithTopic(kwargs interface{}, t *Topic) (interface{}, bool) {
	m, ok := kwargs.(map[string]interface{})
	if !ok {
		return kwargs, false
	}
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out["topic"] = t
	return out, true
}

// KwargsWithoutTopic returns a shallow copy of kwargs with the "topic"
// key removed. Used by the retry_on_unexpected_topic footgun path in
// §4.5/§9: a second try that omits topic after a handler rejected it.
func KwargsWithoutTopic(kwargs interface{}) interface{} {
	m, ok := kwargs.(map[string]interface{})
	if !ok {
		return kwargs
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k == "topic" {
			continue
		}
		out[k] = v
	}
	return out
}
