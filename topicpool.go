package eventengine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/uniyakcom/eventengine/core"
)

// TopicPool is the optional, process-wide topic intern map described
// in spec §9's "Global state" note: Intern("A.B.{c}") always returns
// the identical *core.Topic pointer for the same canonical key, so
// callers that are willing to route through the pool can compare
// topics by pointer in a hot path while everyone else still compares
// by Topic.Equal (key equality).
//
// Mutation is rare — it happens at registration time, not dispatch
// time — so a plain mutex is preferred over a lock-free structure
// here, mirroring the teacher's TrieMatcher.exact fast-path cache.
type TopicPool struct {
	mu       sync.Mutex
	byKey    map[string]*core.Topic
	capacity int

	// DebugID identifies this pool instance in log correlation across
	// engine restarts, per the domain-stack's uuid wiring.
	DebugID uuid.UUID
}

// NewTopicPool creates an intern pool with the given capacity (0 means
// unbounded).
func NewTopicPool(capacity int) *TopicPool {
	return &TopicPool{
		byKey:    make(map[string]*core.Topic),
		capacity: capacity,
		DebugID:  uuid.New(),
	}
}

// Intern parses s if needed and returns the pool's canonical *core.Topic
// for its key, reusing a previously interned pointer when one exists.
// When the pool is at capacity, a freshly parsed topic is returned
// without being cached — interning is a cache, never a source of
// truth, so a full pool degrades to "always parse" rather than erroring.
func (p *TopicPool) Intern(s string) (*core.Topic, error) {
	t, err := core.Parse(s)
	if err != nil {
		return nil, err
	}
	return p.InternTopic(t), nil
}

// InternTopic is Intern's counterpart for an already-built Topic.
func (p *TopicPool) InternTopic(t *core.Topic) *core.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.byKey[t.Key]; ok {
		return existing
	}
	if p.capacity > 0 && len(p.byKey) >= p.capacity {
		return t
	}
	p.byKey[t.Key] = t
	return t
}

// Len reports the number of distinct topics currently interned.
func (p *TopicPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byKey)
}

// Reset drops every interned topic, assigning a fresh DebugID.
func (p *TopicPool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byKey = make(map[string]*core.Topic)
	p.DebugID = uuid.New()
}

var (
	defaultPoolOnce sync.Once
	defaultPool     *TopicPool
)

// DefaultTopicPool returns the lazily-created, process-wide default
// TopicPool. Not required by the core engine — callers that never call
// this never pay for it.
func DefaultTopicPool() *TopicPool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewTopicPool(0)
	})
	return defaultPool
}
