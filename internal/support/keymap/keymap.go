// Package keymap provides KeyMap, an insertion-ordered, open-addressed
// map from variable-length byte keys to opaque values, per §4.2.
//
// It is not internally synchronized — callers serialize mutation
// themselves, or hold an external lock, per §5's shared-resource policy.
// This mirrors the teacher's internal/support packages: small,
// dependency-free data structures the rest of the module builds on.
package keymap

import "github.com/uniyakcom/eventengine/core"

const (
	emptySlot    = -1
	tombstone    = -2
	defaultCap   = 8
	maxLoadRatio = 0.75
)

// node is one live or tombstoned entry. Insertion order is tracked with
// prev/next indices into the nodes slice, forming a doubly linked list
// independent of the open-addressing table.
type node struct {
	key        string
	value      interface{}
	prev, next int
	alive      bool
}

// KeyMap is an insertion-ordered, open-addressed map keyed by raw bytes.
// Internally, keys are held as Go strings (an immutable byte sequence —
// the natural Go representation of "bytes used as a map key").
type KeyMap struct {
	buckets  []int
	nodes    []node
	freeList []int
	head     int
	tail     int
	count    int // live entries
}

// New creates an empty KeyMap.
func New() *KeyMap {
	m := &KeyMap{
		buckets: newBuckets(defaultCap),
		head:    emptySlot,
		tail:    emptySlot,
	}
	return m
}

func newBuckets(n int) []int {
	b := make([]int, n)
	for i := range b {
		b[i] = emptySlot
	}
	return b
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Len returns the number of live entries.
func (m *KeyMap) Len() int { return m.count }

// Get looks up key.
func (m *KeyMap) Get(key string) (interface{}, bool) {
	idx := m.find(key)
	if idx < 0 {
		return nil, false
	}
	return m.nodes[idx].value, true
}

// Has reports whether key is present.
func (m *KeyMap) Has(key string) bool {
	return m.find(key) >= 0
}

// Set inserts or replaces the value for key, returning true if an
// existing entry was replaced (insertion order is unchanged on
// replace).
func (m *KeyMap) Set(key string, value interface{}) bool {
	if idx := m.find(key); idx >= 0 {
		m.nodes[idx].value = value
		return true
	}

	if float64(m.count+1) > maxLoadRatio*float64(len(m.buckets)) {
		m.rehash(nextPow2(len(m.buckets) * 2))
	}

	idx := m.newNode(key, value)
	m.insertBucket(key, idx)
	m.linkTail(idx)
	m.count++
	return false
}

// Pop removes key, returning its value and whether it was present.
func (m *KeyMap) Pop(key string) (interface{}, bool) {
	h := core.Hash64([]byte(key))
	mask := len(m.buckets) - 1
	i := int(h) & mask
	for {
		b := m.buckets[i]
		if b == emptySlot {
			return nil, false
		}
		if b != tombstone && m.nodes[b].alive && m.nodes[b].key == key {
			value := m.nodes[b].value
			m.buckets[i] = tombstone
			m.unlink(b)
			m.nodes[b] = node{}
			m.freeList = append(m.freeList, b)
			m.count--
			return value, true
		}
		i = (i + 1) & mask
	}
}

// Clear drops every entry.
func (m *KeyMap) Clear() {
	m.buckets = newBuckets(defaultCap)
	m.nodes = nil
	m.freeList = nil
	m.head = emptySlot
	m.tail = emptySlot
	m.count = 0
}

// Each calls fn once per live entry, in insertion order, stopping early
// if fn returns false.
func (m *KeyMap) Each(fn func(key string, value interface{}) bool) {
	for i := m.head; i != emptySlot; i = m.nodes[i].next {
		if !m.nodes[i].alive {
			continue
		}
		if !fn(m.nodes[i].key, m.nodes[i].value) {
			return
		}
	}
}

// Keys returns a snapshot of keys in insertion order.
func (m *KeyMap) Keys() []string {
	out := make([]string, 0, m.count)
	m.Each(func(k string, _ interface{}) bool {
		out = append(out, k)
		return true
	})
	return out
}

func (m *KeyMap) find(key string) int {
	h := core.Hash64([]byte(key))
	mask := len(m.buckets) - 1
	i := int(h) & mask
	for {
		b := m.buckets[i]
		if b == emptySlot {
			return -1
		}
		if b != tombstone && m.nodes[b].alive && m.nodes[b].key == key {
			return b
		}
		i = (i + 1) & mask
	}
}

func (m *KeyMap) newNode(key string, value interface{}) int {
	if n := len(m.freeList); n > 0 {
		idx := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		m.nodes[idx] = node{key: key, value: value, alive: true, prev: emptySlot, next: emptySlot}
		return idx
	}
	m.nodes = append(m.nodes, node{key: key, value: value, alive: true, prev: emptySlot, next: emptySlot})
	return len(m.nodes) - 1
}

func (m *KeyMap) insertBucket(key string, idx int) {
	h := core.Hash64([]byte(key))
	mask := len(m.buckets) - 1
	i := int(h) & mask
	for m.buckets[i] != emptySlot && m.buckets[i] != tombstone {
		i = (i + 1) & mask
	}
	m.buckets[i] = idx
}

func (m *KeyMap) linkTail(idx int) {
	m.nodes[idx].prev = m.tail
	m.nodes[idx].next = emptySlot
	if m.tail != emptySlot {
		m.nodes[m.tail].next = idx
	} else {
		m.head = idx
	}
	m.tail = idx
}

func (m *KeyMap) unlink(idx int) {
	n := m.nodes[idx]
	if n.prev != emptySlot {
		m.nodes[n.prev].next = n.next
	} else {
		m.head = n.next
	}
	if n.next != emptySlot {
		m.nodes[n.next].prev = n.prev
	} else {
		m.tail = n.prev
	}
}

// rehash rebuilds the bucket table at the new size, preserving node
// indices (and therefore insertion-order links) untouched.
func (m *KeyMap) rehash(newSize int) {
	m.buckets = newBuckets(newSize)
	for i := m.head; i != emptySlot; i = m.nodes[i].next {
		if !m.nodes[i].alive {
			continue
		}
		m.insertBucket(m.nodes[i].key, i)
	}
}
