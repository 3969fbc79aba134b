package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReusesReleased(t *testing.T) {
	p := New(4)
	first := p.Acquire()
	first.SeqID = 99
	first.Release()

	require.Equal(t, 1, p.Len())

	second := p.Acquire()
	assert.Same(t, first, second)
	assert.Equal(t, uint64(0), second.SeqID) // Reset by release
}

func TestAcquireOverflowsToHeapPastCapacity(t *testing.T) {
	p := New(1)
	a := p.Acquire()
	b := p.Acquire()
	assert.NotSame(t, a, b)

	a.Release()
	b.Release()
	assert.Equal(t, 1, p.Len())
}

func TestSetActiveDropsReleased(t *testing.T) {
	p := New(4)
	pl := p.Acquire()
	p.SetActive(false)
	pl.Release()
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Active())
}

func TestNewWithNegativeCapacityClampsToZero(t *testing.T) {
	p := New(-1)
	pl := p.Acquire()
	pl.Release()
	assert.Equal(t, 0, p.Len())
}
