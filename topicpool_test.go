package eventengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicPool_InternReturnsSamePointer(t *testing.T) {
	pool := NewTopicPool(0)

	a, err := pool.Intern("A.B.{c}")
	require.NoError(t, err)
	b, err := pool.Intern("A.B.{c}")
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestTopicPool_CapacityStopsCaching(t *testing.T) {
	pool := NewTopicPool(1)

	first, err := pool.Intern("A.B")
	require.NoError(t, err)
	_, err = pool.Intern("C.D")
	require.NoError(t, err)

	assert.Equal(t, 1, pool.Len())

	again, err := pool.Intern("A.B")
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestTopicPool_Reset(t *testing.T) {
	pool := NewTopicPool(0)
	_, err := pool.Intern("A.B")
	require.NoError(t, err)
	oldID := pool.DebugID

	pool.Reset()
	assert.Equal(t, 0, pool.Len())
	assert.NotEqual(t, oldID, pool.DebugID)
}

func TestDefaultTopicPool_IsASingleton(t *testing.T) {
	assert.Same(t, DefaultTopicPool(), DefaultTopicPool())
}
