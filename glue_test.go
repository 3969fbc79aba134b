package eventengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniyakcom/eventengine/core"
)

func mustNewHook(t *testing.T, topic *core.Topic) *core.Hook {
	hook, err := core.NewHook(topic)
	require.NoError(t, err)
	return hook
}

func TestSnapshot_ReflectsRegistrationsAndState(t *testing.T) {
	engine := newTestEngine(t, 8)
	exact, err := core.Parse("A.B")
	require.NoError(t, err)
	generic, err := core.Parse("A.{b}")
	require.NoError(t, err)

	require.NoError(t, engine.RegisterHook(mustNewHook(t, exact)))
	require.NoError(t, engine.RegisterHook(mustNewHook(t, generic)))

	snap := engine.Snapshot()
	assert.False(t, snap.Active)
	assert.Equal(t, 1, snap.ExactCount)
	assert.Equal(t, 1, snap.GenericCount)
}

func TestItems_ExactBeforeGenericInsertionOrder(t *testing.T) {
	engine := newTestEngine(t, 8)
	exact1, _ := core.Parse("A.B")
	exact2, _ := core.Parse("A.C")
	generic1, _ := core.Parse("A.{x}")

	require.NoError(t, engine.RegisterHook(mustNewHook(t, exact1)))
	require.NoError(t, engine.RegisterHook(mustNewHook(t, exact2)))
	require.NoError(t, engine.RegisterHook(mustNewHook(t, generic1)))

	items := engine.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "A.B", items[0].Topic.Literal)
	assert.Equal(t, "A.C", items[1].Topic.Literal)
	assert.Equal(t, "A.{x}", items[2].Topic.Literal)
}
