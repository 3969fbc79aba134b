package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refCountedStub struct {
	adds, drops int
}

func (r *refCountedStub) AddRef()  { r.adds++ }
func (r *refCountedStub) DropRef() { r.drops++ }

func TestPayload_AddDropRefs(t *testing.T) {
	args := &refCountedStub{}
	kwargs := &refCountedStub{}
	p := &Payload{Args: args, Kwargs: kwargs}

	p.AddRefs()
	assert.Equal(t, 1, args.adds)
	assert.Equal(t, 1, kwargs.adds)

	p.DropRefs()
	assert.Equal(t, 1, args.drops)
	assert.Equal(t, 1, kwargs.drops)
}

func TestPayload_AddDropRefs_IgnoresPlainValues(t *testing.T) {
	p := &Payload{Args: []interface{}{1, 2}, Kwargs: map[string]interface{}{"a": 1}}
	assert.NotPanics(t, func() {
		p.AddRefs()
		p.DropRefs()
	})
}

func TestPayload_Reset(t *testing.T) {
	topic, err := Parse("A.B")
	require.NoError(t, err)
	p := &Payload{Topic: topic, Args: 1, Kwargs: 2, SeqID: 7}

	p.Reset()
	assert.Nil(t, p.Topic)
	assert.Nil(t, p.Args)
	assert.Nil(t, p.Kwargs)
	assert.Equal(t, uint64(0), p.SeqID)
}

func TestPayload_Release_CallsReleaser(t *testing.T) {
	var released *Payload
	p := &Payload{}
	p.SetReleaser(func(pl *Payload) { released = pl })

	p.Release()
	assert.Same(t, p, released)
}

func TestPayload_Release_NoReleaserIsNoop(t *testing.T) {
	p := &Payload{}
	assert.NotPanics(t, p.Release)
}

func TestKwargsWithTopic(t *testing.T) {
	topic, err := Parse("A.B")
	require.NoError(t, err)

	out, ok := KwargsWithTopic(map[string]interface{}{"x": 1}, topic)
	require.True(t, ok)
	m := out.(map[string]interface{})
	assert.Equal(t, 1, m["x"])
	assert.Same(t, topic, m["topic"])

	_, ok = KwargsWithTopic("not a map", topic)
	assert.False(t, ok)
}

func TestKwargsWithoutTopic(t *testing.T) {
	in := map[string]interface{}{"x": 1, "topic": "whatever"}
	out := KwargsWithoutTopic(in).(map[string]interface{})
	assert.Equal(t, 1, out["x"])
	_, has := out["topic"]
	assert.False(t, has)
}
