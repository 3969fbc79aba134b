package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topicA(t *testing.T) *Topic {
	topic, err := Parse("A.B")
	require.NoError(t, err)
	return topic
}

func newTestHook(t *testing.T, opts ...HookOption) *Hook {
	hook, err := NewHook(topicA(t), opts...)
	require.NoError(t, err)
	return hook
}

func newTestHookEx(t *testing.T, opts ...HookOption) *HookEx {
	hookEx, err := NewHookEx(topicA(t), opts...)
	require.NoError(t, err)
	return hookEx
}

func TestHookOptions_RejectsNilLogger(t *testing.T) {
	_, err := NewHook(topicA(t), WithHookLogger(nil))
	assert.Error(t, err)
}

func TestHook_Delivery(t *testing.T) {
	hook := newTestHook(t)
	var calls int
	var mu sync.Mutex
	handler := NewHandler(func(args, kwargs interface{}) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	added := hook.AddHandler(handler, true)
	require.True(t, added)

	hook.Invoke(topicA(t), []interface{}{1}, nil)
	assert.Equal(t, 1, calls)
}

func TestHook_NoTopicBeforeWithTopic(t *testing.T) {
	hook := newTestHook(t)
	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	hook.AddHandler(NewHandlerWithTopic(func(topic *Topic, args, kwargs interface{}) error {
		record("with-topic")
		return nil
	}), true)
	hook.AddHandler(NewHandler(func(args, kwargs interface{}) error {
		record("no-topic")
		return nil
	}), true)

	hook.Invoke(topicA(t), nil, nil)
	require.Len(t, order, 2)
	assert.Equal(t, "no-topic", order[0])
	assert.Equal(t, "with-topic", order[1])
}

func TestHook_DeduplicateSkipsRepeat(t *testing.T) {
	hook := newTestHook(t)
	handler := NewHandler(func(args, kwargs interface{}) error { return nil })

	assert.True(t, hook.AddHandler(handler, true))
	assert.False(t, hook.AddHandler(handler, true))
}

func TestHook_RemoveHandlerAbsentIsNoop(t *testing.T) {
	hook := newTestHook(t)
	handler := NewHandler(func(args, kwargs interface{}) error { return nil })
	assert.False(t, hook.RemoveHandler(handler))
}

func TestHook_HandlerPanicIsolation(t *testing.T) {
	hook := newTestHook(t)
	var secondCalled bool

	hook.AddHandler(NewHandler(func(args, kwargs interface{}) error {
		panic("boom")
	}), true)
	hook.AddHandler(NewHandler(func(args, kwargs interface{}) error {
		secondCalled = true
		return nil
	}), true)

	assert.NotPanics(t, func() {
		hook.Invoke(topicA(t), nil, nil)
	})
	assert.True(t, secondCalled)
}

func TestHook_WithTopicCallingConvention(t *testing.T) {
	hook := newTestHook(t)
	var gotTopic *Topic
	var gotKwargs interface{}

	hook.AddHandler(NewHandlerWithTopic(func(topic *Topic, args, kwargs interface{}) error {
		gotTopic = topic
		gotKwargs = kwargs
		return nil
	}), true)

	topic := topicA(t)
	hook.Invoke(topic, nil, map[string]interface{}{"x": 1})

	require.NotNil(t, gotTopic)
	assert.Equal(t, topic.Key, gotTopic.Key)
	m := gotKwargs.(map[string]interface{})
	assert.Equal(t, 1, m["x"])
	assert.Same(t, topic, m["topic"])
}

func TestHook_RetryOnUnexpectedTopic(t *testing.T) {
	hook := newTestHook(t, WithRetryOnUnexpectedTopic(true))
	var attempts int

	hook.AddHandler(NewHandlerWithTopic(func(topic *Topic, args, kwargs interface{}) error {
		attempts++
		m := kwargs.(map[string]interface{})
		if _, has := m["topic"]; has {
			return ErrUnexpectedTopicArg
		}
		return nil
	}), true)

	hook.Invoke(topicA(t), nil, map[string]interface{}{})
	assert.Equal(t, 2, attempts)
}

func TestHook_NoRetryByDefault(t *testing.T) {
	hook := newTestHook(t)
	var attempts int

	hook.AddHandler(NewHandlerWithTopic(func(topic *Topic, args, kwargs interface{}) error {
		attempts++
		return ErrUnexpectedTopicArg
	}), true)

	hook.Invoke(topicA(t), nil, map[string]interface{}{})
	assert.Equal(t, 1, attempts)
}

func TestHookEx_Stats(t *testing.T) {
	hookEx := newTestHookEx(t)
	handler := NewHandler(func(args, kwargs interface{}) error { return nil })
	hookEx.AddHandler(handler, true)

	hookEx.Invoke(topicA(t), nil, nil)
	hookEx.Invoke(topicA(t), nil, nil)

	stats := hookEx.Stats()
	s, ok := stats[handler.ID()]
	require.True(t, ok)
	assert.Equal(t, uint64(2), s.Calls)
}

func TestHookEx_ClearDropsStats(t *testing.T) {
	hookEx := newTestHookEx(t)
	handler := NewHandler(func(args, kwargs interface{}) error { return nil })
	hookEx.AddHandler(handler, true)
	hookEx.Clear()
	assert.Empty(t, hookEx.Stats())
}
