package eventengine

import "github.com/uniyakcom/eventengine/core"

// EngineItem pairs a registered topic with the hook bound to it, as
// returned by Engine.Items.
type EngineItem struct {
	Topic *core.Topic
	Hook  core.HookLike
}

// Topics returns every registered topic, exact entries first, each
// group in insertion order — the concatenation spec §4.6's iterators
// describe.
func (e *Engine) Topics() []*core.Topic {
	out := make([]*core.Topic, 0, e.exact.Len()+e.generic.Len())
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	e.exact.Each(func(_ string, v interface{}) bool {
		out = append(out, v.(core.HookLike).TopicOf())
		return true
	})
	e.generic.Each(func(_ string, v interface{}) bool {
		out = append(out, v.(core.HookLike).TopicOf())
		return true
	})
	return out
}

// Hooks returns every registered hook, exact entries first, each group
// in insertion order.
func (e *Engine) Hooks() []core.HookLike {
	out := make([]core.HookLike, 0, e.exact.Len()+e.generic.Len())
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	e.exact.Each(func(_ string, v interface{}) bool {
		out = append(out, v.(core.HookLike))
		return true
	})
	e.generic.Each(func(_ string, v interface{}) bool {
		out = append(out, v.(core.HookLike))
		return true
	})
	return out
}

// Items returns every (topic, hook) pair, exact entries first, each
// group in insertion order.
func (e *Engine) Items() []EngineItem {
	out := make([]EngineItem, 0, e.exact.Len()+e.generic.Len())
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	collect := func(_ string, v interface{}) bool {
		hook := v.(core.HookLike)
		out = append(out, EngineItem{Topic: hook.TopicOf(), Hook: hook})
		return true
	}
	e.exact.Each(collect)
	e.generic.Each(collect)
	return out
}

// EngineSnapshot is a point-in-time read of the engine's shape, for
// external health checks and diagnostics — the "iteration facade"
// item in spec §2 generalized into a single struct.
type EngineSnapshot struct {
	Active         bool
	ExactCount     int
	GenericCount   int
	TimerIntervals []float64
}

// Snapshot returns the engine's current EngineSnapshot.
func (e *Engine) Snapshot() EngineSnapshot {
	e.mapMu.Lock()
	exactCount := e.exact.Len()
	genericCount := e.generic.Len()
	e.mapMu.Unlock()

	return EngineSnapshot{
		Active:         e.state() == stateActive,
		ExactCount:     exactCount,
		GenericCount:   genericCount,
		TimerIntervals: e.timers.intervals(),
	}
}

// intervals returns the intervals of every timer that has been
// requested via GetTimer, running or not yet started.
func (t *EngineTimers) intervals() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]float64, 0, t.running.Len())
	t.running.Each(func(_ string, v interface{}) bool {
		out = append(out, v.(*timerEntry).interval)
		return true
	})
	return out
}
