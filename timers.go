package eventengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uniyakcom/eventengine/core"
	"github.com/uniyakcom/eventengine/internal/support/keymap"
)

const (
	secondInterval = 1.0
	minuteInterval = 60.0

	secondTopicLiteral = "EventEngine.Internal.Timer.Second"
	minuteTopicLiteral = "EventEngine.Internal.Timer.Minute"
)

// timerEntry is one requested interval: the topic it publishes to, the
// moment it should first fire (zero means "immediately" or, for a
// well-known interval, the next aligned boundary), and whether its
// goroutine has been started yet.
type timerEntry struct {
	interval     float64
	topic        *core.Topic
	activateTime time.Time
	started      bool
}

// EngineTimers manages the engine's timer threads, per spec §4.7: one
// goroutine per distinct interval, tracked in a KeyMap keyed by the
// interval's string form (reusing the same map type the topic indices
// use, rather than a second bespoke structure).
type EngineTimers struct {
	engine *Engine

	mu      sync.Mutex
	running *keymap.KeyMap
}

func newEngineTimers(e *Engine) *EngineTimers {
	return &EngineTimers{engine: e, running: keymap.New()}
}

// GetTimer returns the well-known topic for interval. On the first call
// for that interval it starts the background timer goroutine right away
// if the engine is active, or leaves it for the next Start otherwise. A
// subsequent call for an already-running interval returns
// the existing topic and logs a debug note that activateTime is being
// ignored.
func (t *EngineTimers) GetTimer(interval float64, activateTime time.Time) (*core.Topic, error) {
	key := intervalKey(interval)

	t.mu.Lock()
	if v, ok := t.running.Get(key); ok {
		entry := v.(*timerEntry)
		t.mu.Unlock()
		t.engine.opts.Logger.Debugf("eventengine: timer %s already running, ignoring new activate_time", key)
		return entry.topic, nil
	}

	topic, err := topicForInterval(interval)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	entry := &timerEntry{interval: interval, topic: topic, activateTime: activateTime}
	t.running.Set(key, entry)

	e := t.engine
	active := e.state() == stateActive
	var group *errgroup.Group
	var ctx context.Context
	if active {
		e.runMu.Lock()
		group = e.group
		ctx = e.runCtx
		e.runMu.Unlock()
	}
	t.mu.Unlock()

	if active && group != nil {
		t.spawn(ctx, group, entry)
	}
	return topic, nil
}

// start is called from Engine.Start: it spawns goroutines for every
// interval requested before the engine became active.
func (t *EngineTimers) start(ctx context.Context, group *errgroup.Group) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running.Each(func(_ string, v interface{}) bool {
		entry := v.(*timerEntry)
		if !entry.started {
			t.spawn(ctx, group, entry)
		}
		return true
	})
}

func (t *EngineTimers) spawn(ctx context.Context, group *errgroup.Group, entry *timerEntry) {
	entry.started = true
	group.Go(func() error { return t.run(ctx, entry) })
}

func (t *EngineTimers) run(ctx context.Context, entry *timerEntry) error {
	period := secondsToDuration(entry.interval)
	if period <= 0 {
		return nil
	}

	first := entry.activateTime
	if first.IsZero() {
		if wellKnown(entry.interval) {
			first = nextFireTime(time.Now(), period)
		} else {
			first = time.Now()
		}
	}

	timer := time.NewTimer(time.Until(first))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fireTime := <-timer.C:
			t.publish(entry, fireTime)
			next := fireTime.Add(period)
			if wellKnown(entry.interval) {
				next = nextFireTime(fireTime, period)
			}
			timer.Reset(time.Until(next))
		}
	}
}

func (t *EngineTimers) publish(entry *timerEntry, fireTime time.Time) {
	kwargs := map[string]interface{}{}
	switch entry.interval {
	case secondInterval, minuteInterval:
		kwargs["timestamp"] = fireTime
	default:
		kwargs["interval"] = entry.interval
		kwargs["trigger_time"] = fireTime
	}
	_ = t.engine.Publish(entry.topic, nil, kwargs, nonBlocking)
}

// nextFireTime computes floor(now, period)+period, per spec §9's
// timer-alignment rule. time.Time.Truncate already floors to a
// multiple of period since the zero time, which for 1s/60s periods
// lands exactly on wall-clock second/minute boundaries.
func nextFireTime(now time.Time, period time.Duration) time.Time {
	next := now.Truncate(period).Add(period)
	if !next.After(now) {
		next = next.Add(period)
	}
	return next
}

func wellKnown(interval float64) bool {
	return interval == secondInterval || interval == minuteInterval
}

func intervalKey(interval float64) string {
	return fmt.Sprintf("%g", interval)
}

func topicForInterval(interval float64) (*core.Topic, error) {
	switch interval {
	case secondInterval:
		return core.Parse(secondTopicLiteral)
	case minuteInterval:
		return core.Parse(minuteTopicLiteral)
	default:
		return core.Parse(fmt.Sprintf("EventEngine.Internal.Timer.%g", interval))
	}
}
