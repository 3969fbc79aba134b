// Package eventengine implements an in-process, topic-routed
// publish/subscribe engine: callers publish payloads tagged with a
// hierarchical topic (core.Topic) and a background dispatcher routes
// each one to every hook whose topic matches, invoking handlers in
// registration order with panic isolation.
package eventengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uniyakcom/eventengine/core"
	"github.com/uniyakcom/eventengine/internal/support/keymap"
	"github.com/uniyakcom/eventengine/internal/support/pool"
	"github.com/uniyakcom/eventengine/internal/support/ring"
)

// state is the engine's lifecycle stage, per spec §4.6:
// Constructed -> Active -> Stopping -> Inactive -> Cleared.
type state int32

const (
	stateConstructed state = iota
	stateActive
	stateStopping
	stateInactive
	stateCleared
)

func (s state) String() string {
	switch s {
	case stateConstructed:
		return "constructed"
	case stateActive:
		return "active"
	case stateStopping:
		return "stopping"
	case stateInactive:
		return "inactive"
	case stateCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// PublishMode controls how Publish/Get wait for queue space or items.
// With Block set, MaxSpin > 0 selects the hybrid spin-then-wait path;
// MaxSpin 0 selects put_await/get_await when TimeoutS is 0, and a timed
// wait with no spinning otherwise. TimeoutS of 0 waits indefinitely,
// matching spec §5's timeout convention.
type PublishMode struct {
	Block    bool
	MaxSpin  int
	TimeoutS float64
}

// nonBlocking is the zero PublishMode: Publish and Get fail fast with
// QueueFull/QueueEmpty instead of waiting.
var nonBlocking = PublishMode{}

// Engine is the root type: one bounded queue, two topic indices (exact
// and generic), one payload pool, and the dispatcher/timer goroutines
// that drive them. Construct with New.
type Engine struct {
	opts EngineOptions

	queue *ring.MsgQueue
	pool  *pool.PayloadPool

	mapMu sync.Mutex // guards exact/generic per §5: mutation requires quiescence
	exact *keymap.KeyMap
	generic *keymap.KeyMap

	seqID atomic.Uint64
	st    atomic.Int32

	runMu  sync.Mutex // guards group/cancel/runCtx across Start/Stop
	group  *errgroup.Group
	cancel context.CancelFunc
	runCtx context.Context

	timers *EngineTimers
}

// New constructs an Engine in the Constructed state. The dispatcher is
// not running until Start is called.
func New(opts ...Option) (*Engine, error) {
	o, err := NewEngineOptions(opts...)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		opts:    o,
		queue:   ring.New(o.Capacity),
		pool:    pool.New(o.Capacity),
		exact:   keymap.New(),
		generic: keymap.New(),
	}
	e.st.Store(int32(stateConstructed))
	e.timers = newEngineTimers(e)
	return e, nil
}

func (e *Engine) state() state { return state(e.st.Load()) }

// Timers returns the engine's EngineTimers, for GetTimer calls.
func (e *Engine) Timers() *EngineTimers { return e.timers }

// Publish requires topic.IsExact (spec §4.6); it acquires a Payload
// from the pool, fills it, add-refs args/kwargs, and enqueues it with
// the mode requested. A zero PublishMode behaves as a non-blocking
// publish.
func (e *Engine) Publish(topic *core.Topic, args, kwargs interface{}, mode PublishMode) error {
	if topic == nil || !topic.IsExact {
		return core.ErrInvalidTopic
	}

	p := e.pool.Acquire()
	p.Topic = topic
	p.Args = args
	p.Kwargs = kwargs
	p.AddRefs()
	p.SeqID = e.seqID.Add(1)

	if err := e.enqueue(p, mode); err != nil {
		p.DropRefs()
		p.Release()
		return err
	}
	return nil
}

func (e *Engine) enqueue(p *core.Payload, mode PublishMode) error {
	if !mode.Block {
		return e.queue.Put(p)
	}
	if mode.MaxSpin > 0 {
		return e.queue.PutHybrid(p, mode.MaxSpin, secondsToDuration(mode.TimeoutS))
	}
	if mode.TimeoutS == 0 {
		return e.queue.PutAwait(p)
	}
	return e.queue.PutHybrid(p, 0, secondsToDuration(mode.TimeoutS))
}

// Put is publish's convenience wrapper: positional args and named
// kwargs, published with the engine's own default timeout/spin
// settings, blocking until space is available.
func (e *Engine) Put(topic *core.Topic, args []interface{}, kwargs map[string]interface{}) error {
	mode := PublishMode{Block: true, MaxSpin: e.opts.MaxSpin, TimeoutS: e.opts.TimeoutS}
	return e.Publish(topic, args, kwargs, mode)
}

// Get pops a payload directly from the queue — a pull consumer path,
// primarily useful for tests. It does not run the payload through the
// dispatcher or hooks.
func (e *Engine) Get(mode PublishMode) (*core.Payload, error) {
	if !mode.Block {
		return e.queue.Get()
	}
	if mode.MaxSpin > 0 {
		return e.queue.GetHybrid(mode.MaxSpin, secondsToDuration(mode.TimeoutS))
	}
	if mode.TimeoutS == 0 {
		return e.queue.GetAwait()
	}
	return e.queue.GetHybrid(0, secondsToDuration(mode.TimeoutS))
}

// RegisterHook places hook under exact or generic, keyed by
// hook.TopicOf().Key, refusing if another hook already occupies that
// key.
func (e *Engine) RegisterHook(hook core.HookLike) error {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	m := e.indexFor(hook.TopicOf())
	if m.Has(hook.TopicOf().Key) {
		return core.ErrAlreadyRegistered
	}
	m.Set(hook.TopicOf().Key, hook)
	return nil
}

// UnregisterHook removes and returns the hook bound to topic.Key,
// failing with NotFound if absent.
func (e *Engine) UnregisterHook(topic *core.Topic) (core.HookLike, error) {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	m := e.indexFor(topic)
	v, ok := m.Pop(topic.Key)
	if !ok {
		return nil, core.ErrNotFound
	}
	return v.(core.HookLike), nil
}

// RegisterHandler creates a hook for topic on demand (with this
// engine's logger and the hook's default retry policy, off) and adds
// handler to it.
func (e *Engine) RegisterHandler(topic *core.Topic, handler core.Handler, deduplicate bool) error {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	m := e.indexFor(topic)
	v, ok := m.Get(topic.Key)
	var hook core.HookLike
	if ok {
		hook = v.(core.HookLike)
	} else {
		h, err := core.NewHook(topic, core.WithHookLogger(e.opts.Logger))
		if err != nil {
			return err
		}
		hook = h
		m.Set(topic.Key, hook)
	}
	hook.AddHandler(handler, deduplicate)
	return nil
}

// UnregisterHandler locates the hook bound to topic, removes handler
// from it, and unregisters the hook entirely once it has no handlers
// left.
func (e *Engine) UnregisterHandler(topic *core.Topic, handler core.Handler) error {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()

	m := e.indexFor(topic)
	v, ok := m.Get(topic.Key)
	if !ok {
		return nil
	}
	hook := v.(core.HookLike)
	hook.RemoveHandler(handler)
	if hook.IsEmpty() {
		m.Pop(topic.Key)
	}
	return nil
}

// indexFor returns the exact or generic map a topic belongs in.
func (e *Engine) indexFor(topic *core.Topic) *keymap.KeyMap {
	if topic.IsExact {
		return e.exact
	}
	return e.generic
}

// Clear drops every hook. Allowed only when the engine is not Active,
// per the state machine in spec §4.6.
func (e *Engine) Clear() error {
	if e.state() == stateActive {
		return core.NewError(core.ErrCodeLifecycle, "clear requires the engine to be inactive")
	}
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	e.exact.Clear()
	e.generic.Clear()
	e.st.Store(int32(stateCleared))
	return nil
}

// Start launches the dispatcher and any timers already registered via
// EngineTimers. Requires Constructed or Inactive.
func (e *Engine) Start() error {
	cur := e.state()
	if cur != stateConstructed && cur != stateInactive {
		return core.NewError(core.ErrCodeLifecycle, fmt.Sprintf("start requires constructed or inactive, got %s", cur))
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = group
	e.runCtx = gctx

	e.st.Store(int32(stateActive))
	group.Go(func() error { return e.dispatchLoop(gctx) })
	e.timers.start(gctx, group)
	return nil
}

// Stop signals the dispatcher and timer goroutines to exit, waits for
// them, and transitions Active -> Stopping -> Inactive. After the queue
// is closed the dispatcher keeps dispatching the payloads still sitting
// in it, and exits once the queue is empty.
func (e *Engine) Stop() error {
	if e.state() != stateActive {
		return core.NewError(core.ErrCodeLifecycle, "stop requires the engine to be active")
	}
	e.st.Store(int32(stateStopping))

	e.runMu.Lock()
	cancel := e.cancel
	group := e.group
	e.runMu.Unlock()

	e.queue.Close()
	if cancel != nil {
		cancel()
	}
	var err error
	if group != nil {
		err = group.Wait()
	}
	e.st.Store(int32(stateInactive))
	return err
}

// Run starts the engine and blocks until ctx is canceled, then stops
// it — a convenience for callers that want a single blocking call
// instead of managing Start/Stop themselves.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return e.Stop()
}

// dispatchLoop is the single dispatcher thread: pop, route, recycle,
// repeat, until the queue is closed and drained.
func (e *Engine) dispatchLoop(ctx context.Context) error {
	for {
		p, err := e.queue.GetHybrid(e.opts.MaxSpin, secondsToDuration(e.opts.TimeoutS))
		if err != nil {
			if ctx.Err() != nil || !e.queue.Active() {
				return nil
			}
			continue
		}
		e.dispatch(p)
	}
}

// dispatch implements the routing algorithm in spec §4.6: an O(1)
// exact-key lookup, then a walk of the generic map testing
// hook.TopicOf().Match(payload.Topic) for each entry, skipped entirely
// when the generic map is empty.
func (e *Engine) dispatch(p *core.Payload) {
	defer func() {
		p.DropRefs()
		p.Release()
	}()

	if v, ok := e.exact.Get(p.Topic.Key); ok {
		v.(core.HookLike).Invoke(p.Topic, p.Args, p.Kwargs)
	}

	if e.generic.Len() == 0 {
		return
	}
	e.generic.Each(func(_ string, v interface{}) bool {
		hook := v.(core.HookLike)
		if hook.TopicOf().Match(p.Topic).Matched {
			hook.Invoke(p.Topic, p.Args, p.Kwargs)
		}
		return true
	})
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
