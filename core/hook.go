package core

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrUnexpectedTopicArg is the Go-idiomatic stand-in for the source
// implementation's "unexpected keyword argument 'topic'" TypeError: a
// with-topic handler that cannot accept the injected topic value returns
// this (or wraps it) to signal that. See Hook.retryOnUnexpectedTopic.
var ErrUnexpectedTopicArg = NewError("UNEXPECTED_TOPIC_ARG", "handler does not accept a topic argument")

// NoTopicFunc is a handler that never sees the topic it was invoked for.
type NoTopicFunc func(args, kwargs interface{}) error

// WithTopicFunc is a handler that receives the topic it was invoked for,
// bound into kwargs as described in §4.5.
type WithTopicFunc func(topic *Topic, args, kwargs interface{}) error

// Handler is a registered callback, classified at registration time (not
// dispatch time) into one of two calling conventions — see §9's
// "Handler polymorphism" note. Construct with NewHandler or
// NewHandlerWithTopic.
type Handler struct {
	id            uintptr
	withTopic     bool
	callNoTopic   NoTopicFunc
	callWithTopic WithTopicFunc
}

// NewHandler registers fn as a no-topic handler.
func NewHandler(fn NoTopicFunc) Handler {
	return Handler{id: funcID(fn), callNoTopic: fn}
}

// NewHandlerWithTopic registers fn as a with-topic handler.
func NewHandlerWithTopic(fn WithTopicFunc) Handler {
	return Handler{id: funcID(fn), withTopic: true, callWithTopic: fn}
}

// funcID returns a stable identity for a func value, used for
// deduplication and removal. The identity is the func's code pointer:
// two Handlers built from the same func/method value compare equal, and
// handlers built from different functions or function literals never
// do. Closures created from the same function literal share one code
// pointer, so they compare equal even when they capture different
// values.
func funcID(fn interface{}) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// ID exposes the handler's identity, useful as a HookStats map key.
func (h Handler) ID() uintptr { return h.id }

// WithTopic reports whether h is a with-topic handler.
func (h Handler) WithTopic() bool { return h.withTopic }

// HookStats accumulates per-handler call count and cumulative wall time,
// maintained by HookEx.
type HookStats struct {
	Calls        uint64
	TotalTimeS   float64
}

// HookOptions configures a Hook. Logger defaults to NoopLogger{};
// RetryOnUnexpectedTopic defaults to false.
type HookOptions struct {
	Logger                 Logger
	RetryOnUnexpectedTopic bool
}

// HookOption mutates a HookOptions in the functional-options style used
// throughout this module (see coregx-pubsub's Option/PublisherOption).
type HookOption func(*HookOptions)

// WithHookLogger sets the hook's logger.
func WithHookLogger(l Logger) HookOption {
	return func(o *HookOptions) { o.Logger = l }
}

// WithRetryOnUnexpectedTopic enables the retry-without-topic footgun
// documented in §4.5/§9. Off by default: a with-topic handler that
// itself raises an unrelated error matching ErrUnexpectedTopicArg will
// be invoked twice if enabled.
func WithRetryOnUnexpectedTopic(enabled bool) HookOption {
	return func(o *HookOptions) { o.RetryOnUnexpectedTopic = enabled }
}

// Validate checks o against ozzo-validation rules, the same way
// EngineOptions is checked before an Engine is constructed.
func (o HookOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Logger, validation.Required),
	)
}

// HookLike is the interface the engine's KeyMaps store values as, so
// Hook and HookEx are interchangeable from the engine's point of view.
type HookLike interface {
	TopicOf() *Topic
	AddHandler(h Handler, deduplicate bool) bool
	RemoveHandler(h Handler) bool
	IsEmpty() bool
	Clear()
	Invoke(topic *Topic, args, kwargs interface{})
}

// Hook is the ordered binding from one topic to its handlers. Handlers
// are grouped by calling convention; §4.5/§5 require every no-topic
// handler to fire, in registration order, before any with-topic handler.
type Hook struct {
	mu       sync.Mutex
	topic    *Topic
	noTopic  []Handler
	withTopic []Handler

	logger                 Logger
	retryOnUnexpectedTopic bool
}

// NewHook creates an empty Hook bound to topic. Returns an *Error with
// Code ErrCodeConfiguration if opts fail HookOptions.Validate.
func NewHook(topic *Topic, opts ...HookOption) (*Hook, error) {
	o := HookOptions{Logger: NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, "invalid hook options", err)
	}
	return &Hook{
		topic:                  topic,
		logger:                 o.Logger,
		retryOnUnexpectedTopic: o.RetryOnUnexpectedTopic,
	}, nil
}

// TopicOf returns the topic this hook is bound to.
func (h *Hook) TopicOf() *Topic { return h.topic }

// AddHandler appends h to the appropriate group. If deduplicate is true
// and a handler with the same identity is already present, it is
// skipped and AddHandler returns false; a caller that wants the
// duplicate-registration-attempt log record described in §6 should log
// when AddHandler returns false.
func (h *Hook) AddHandler(handler Handler, deduplicate bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	group := &h.noTopic
	if handler.withTopic {
		group = &h.withTopic
	}

	if deduplicate {
		for _, existing := range *group {
			if existing.id == handler.id {
				return false
			}
		}
	}
	*group = append(*group, handler)
	return true
}

// RemoveHandler removes the first occurrence of handler from either
// group. No-op, returns false, if handler isn't present.
func (h *Hook) RemoveHandler(handler Handler) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if removeFirst(&h.noTopic, handler.id) {
		return true
	}
	return removeFirst(&h.withTopic, handler.id)
}

func removeFirst(group *[]Handler, id uintptr) bool {
	for i, existing := range *group {
		if existing.id == id {
			*group = append((*group)[:i], (*group)[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every handler.
func (h *Hook) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.noTopic = nil
	h.withTopic = nil
}

// IsEmpty reports whether the hook has no handlers left.
func (h *Hook) IsEmpty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.noTopic) == 0 && len(h.withTopic) == 0
}

// Invoke runs every no-topic handler, in order, then every with-topic
// handler, in order, for a message that dispatched to topic. Each call
// is wrapped so a handler panic or error is caught, formatted, and
// logged — it never reaches the dispatcher.
func (h *Hook) Invoke(topic *Topic, args, kwargs interface{}) {
	h.InvokeWithObserver(topic, args, kwargs, nil)
}

// InvokeWithObserver is Invoke plus a per-call callback — observer, when
// non-nil, is called once per handler with its id and the call's wall
// time. HookEx uses this to maintain HookStats without duplicating the
// dispatch loop.
func (h *Hook) InvokeWithObserver(topic *Topic, args, kwargs interface{}, observer func(id uintptr, d time.Duration)) {
	h.mu.Lock()
	noTopic := append([]Handler(nil), h.noTopic...)
	withTopic := append([]Handler(nil), h.withTopic...)
	retry := h.retryOnUnexpectedTopic
	logger := h.logger
	h.mu.Unlock()

	for _, handler := range noTopic {
		h.invokeOne(handler, topic, args, kwargs, retry, logger, observer)
	}
	for _, handler := range withTopic {
		h.invokeOne(handler, topic, args, kwargs, retry, logger, observer)
	}
}

func (h *Hook) invokeOne(handler Handler, topic *Topic, args, kwargs interface{}, retry bool, logger Logger, observer func(uintptr, time.Duration)) {
	start := time.Now()
	err := h.call(handler, topic, args, kwargs, retry)
	if observer != nil {
		observer(handler.id, time.Since(start))
	}
	if err != nil {
		logger.Errorf("eventengine: handler fault on topic %q: %v", topic.Literal, err)
	}
}

// call performs the panic-isolated invocation described in §4.5/§9.
// For a with-topic handler whose first attempt fails with
// ErrUnexpectedTopicArg and retry enabled, it retries once without the
// injected topic key.
//
// footgun: if the handler's own body raises an unrelated error that also
// unwraps to ErrUnexpectedTopicArg, this retries and runs the handler's
// side effects twice. This is the documented behavior in spec §9, kept
// intentionally rather than "fixed".
func (h *Hook) call(handler Handler, topic *Topic, args, kwargs interface{}, retry bool) (callErr error) {
	defer func() {
		if r := recover(); r != nil {
			callErr = NewErrorWithCause(ErrCodeHandlerFault, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()), nil)
		}
	}()

	if !handler.withTopic {
		return handler.callNoTopic(args, kwargs)
	}

	withTopicKwargs, injected := KwargsWithTopic(kwargs, topic)
	err := handler.callWithTopic(topic, args, withTopicKwargs)
	if err == nil || !injected || !retry {
		return err
	}
	if !isUnexpectedTopicArg(err) {
		return err
	}
	return handler.callWithTopic(topic, args, KwargsWithoutTopic(kwargs))
}

func isUnexpectedTopicArg(err error) bool {
	for err != nil {
		if err == ErrUnexpectedTopicArg { //nolint:errorlint // identity check intentional; Is() mirrors this
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// HookEx extends Hook with per-handler call counts and cumulative wall
// time, per §4.5.
type HookEx struct {
	*Hook

	mu    sync.Mutex
	stats map[uintptr]*HookStats
}

// NewHookEx creates an empty HookEx bound to topic. Returns an *Error
// with Code ErrCodeConfiguration if opts fail HookOptions.Validate.
func NewHookEx(topic *Topic, opts ...HookOption) (*HookEx, error) {
	h, err := NewHook(topic, opts...)
	if err != nil {
		return nil, err
	}
	return &HookEx{Hook: h, stats: make(map[uintptr]*HookStats)}, nil
}

// AddHandler forwards to Hook.AddHandler and, on success, seeds the
// handler's stats entry.
func (h *HookEx) AddHandler(handler Handler, deduplicate bool) bool {
	added := h.Hook.AddHandler(handler, deduplicate)
	if added {
		h.mu.Lock()
		if _, ok := h.stats[handler.id]; !ok {
			h.stats[handler.id] = &HookStats{}
		}
		h.mu.Unlock()
	}
	return added
}

// RemoveHandler forwards to Hook.RemoveHandler and, on success, drops
// the handler's stats entry.
func (h *HookEx) RemoveHandler(handler Handler) bool {
	removed := h.Hook.RemoveHandler(handler)
	if removed {
		h.mu.Lock()
		delete(h.stats, handler.id)
		h.mu.Unlock()
	}
	return removed
}

// Clear forwards to Hook.Clear and drops all stats.
func (h *HookEx) Clear() {
	h.Hook.Clear()
	h.mu.Lock()
	h.stats = make(map[uintptr]*HookStats)
	h.mu.Unlock()
}

// Invoke times each handler call and updates its HookStats entry.
func (h *HookEx) Invoke(topic *Topic, args, kwargs interface{}) {
	h.Hook.InvokeWithObserver(topic, args, kwargs, func(id uintptr, d time.Duration) {
		h.mu.Lock()
		s, ok := h.stats[id]
		if !ok {
			s = &HookStats{}
			h.stats[id] = s
		}
		s.Calls++
		s.TotalTimeS += d.Seconds()
		h.mu.Unlock()
	})
}

// Stats returns a snapshot copy of the per-handler statistics.
func (h *HookEx) Stats() map[uintptr]HookStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[uintptr]HookStats, len(h.stats))
	for id, s := range h.stats {
		out[id] = *s
	}
	return out
}
