package eventengine

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/uniyakcom/eventengine/core"
)

// defaultCapacity, defaultMaxSpin and defaultTimeoutS mirror spec §6's
// engine configuration defaults.
const (
	defaultCapacity = 4095
	defaultMaxSpin  = 65535
	defaultTimeoutS = 0.0
)

// EngineOptions configures a new Engine. Build one with NewEngineOptions
// and a series of Option values, in the functional-options style used
// throughout this corpus (coregx-pubsub's Option/PublisherOption).
type EngineOptions struct {
	Capacity  int
	Logger    core.Logger
	MaxSpin   int
	TimeoutS  float64
}

// Validate checks the options against ozzo-validation rules, catching a
// bad capacity or max_spin at construction time rather than at first
// publish.
func (o EngineOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&o.MaxSpin, validation.Min(0)),
		validation.Field(&o.TimeoutS, validation.Min(0.0)),
	)
}

// Option mutates an EngineOptions under construction.
type Option func(*EngineOptions)

// WithCapacity sets the queue's usable depth (default 4095).
func WithCapacity(capacity int) Option {
	return func(o *EngineOptions) { o.Capacity = capacity }
}

// WithLogger sets the engine's logger (default core.NoopLogger{}).
func WithLogger(logger core.Logger) Option {
	return func(o *EngineOptions) { o.Logger = logger }
}

// WithMaxSpin sets the hybrid queue's spin-iteration budget before
// falling back to a timed wait (default 65535).
func WithMaxSpin(maxSpin int) Option {
	return func(o *EngineOptions) { o.MaxSpin = maxSpin }
}

// WithTimeoutS sets the default publish/get timeout in seconds; 0 means
// wait indefinitely (default 0.0).
func WithTimeoutS(timeoutS float64) Option {
	return func(o *EngineOptions) { o.TimeoutS = timeoutS }
}

// NewEngineOptions builds a validated EngineOptions from defaults plus
// opts, applied in order.
func NewEngineOptions(opts ...Option) (EngineOptions, error) {
	o := EngineOptions{
		Capacity: defaultCapacity,
		Logger:   core.NoopLogger{},
		MaxSpin:  defaultMaxSpin,
		TimeoutS: defaultTimeoutS,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = core.NoopLogger{}
	}
	if err := o.Validate(); err != nil {
		return EngineOptions{}, core.NewErrorWithCause(core.ErrCodeConfiguration, "invalid engine options", err)
	}
	return o, nil
}
