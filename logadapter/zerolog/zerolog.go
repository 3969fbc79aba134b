// Package zerolog adapts github.com/rs/zerolog to core.Logger, so
// callers who want structured, leveled logging can wire it into an
// Engine without the core packages ever importing zerolog directly.
package zerolog

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/uniyakcom/eventengine/core"
)

// Logger implements core.Logger on top of a zerolog.Logger.
type Logger struct {
	base zerolog.Logger
}

// New wraps base.
func New(base zerolog.Logger) *Logger {
	return &Logger{base: base}
}

// NewStdout builds a Logger writing to stdout with the given component
// name attached to every record, for the common zero-config case.
func NewStdout(component string) *Logger {
	base := zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger()
	return New(base)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.base.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.base.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.base.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.base.Error().Msgf(format, args...)
}

func (l *Logger) Info(message string) {
	l.base.Info().Msg(message)
}

var _ core.Logger = (*Logger)(nil)
