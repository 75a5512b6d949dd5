// Package klog wires the kernel's ambient logging: github.com/joeycumines/logiface
// as the structured-logging facade, with github.com/joeycumines/izerolog
// (logiface's zerolog backend) as the default sink.
package klog

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type every subsystem is handed. logiface's
// generic Logger[E] is narrowed to the non-generic Logger[logiface.Event]
// via (*Logger[E]).Logger(), per the facade's own convention.
type Logger = logiface.Logger[logiface.Event]

// New builds a Logger writing structured JSON lines to w, at the given
// level. Passing a nil w defaults to os.Stderr.
func New(w io.Writer, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.WithZerolog(zl),
		izerolog.L.WithLevel(level),
	).Logger()
}

// Default builds a Logger at LevelInformational writing to os.Stderr, the
// level used when the kernel is run without explicit verbosity flags.
func Default() *Logger {
	return New(os.Stderr, logiface.LevelInformational)
}

// Nop returns a Logger with logging disabled, for use in tests that don't
// want to assert on log output.
func Nop() *Logger {
	return New(io.Discard, logiface.LevelDisabled)
}
