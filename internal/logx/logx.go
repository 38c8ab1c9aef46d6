// Package logx provides the single shared logger construction used across
// every long-running component.
package logx

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console-friendly logger tagged with component, matching the
// donor's one-log-line-per-subsystem style but structured instead of
// Printf-formatted.
func New(component string) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Recover runs fn and logs+swallows any panic, the structured equivalent of
// the donor's bare `defer recover()` guard around every ticker body.
func Recover(log *zerolog.Logger, where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("where", where).Interface("panic", r).Msg("recovered panic in periodic task")
		}
	}()
	fn()
}
