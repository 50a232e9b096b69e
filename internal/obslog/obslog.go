// Package obslog wraps go.uber.org/zap into the structured logger every
// meshlink package logs through, following RoseWrightdev-Video-
// Conferencing's logging package: a package-level default plus an
// explicit override hook for embedding applications.
package obslog

import "go.uber.org/zap"

var defaultLogger = zap.NewNop()

// SetDefault overrides the logger every New() call without an explicit
// logger falls back to. Passing nil resets to a no-op logger.
func SetDefault(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	defaultLogger = l
}

// New returns l if non-nil, otherwise the current default logger, named for
// the calling component (e.g. "room_membership", "peer_session").
func New(l *zap.Logger, component string) *zap.Logger {
	if l == nil {
		l = defaultLogger
	}
	return l.Named(component)
}

// NewProduction builds a production zap.Logger, matching the encoder
// settings RoseWrightdev-Video-Conferencing uses for non-development builds.
func NewProduction() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// NewDevelopment builds a human-readable, colorized development logger.
func NewDevelopment() (*zap.Logger, error) {
	return zap.NewDevelopment()
}
