package loom

import (
	"github.com/rs/zerolog"
)

// AppOption augments how the App is assembled.
type AppOption func(*App)

// WithLogger replaces the logger built from AppConfig. Tests use it to
// silence output or capture it.
func WithLogger(logger zerolog.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
		a.customLogger = true
	}
}

// WithConfig skips the environment and uses cfg as-is.
func WithConfig(cfg AppConfig) AppOption {
	return func(a *App) {
		a.cfg = cfg
		a.customConfig = true
	}
}

// WithEntityCapacity bounds the entity table. Creating entities past the
// bound fails with ErrStoreFull.
func WithEntityCapacity(n int) AppOption {
	return func(a *App) {
		a.entityCapacity = n
	}
}
