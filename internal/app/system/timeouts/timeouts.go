// Package timeouts provides centralized timeout values for handler operations.
//
// These timeouts are used with context.WithTimeout for calls to the CHIP
// backend, MongoDB audit writes and health probes. Every backend call gets
// exactly one attempt bounded by one of these deadlines; nothing retries.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: single-document audit writes and lookups
//   - Backend: one request to the CHIP REST backend (list, login, OTP)
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing    = 2 * time.Second
	DefaultShort   = 5 * time.Second
	DefaultBackend = 10 * time.Second
)

var mu sync.RWMutex

var (
	ping    = DefaultPing
	short   = DefaultShort
	backend = DefaultBackend
)

// Ping returns the timeout for health checks and connectivity verification.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for simple MongoDB operations like audit inserts.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Backend returns the deadline for a single CHIP backend request.
func Backend() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping    time.Duration
	Short   time.Duration
	Backend time.Duration
}

// Configure sets custom timeout values. Zero values in the config are ignored,
// keeping the current (or default) values. Call it during startup before
// handlers are registered.
//
// Example:
//
//	timeouts.Configure(timeouts.Config{
//	    Backend: 15 * time.Second,
//	})
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Backend > 0 {
		backend = cfg.Backend
	}
}

// Reset restores all timeouts to their default values.
// Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	backend = DefaultBackend
}

// Current returns the current timeout configuration as a Config struct.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:    ping,
		Short:   short,
		Backend: backend,
	}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context was canceled due to deadline exceeded.
//
// Example:
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Backend(), h.Log, "list districts")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
