// Package engine defines the capability interface a backend TTS engine
// exposes to the gateway. The dispatcher treats every engine as a black
// box reached through this interface; new engines are added by registering
// another implementation, without touching the dispatcher.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Request carries the synthesis parameters forwarded to a backend engine.
type Request struct {
	Text     string
	Voice    string
	Format   string
	Language string
	Speed    float64
}

// Result is the backend's answer. Payload is the engine's output document,
// opaque to the gateway: inline audio, a storage reference, or whatever the
// engine returns.
type Result struct {
	Payload json.RawMessage
}

// Engine is a named backend TTS implementation.
//
// Implementations must be safe for concurrent use; the gateway issues
// calls from many requests at once.
type Engine interface {
	// Name returns the engine identifier (e.g. "kokkoro").
	Name() string

	// Synthesize performs one backend call. The context carries the
	// per-attempt deadline and caller cancellation.
	Synthesize(ctx context.Context, req *Request) (*Result, error)

	// Close releases engine resources.
	Close() error
}

// BackendError describes a failed backend call. Transient failures
// (network errors, 5xx, backend rate limiting) may be retried by the
// dispatcher; permanent ones are surfaced after a single attempt.
type BackendError struct {
	Engine    string
	Status    int // HTTP status, 0 for network-level failures
	Message   string
	Transient bool
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("engine %s: backend returned HTTP %d: %s", e.Engine, e.Status, e.Message)
	}
	return fmt.Sprintf("engine %s: %s", e.Engine, e.Message)
}

// IsTransient reports whether err is a backend failure worth retrying.
func IsTransient(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Transient
	}
	return false
}
