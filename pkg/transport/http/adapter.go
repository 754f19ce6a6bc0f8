// Package http serves the gateway API over HTTP. The adapter decodes the
// invocation envelope, hands it to the dispatcher, and serializes the
// result; the server wraps it with middleware and lifecycle management.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/voxgate/voxgate/pkg/api"
	"github.com/voxgate/voxgate/pkg/transport"
)

// Handler processes one decoded request envelope. *dispatch.Dispatcher
// satisfies this.
type Handler interface {
	Handle(ctx context.Context, in *api.Input) (any, *api.APIError)
	Health() api.HealthResponse
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// Adapter routes HTTP requests to the dispatcher. POST /run and
// POST /runsync are aliases for the invocation endpoint, kept so clients
// written for the serverless deployment keep working; POST / accepts the
// same envelope. GET /health serves the liveness report without a body.
type Adapter struct {
	handler Handler
	mux     *http.ServeMux
	config  Config
}

// NewAdapter creates an HTTP adapter serving the given handler.
func NewAdapter(h Handler, cfg Config) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		handler: h,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /run", a.handleInvoke)
	a.mux.HandleFunc("POST /runsync", a.handleInvoke)
	a.mux.HandleFunc("POST /{$}", a.handleInvoke)
	a.mux.HandleFunc("GET /health", a.handleHealth)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// handleInvoke handles a POST invocation carrying the request envelope.
func (a *Adapter) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteJSON(w, http.StatusUnsupportedMediaType,
				api.NewBadRequestError("content_type", "Content-Type must be application/json").Envelope())
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteJSON(w, http.StatusRequestEntityTooLarge,
				api.NewBadRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)).Envelope())
			return
		}
		transport.WriteError(w, api.NewBadRequestError("body", "invalid JSON: "+err.Error()))
		return
	}

	result, apiErr := a.handler.Handle(r.Context(), &req.Input)
	if apiErr != nil {
		transport.WriteError(w, apiErr)
		return
	}
	transport.WriteJSON(w, http.StatusOK, result)
}

// handleHealth handles GET /health. It is equivalent to posting the
// health action but needs no body, so orchestrators can probe it.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, a.handler.Health())
}
