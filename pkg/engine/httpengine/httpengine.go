// Package httpengine implements engine.Engine over HTTP for serverless
// TTS backends that accept the {"input": {...}} invocation envelope.
package httpengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voxgate/voxgate/pkg/debug"
	"github.com/voxgate/voxgate/pkg/engine"
)

// Config holds the HTTP engine configuration.
type Config struct {
	// Name is the engine identifier used in logs, metrics, and errors.
	Name string

	// URL is the invocation target the synthesis payload is POSTed to.
	URL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Timeout bounds a single backend call when the caller's context does
	// not carry a tighter deadline. Default: 300s.
	Timeout time.Duration

	// HTTPClient allows injecting a custom client (useful for testing).
	HTTPClient *http.Client
}

// HTTPEngine calls a single remote TTS backend.
type HTTPEngine struct {
	cfg    Config
	client *http.Client
}

// Ensure HTTPEngine implements engine.Engine at compile time.
var _ engine.Engine = (*HTTPEngine)(nil)

// New creates an HTTP engine. The URL is required.
func New(cfg Config) (*HTTPEngine, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("httpengine: Name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("httpengine: URL is required for engine %q", cfg.Name)
	}

	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPEngine{cfg: cfg, client: client}, nil
}

// synthesisPayload is the inner input object sent to the backend.
type synthesisPayload struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Format   string  `json:"format,omitempty"`
	Language string  `json:"language,omitempty"`
}

// invocationEnvelope wraps the payload the way the serverless runtime expects.
type invocationEnvelope struct {
	Input synthesisPayload `json:"input"`
}

// backendResponse is the backend's answer. Engines return either an output
// document or an error string, never both.
type backendResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Name returns the engine identifier.
func (e *HTTPEngine) Name() string {
	return e.cfg.Name
}

// Synthesize performs one backend call.
func (e *HTTPEngine) Synthesize(ctx context.Context, req *engine.Request) (*engine.Result, error) {
	body, err := json.Marshal(invocationEnvelope{Input: synthesisPayload{
		Text:     req.Text,
		Voice:    req.Voice,
		Speed:    req.Speed,
		Format:   req.Format,
		Language: req.Language,
	}})
	if err != nil {
		return nil, fmt.Errorf("httpengine: marshal request: %w", err)
	}

	debug.Log("engine", "backend call", "engine", e.cfg.Name, "url", e.cfg.URL, "text_len", len(req.Text))
	if debug.TraceIsEnabled("engine") {
		debug.Raw("engine", string(body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpengine: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, e.mapNetworkError(ctx, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, e.mapHTTPError(httpResp)
	}

	var resp backendResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, e.permanentError(httpResp.StatusCode, fmt.Sprintf("unparseable backend response: %s", err))
	}
	if resp.Error != "" {
		return nil, e.permanentError(httpResp.StatusCode, resp.Error)
	}
	if len(resp.Output) == 0 {
		return nil, e.permanentError(httpResp.StatusCode, "backend returned neither output nor error")
	}

	debug.Log("engine", "backend response", "engine", e.cfg.Name, "output_len", len(resp.Output))
	return &engine.Result{Payload: resp.Output}, nil
}

// Close releases idle connections.
func (e *HTTPEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
