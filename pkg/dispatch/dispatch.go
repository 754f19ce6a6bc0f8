// Package dispatch is the single entry point for gateway requests. It
// validates an inbound request, authenticates it when auth mode requires,
// resolves the target engine, performs the backend call with timeout and
// bounded retry, and normalizes the result into a response envelope.
//
// The dispatcher holds no per-request state and is safe for unlimited
// concurrent invocation; the registry and the token service it reads from
// are immutable after startup.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voxgate/voxgate/pkg/api"
	"github.com/voxgate/voxgate/pkg/debug"
	"github.com/voxgate/voxgate/pkg/engine"
	"github.com/voxgate/voxgate/pkg/observability"
	"github.com/voxgate/voxgate/pkg/registry"
	"github.com/voxgate/voxgate/pkg/token"
)

// Version is reported by the health action as gateway_version.
const Version = "1.0.0"

// Config holds the dispatcher configuration.
type Config struct {
	// AuthRequired makes synthesis and engine listing require a valid token.
	AuthRequired bool

	// RequestTimeout bounds a single backend attempt. Default: 300s.
	RequestTimeout time.Duration

	// MaxRetries is the total number of backend attempts. Default: 3.
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles per
	// attempt, capped at 30s. Default: 500ms.
	RetryBackoff time.Duration

	// RateLimitRPS throttles callers per user id. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 300 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst == 0 {
		c.RateLimitBurst = 5
	}
}

// Dispatcher routes gateway requests.
type Dispatcher struct {
	cfg     Config
	tokens  *token.Service // nil when the token service is not configured
	reg     *registry.Registry
	limiter *userLimiter // nil when rate limiting is disabled
	logger  *slog.Logger
}

// New creates a dispatcher. The token service may be nil when auth mode is
// off and generate_token is not needed.
func New(cfg Config, tokens *token.Service, reg *registry.Registry, logger *slog.Logger) *Dispatcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *userLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = newUserLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	return &Dispatcher{
		cfg:     cfg,
		tokens:  tokens,
		reg:     reg,
		limiter: limiter,
		logger:  logger,
	}
}

// Handle processes one request envelope and returns either a response
// value ready for JSON serialization or a structured error.
func (d *Dispatcher) Handle(ctx context.Context, in *api.Input) (any, *api.APIError) {
	debug.Log("dispatch", "handling request", "action", in.Action, "engine", in.Engine)
	switch in.Action {
	case api.ActionHealth:
		return d.Health(), nil
	case api.ActionGenerateToken:
		return d.generateToken(in)
	case api.ActionListEngines:
		return d.listEngines(in)
	case "":
		return d.synthesize(ctx, in)
	default:
		return nil, api.NewBadRequestError("action", "unknown action "+in.Action)
	}
}

// Health reports liveness, the auth mode in effect, and the gateway
// version. It is pure and never fails.
func (d *Dispatcher) Health() api.HealthResponse {
	return api.HealthResponse{
		Status:           "healthy",
		JWTAuthEnabled:   d.cfg.AuthRequired,
		GatewayVersion:   Version,
		AvailableEngines: d.reg.Names(),
	}
}

// generateToken mints a bearer token for the given user.
//
// This action is deliberately left unauthenticated to match the deployed
// system it replaces: anyone who can reach the gateway can mint a token.
// Gate the gateway itself, or put an operator credential in front of this
// action, before exposing it publicly.
func (d *Dispatcher) generateToken(in *api.Input) (any, *api.APIError) {
	if apiErr := api.ValidateGenerateToken(in); apiErr != nil {
		return nil, apiErr
	}
	if d.tokens == nil {
		return nil, api.NewInternalError("token service is not configured")
	}

	role := ""
	var permissions []string
	if in.UserData != nil {
		role = in.UserData.Role
		permissions = in.UserData.Permissions
	}

	signed, claims, err := d.tokens.Issue(in.UserID, role, permissions, 0)
	if err != nil {
		if errors.Is(err, token.ErrInvalidInput) {
			return nil, api.NewBadRequestError("user_id", "user_id is required")
		}
		d.logger.Error("token issuance failed", "error", err)
		return nil, api.NewInternalError("token issuance failed")
	}

	observability.TokensIssuedTotal.Inc()
	d.logger.Info("token issued", "user_id", claims.UserID, "role", claims.Role)

	return api.TokenResponse{
		Success:        true,
		Token:          signed,
		UserID:         claims.UserID,
		Role:           claims.Role,
		ExpiresInHours: claims.ExpiresAt.Sub(claims.IssuedAt.Time).Hours(),
		IssuedAt:       claims.IssuedAt.Format(time.RFC3339),
	}, nil
}

// listEngines returns the registered engines. It follows the synthesis
// auth rules: when auth mode is on, a valid token is required.
func (d *Dispatcher) listEngines(in *api.Input) (any, *api.APIError) {
	if _, apiErr := d.authenticate(in); apiErr != nil {
		return nil, apiErr
	}

	descs := d.reg.Descriptors()
	engines := make([]api.EngineInfo, 0, len(descs))
	for _, desc := range descs {
		engines = append(engines, api.EngineInfo{
			Name:         desc.Name,
			DisplayName:  desc.DisplayName,
			Formats:      desc.Formats,
			Voices:       desc.Voices,
			Languages:    desc.Languages,
			DefaultVoice: desc.DefaultVoice,
		})
	}

	return api.EngineListResponse{Success: true, Engines: engines}, nil
}

// synthesize handles a synthesis request end to end.
func (d *Dispatcher) synthesize(ctx context.Context, in *api.Input) (any, *api.APIError) {
	start := time.Now()

	if apiErr := api.ValidateSynthesis(in); apiErr != nil {
		return nil, apiErr
	}

	claims, apiErr := d.authenticate(in)
	if apiErr != nil {
		return nil, apiErr
	}

	userID := ""
	if claims != nil {
		userID = claims.UserID
	}

	if d.limiter != nil {
		key := userID
		if key == "" {
			key = "anonymous"
		}
		if !d.limiter.allow(key) {
			observability.RateLimitRejectedTotal.Inc()
			d.logger.Warn("rate limit exceeded", "user_id", key)
			return nil, api.NewRateLimitedError("rate limit exceeded, slow down")
		}
	}

	desc, eng, err := d.reg.Resolve(in.Engine)
	if err != nil {
		return nil, api.NewUnknownEngineError(in.Engine, d.reg.Names())
	}

	if !desc.SupportsFormat(in.Format) {
		return nil, api.NewBadRequestError("format",
			"engine "+desc.Name+" does not support format "+in.Format)
	}

	req := buildEngineRequest(in, desc)

	d.logger.Info("dispatching synthesis",
		"engine", desc.Name,
		"user_id", userID,
		"text_len", len(req.Text),
	)

	result, err := d.callWithRetry(ctx, eng, req)
	if err != nil {
		d.logger.Error("backend exhausted",
			"engine", desc.Name,
			"user_id", userID,
			"error", err,
		)
		return nil, api.NewBackendUnavailableError(
			"engine " + desc.Name + " unavailable: " + err.Error())
	}

	return api.SynthesisResponse{
		Success:        true,
		Payload:        result.Payload,
		Engine:         desc.Name,
		UserID:         userID,
		Format:         req.Format,
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

// authenticate enforces the auth mode on a request. It returns the decoded
// claims when a token was validated, nil when auth mode is off.
func (d *Dispatcher) authenticate(in *api.Input) (*token.Claims, *api.APIError) {
	if !d.cfg.AuthRequired {
		return nil, nil
	}

	if d.tokens == nil {
		// Config validation refuses this combination at startup; fail
		// closed if it happens anyway.
		return nil, api.NewInternalError("auth is required but no token service is configured")
	}

	if in.JWTToken == "" {
		observability.TokenValidationFailuresTotal.WithLabelValues("missing").Inc()
		return nil, api.NewUnauthenticatedError("authentication required: jwt_token is missing")
	}

	claims, err := d.tokens.Validate(in.JWTToken)
	if err != nil {
		return nil, d.mapTokenError(err)
	}

	return claims, nil
}

// mapTokenError converts token service sentinels into the API taxonomy,
// preserving the failure kind.
func (d *Dispatcher) mapTokenError(err error) *api.APIError {
	switch {
	case errors.Is(err, token.ErrExpired):
		observability.TokenValidationFailuresTotal.WithLabelValues("expired").Inc()
		return api.NewTokenExpiredError("token has expired")
	case errors.Is(err, token.ErrMalformed):
		observability.TokenValidationFailuresTotal.WithLabelValues("malformed").Inc()
		return api.NewTokenMalformedError("token is malformed")
	default:
		observability.TokenValidationFailuresTotal.WithLabelValues("signature").Inc()
		return api.NewUnauthenticatedError("token validation failed")
	}
}

// buildEngineRequest fills a backend request, applying the engine's
// default parameters where the caller left fields empty.
func buildEngineRequest(in *api.Input, desc registry.Descriptor) *engine.Request {
	voice := in.Voice
	if voice == "" {
		voice = desc.DefaultVoice
	}

	speed := in.Speed
	if speed == 0 {
		speed = 1.0
	}

	return &engine.Request{
		Text:     in.Text,
		Voice:    voice,
		Format:   in.Format,
		Language: in.Language,
		Speed:    speed,
	}
}
