package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxgate/voxgate/pkg/api"
	"github.com/voxgate/voxgate/pkg/engine"
	"github.com/voxgate/voxgate/pkg/registry"
	"github.com/voxgate/voxgate/pkg/token"
)

// fakeEngine is a scriptable backend: it fails transiently failures times,
// then succeeds. calls counts every Synthesize invocation.
type fakeEngine struct {
	name     string
	failures int
	calls    atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Synthesize(ctx context.Context, req *engine.Request) (*engine.Result, error) {
	n := f.calls.Add(1)
	if int(n) <= f.failures {
		return nil, &engine.BackendError{Engine: f.name, Status: 503, Message: "worker busy", Transient: true}
	}
	payload, _ := json.Marshal(map[string]string{"audio_base64": "UklGRg==", "voice": req.Voice})
	return &engine.Result{Payload: payload}, nil
}

func (f *fakeEngine) Close() error { return nil }

// testHarness bundles a dispatcher with its backend stub and token service.
type testHarness struct {
	dispatcher *Dispatcher
	backend    *fakeEngine
	tokens     *token.Service
}

func newTestHarness(t *testing.T, override func(*Config), backendFailures int) *testHarness {
	t.Helper()

	tokens, err := token.New(token.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}

	backend := &fakeEngine{name: "kokkoro", failures: backendFailures}

	reg := registry.New()
	if err := reg.Register(registry.Descriptor{
		Name:         "kokkoro",
		Formats:      []string{"wav", "mp3"},
		DefaultVoice: "af_sarah",
	}, backend); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(registry.Descriptor{Name: "chatterbox"}, &fakeEngine{name: "chatterbox"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg := Config{
		AuthRequired:   true,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     3,
		RetryBackoff:   time.Millisecond,
	}
	if override != nil {
		override(&cfg)
	}

	return &testHarness{
		dispatcher: New(cfg, tokens, reg, nil),
		backend:    backend,
		tokens:     tokens,
	}
}

// issueToken mints a token for tests that need a valid credential.
func (h *testHarness) issueToken(t *testing.T, userID string) string {
	t.Helper()

	signed, _, err := h.tokens.Issue(userID, "user", nil, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return signed
}

func TestHandle_TokenThenSynthesis(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	// generate_token for alice.
	res, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		Action: api.ActionGenerateToken,
		UserID: "alice",
	})
	if apiErr != nil {
		t.Fatalf("generate_token: %v", apiErr)
	}
	tokenResp, ok := res.(api.TokenResponse)
	if !ok {
		t.Fatalf("response = %T, want TokenResponse", res)
	}
	if !tokenResp.Success || tokenResp.Token == "" {
		t.Fatalf("TokenResponse = %+v, want success with token", tokenResp)
	}
	if tokenResp.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", tokenResp.UserID)
	}
	if tokenResp.ExpiresInHours != 24 {
		t.Errorf("ExpiresInHours = %v, want 24", tokenResp.ExpiresInHours)
	}

	// Use the minted token for synthesis.
	res, apiErr = h.dispatcher.Handle(context.Background(), &api.Input{
		JWTToken: tokenResp.Token,
		Text:     "Hello",
		Engine:   "kokkoro",
	})
	if apiErr != nil {
		t.Fatalf("synthesis: %v", apiErr)
	}
	synth, ok := res.(api.SynthesisResponse)
	if !ok {
		t.Fatalf("response = %T, want SynthesisResponse", res)
	}
	if !synth.Success {
		t.Error("Success = false, want true")
	}
	if synth.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", synth.UserID)
	}
	if synth.Engine != "kokkoro" {
		t.Errorf("Engine = %q, want kokkoro", synth.Engine)
	}
	if synth.ProcessingTime < 0 {
		t.Errorf("ProcessingTime = %v, want >= 0", synth.ProcessingTime)
	}
	if !strings.Contains(string(synth.Payload), "audio_base64") {
		t.Errorf("Payload = %s, want backend output", synth.Payload)
	}
}

func TestHandle_MissingTokenShortCircuits(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		Text:   "Hello",
		Engine: "kokkoro",
	})
	if apiErr == nil {
		t.Fatal("Handle = nil error, want unauthenticated")
	}
	if apiErr.Type != api.ErrorTypeUnauthenticated {
		t.Errorf("Type = %q, want unauthenticated", apiErr.Type)
	}
	if !strings.Contains(apiErr.Message, "auth") {
		t.Errorf("Message = %q, want authentication-related text", apiErr.Message)
	}
	if got := h.backend.calls.Load(); got != 0 {
		t.Errorf("backend calls = %d, want 0 (no call before auth)", got)
	}
}

func TestHandle_ExpiredToken(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	signed, _, err := h.tokens.Issue("alice", "user", nil, time.Nanosecond)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		JWTToken: signed,
		Text:     "Hello",
		Engine:   "kokkoro",
	})
	if apiErr == nil || apiErr.Type != api.ErrorTypeTokenExpired {
		t.Fatalf("error = %v, want token_expired", apiErr)
	}
	if got := h.backend.calls.Load(); got != 0 {
		t.Errorf("backend calls = %d, want 0", got)
	}
}

func TestHandle_MalformedToken(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		JWTToken: "invalid.jwt.token",
		Text:     "Hello",
		Engine:   "kokkoro",
	})
	if apiErr == nil || apiErr.Type != api.ErrorTypeTokenMalformed {
		t.Fatalf("error = %v, want token_malformed", apiErr)
	}
}

func TestHandle_UnknownEngine(t *testing.T) {
	h := newTestHarness(t, nil, 0)
	tok := h.issueToken(t, "alice")

	for range 2 {
		_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
			JWTToken: tok,
			Text:     "Hello",
			Engine:   "nonexistent-engine",
		})
		if apiErr == nil || apiErr.Type != api.ErrorTypeUnknownEngine {
			t.Fatalf("error = %v, want unknown_engine", apiErr)
		}
		if !strings.Contains(apiErr.Message, "kokkoro") {
			t.Errorf("Message = %q, want available engine names", apiErr.Message)
		}
	}
}

func TestHandle_BadRequest(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	cases := []struct {
		name string
		in   *api.Input
	}{
		{"missing text", &api.Input{Engine: "kokkoro"}},
		{"missing engine", &api.Input{Text: "Hello"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, apiErr := h.dispatcher.Handle(context.Background(), tc.in)
			if apiErr == nil || apiErr.Type != api.ErrorTypeBadRequest {
				t.Fatalf("error = %v, want bad_request", apiErr)
			}
			if got := h.backend.calls.Load(); got != 0 {
				t.Errorf("backend calls = %d, want 0", got)
			}
		})
	}
}

func TestHandle_UnsupportedFormat(t *testing.T) {
	h := newTestHarness(t, nil, 0)
	tok := h.issueToken(t, "alice")

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		JWTToken: tok,
		Text:     "Hello",
		Engine:   "kokkoro",
		Format:   "ogg",
	})
	if apiErr == nil || apiErr.Type != api.ErrorTypeBadRequest {
		t.Fatalf("error = %v, want bad_request for unsupported format", apiErr)
	}
}

func TestHandle_DefaultVoiceApplied(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.AuthRequired = false }, 0)

	res, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		Text:   "Hello",
		Engine: "kokkoro",
	})
	if apiErr != nil {
		t.Fatalf("Handle: %v", apiErr)
	}
	synth := res.(api.SynthesisResponse)
	if !strings.Contains(string(synth.Payload), "af_sarah") {
		t.Errorf("Payload = %s, want descriptor default voice forwarded", synth.Payload)
	}
	// No auth: user_id stays empty.
	if synth.UserID != "" {
		t.Errorf("UserID = %q, want empty without auth", synth.UserID)
	}
}

func TestHandle_AuthDisabledIgnoresToken(t *testing.T) {
	h := newTestHarness(t, func(c *Config) { c.AuthRequired = false }, 0)

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		Text:   "Hello",
		Engine: "kokkoro",
	})
	if apiErr != nil {
		t.Fatalf("Handle without token = %v, want nil when auth off", apiErr)
	}
}

func TestHandle_Health(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	// Health requires no token, auth enabled or not.
	res, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{Action: api.ActionHealth})
	if apiErr != nil {
		t.Fatalf("health: %v", apiErr)
	}
	health := res.(api.HealthResponse)
	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if !health.JWTAuthEnabled {
		t.Error("JWTAuthEnabled = false, want true")
	}
	if health.GatewayVersion != Version {
		t.Errorf("GatewayVersion = %q, want %q", health.GatewayVersion, Version)
	}
	if len(health.AvailableEngines) != 2 {
		t.Errorf("AvailableEngines = %v, want both engines", health.AvailableEngines)
	}

	off := newTestHarness(t, func(c *Config) { c.AuthRequired = false }, 0)
	res, _ = off.dispatcher.Handle(context.Background(), &api.Input{Action: api.ActionHealth})
	if res.(api.HealthResponse).JWTAuthEnabled {
		t.Error("JWTAuthEnabled = true, want false when auth off")
	}
}

func TestHandle_ListEngines(t *testing.T) {
	h := newTestHarness(t, nil, 0)
	tok := h.issueToken(t, "alice")

	res, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		Action:   api.ActionListEngines,
		JWTToken: tok,
	})
	if apiErr != nil {
		t.Fatalf("list_engines: %v", apiErr)
	}
	list := res.(api.EngineListResponse)
	if len(list.Engines) != 2 {
		t.Fatalf("Engines = %v, want 2", list.Engines)
	}
	if list.Engines[1].DefaultVoice != "af_sarah" {
		t.Errorf("kokkoro DefaultVoice = %q, want af_sarah", list.Engines[1].DefaultVoice)
	}

	// Listing follows synthesis auth rules.
	if _, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{Action: api.ActionListEngines}); apiErr == nil {
		t.Error("list_engines without token = nil error, want unauthenticated")
	}
}

func TestHandle_GenerateTokenValidation(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{Action: api.ActionGenerateToken})
	if apiErr == nil || apiErr.Type != api.ErrorTypeBadRequest {
		t.Fatalf("error = %v, want bad_request for missing user_id", apiErr)
	}
}

func TestHandle_GenerateTokenWithUserData(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	res, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{
		Action:   api.ActionGenerateToken,
		UserID:   "ops",
		UserData: &api.UserData{Role: "admin", Permissions: []string{"tts", "manage"}},
	})
	if apiErr != nil {
		t.Fatalf("generate_token: %v", apiErr)
	}
	tokenResp := res.(api.TokenResponse)
	if tokenResp.Role != "admin" {
		t.Errorf("Role = %q, want admin", tokenResp.Role)
	}

	claims, err := h.tokens.Validate(tokenResp.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(claims.Permissions) != 2 {
		t.Errorf("Permissions = %v, want both carried", claims.Permissions)
	}
}

func TestHandle_UnknownAction(t *testing.T) {
	h := newTestHarness(t, nil, 0)

	_, apiErr := h.dispatcher.Handle(context.Background(), &api.Input{Action: "reboot"})
	if apiErr == nil || apiErr.Type != api.ErrorTypeBadRequest {
		t.Fatalf("error = %v, want bad_request for unknown action", apiErr)
	}
}

func TestHandle_RateLimit(t *testing.T) {
	h := newTestHarness(t, func(c *Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 2
	}, 0)
	tok := h.issueToken(t, "alice")

	in := &api.Input{JWTToken: tok, Text: "Hello", Engine: "kokkoro"}
	for i := range 2 {
		if _, apiErr := h.dispatcher.Handle(context.Background(), in); apiErr != nil {
			t.Fatalf("request %d: %v", i, apiErr)
		}
	}

	_, apiErr := h.dispatcher.Handle(context.Background(), in)
	if apiErr == nil || apiErr.Type != api.ErrorTypeRateLimited {
		t.Fatalf("error = %v, want rate_limited after burst", apiErr)
	}
}
