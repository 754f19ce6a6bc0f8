package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/voxgate/voxgate/pkg/api"
)

func TestHealthEndpoint(t *testing.T) {
	resp, err := http.Get(testEnv.Gateway.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", out.Status)
	}
	if !out.JWTAuthEnabled {
		t.Error("JWTAuthEnabled = false, want true")
	}
	if len(out.AvailableEngines) != 1 || out.AvailableEngines[0] != "kokkoro" {
		t.Errorf("AvailableEngines = %v, want [kokkoro]", out.AvailableEngines)
	}
}

func TestHealthAction(t *testing.T) {
	resp, data := post(t, api.Input{Action: api.ActionHealth})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var out api.HealthResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", out.Status)
	}
}

func TestTokenSynthesisFlow(t *testing.T) {
	tok := mintToken(t, "alice")

	resp, data := post(t, api.Input{
		JWTToken: tok,
		Text:     "Good evening, commander.",
		Engine:   "kokkoro",
		Format:   "wav",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("synthesis status = %d: %s", resp.StatusCode, data)
	}

	var out api.SynthesisResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success {
		t.Error("Success = false, want true")
	}
	if out.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", out.UserID)
	}
	if out.Engine != "kokkoro" {
		t.Errorf("Engine = %q, want kokkoro", out.Engine)
	}

	var payload struct {
		AudioBase64 string `json:"audio_base64"`
		Voice       string `json:"voice"`
	}
	if err := json.Unmarshal(out.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.AudioBase64 == "" {
		t.Error("payload carries no audio")
	}
	// Descriptor default voice must have been forwarded to the backend.
	if payload.Voice != "af_sarah" {
		t.Errorf("Voice = %q, want af_sarah", payload.Voice)
	}
}

func TestSynthesisWithoutToken(t *testing.T) {
	before := testEnv.BackendCalls.Load()

	resp, data := post(t, api.Input{Text: "hi", Engine: "kokkoro"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401: %s", resp.StatusCode, data)
	}

	var out api.ErrorResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Success {
		t.Error("Success = true, want false")
	}
	if out.Type != api.ErrorTypeUnauthenticated {
		t.Errorf("Type = %q, want unauthenticated", out.Type)
	}
	if testEnv.BackendCalls.Load() != before {
		t.Error("backend was called despite missing token")
	}
}

func TestSynthesisWithGarbageToken(t *testing.T) {
	resp, data := post(t, api.Input{JWTToken: "not.a.token", Text: "hi", Engine: "kokkoro"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401: %s", resp.StatusCode, data)
	}
	var out api.ErrorResponse
	json.Unmarshal(data, &out)
	if out.Type != api.ErrorTypeTokenMalformed {
		t.Errorf("Type = %q, want token_malformed", out.Type)
	}
}

func TestUnknownEngine(t *testing.T) {
	tok := mintToken(t, "alice")

	resp, data := post(t, api.Input{JWTToken: tok, Text: "hi", Engine: "espeak"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", resp.StatusCode, data)
	}
	var out api.ErrorResponse
	json.Unmarshal(data, &out)
	if out.Type != api.ErrorTypeUnknownEngine {
		t.Errorf("Type = %q, want unknown_engine", out.Type)
	}
}

func TestTransientBackendFailureIsRetried(t *testing.T) {
	tok := mintToken(t, "alice")

	// Two injected failures, three allowed attempts: the call succeeds.
	testEnv.FailNext.Store(2)
	resp, data := post(t, api.Input{JWTToken: tok, Text: "retry me", Engine: "kokkoro"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after retries: %s", resp.StatusCode, data)
	}
}

func TestBackendFailureExhaustsRetries(t *testing.T) {
	tok := mintToken(t, "alice")

	testEnv.FailNext.Store(10)
	defer testEnv.FailNext.Store(0)

	resp, data := post(t, api.Input{JWTToken: tok, Text: "doomed", Engine: "kokkoro"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", resp.StatusCode, data)
	}
	var out api.ErrorResponse
	json.Unmarshal(data, &out)
	if out.Type != api.ErrorTypeBackendUnavailable {
		t.Errorf("Type = %q, want backend_unavailable", out.Type)
	}
}

func TestValidationErrors(t *testing.T) {
	tok := mintToken(t, "alice")

	cases := []struct {
		name string
		in   api.Input
	}{
		{"empty text", api.Input{JWTToken: tok, Engine: "kokkoro"}},
		{"missing engine", api.Input{JWTToken: tok, Text: "hi"}},
		{"negative speed", api.Input{JWTToken: tok, Text: "hi", Engine: "kokkoro", Speed: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := post(t, tc.in)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", resp.StatusCode, data)
			}
		})
	}
}

func TestListEngines(t *testing.T) {
	tok := mintToken(t, "alice")

	resp, data := post(t, api.Input{Action: api.ActionListEngines, JWTToken: tok})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var out api.EngineListResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Engines) != 1 || out.Engines[0].Name != "kokkoro" {
		t.Errorf("Engines = %+v, want kokkoro", out.Engines)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	resp, err := http.Get(testEnv.Gateway.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestMetricsExposed(t *testing.T) {
	resp, err := http.Get(testEnv.Gateway.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
