package api

import "encoding/json"

// Action names recognized by the dispatcher. An empty action means synthesis.
const (
	ActionHealth        = "health"
	ActionGenerateToken = "generate_token"
	ActionListEngines   = "list_engines"
)

// Request is the outer request envelope. Every call carries a single
// "input" object, matching the serverless invocation format the stock
// engines are deployed behind.
type Request struct {
	Input Input `json:"input"`
}

// Input is the inner request object.
type Input struct {
	// Action selects a control action. Empty means synthesis.
	Action string `json:"action,omitempty"`

	// JWTToken authenticates synthesis requests when auth mode is on.
	JWTToken string `json:"jwt_token,omitempty"`

	// Synthesis fields.
	Text     string  `json:"text,omitempty"`
	Engine   string  `json:"engine,omitempty"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Format   string  `json:"format,omitempty"`
	Language string  `json:"language,omitempty"`

	// generate_token fields.
	UserID   string    `json:"user_id,omitempty"`
	UserData *UserData `json:"user_data,omitempty"`
}

// UserData carries optional role and permission attributes for
// generate_token requests.
type UserData struct {
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// SynthesisResponse is the success envelope for a synthesis request.
// Payload is the backend's output document, passed through unmodified
// (inline audio or a reference, depending on the engine).
type SynthesisResponse struct {
	Success        bool            `json:"success"`
	Payload        json.RawMessage `json:"payload"`
	Engine         string          `json:"engine"`
	UserID         string          `json:"user_id,omitempty"`
	Format         string          `json:"format,omitempty"`
	ProcessingTime float64         `json:"processing_time"`
}

// TokenResponse is the success envelope for generate_token.
type TokenResponse struct {
	Success        bool    `json:"success"`
	Token          string  `json:"token"`
	UserID         string  `json:"user_id"`
	Role           string  `json:"role"`
	ExpiresInHours float64 `json:"expires_in_hours"`
	IssuedAt       string  `json:"issued_at"`
}

// HealthResponse reports liveness and the authentication mode in effect.
type HealthResponse struct {
	Status           string   `json:"status"`
	JWTAuthEnabled   bool     `json:"jwt_auth_enabled"`
	GatewayVersion   string   `json:"gateway_version"`
	AvailableEngines []string `json:"available_engines"`
}

// EngineInfo describes a registered engine for list_engines.
type EngineInfo struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name,omitempty"`
	Formats      []string `json:"formats,omitempty"`
	Voices       []string `json:"voices,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	DefaultVoice string   `json:"default_voice,omitempty"`
}

// EngineListResponse is the success envelope for list_engines.
type EngineListResponse struct {
	Success bool         `json:"success"`
	Engines []EngineInfo `json:"engines"`
}
