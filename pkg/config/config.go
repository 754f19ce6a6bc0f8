// Package config provides unified configuration for the voxgate gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (VOXGATE_ prefix, plus the legacy
//     deployment variable names: JWT_SECRET_KEY, KOKKORO_ENDPOINT, ...)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the voxgate gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Engines       []EngineConfig      `yaml:"engines"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 330s (must outlive a backend call)
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// AuthConfig holds token service settings.
type AuthConfig struct {
	// Required makes synthesis requests carry a valid token.
	Required bool `yaml:"required"` // default: true

	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret

	Algorithm     string `yaml:"algorithm"`       // default: "HS256"
	TokenTTLHours int    `yaml:"token_ttl_hours"` // default: 24

	// RateLimitRPS throttles authenticated callers per user_id.
	// Zero disables rate limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"` // default: 5 when rps > 0
}

// TokenTTL returns the configured token lifetime as a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// DispatchConfig holds backend call settings.
type DispatchConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"` // per attempt, default: 300s
	MaxRetries     int           `yaml:"max_retries"`     // total attempts, default: 3
	RetryBackoff   time.Duration `yaml:"retry_backoff"`   // base delay, default: 500ms
}

// EngineConfig describes one backend TTS engine.
type EngineConfig struct {
	Name         string   `yaml:"name"`
	DisplayName  string   `yaml:"display_name"`
	URL          string   `yaml:"url"`
	APIKey       string   `yaml:"api_key"`
	APIKeyFile   string   `yaml:"api_key_file"` // _file variant for api_key
	Formats      []string `yaml:"formats"`
	Voices       []string `yaml:"voices"`
	Languages    []string `yaml:"languages"`
	DefaultVoice string   `yaml:"default_voice"`
}

// ObservabilityConfig holds monitoring and logging settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`

	// Debug lists enabled debug categories (comma-separated), see the
	// debug package. VOXGATE_DEBUG overrides it.
	Debug string `yaml:"debug"`

	// LogLevel sets the slog level. VOXGATE_LOG_LEVEL overrides it.
	LogLevel string `yaml:"log_level"` // default: "INFO"
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    330 * time.Second,
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Required:      true,
			Algorithm:     "HS256",
			TokenTTLHours: 24,
		},
		Dispatch: DispatchConfig{
			RequestTimeout: 300 * time.Second,
			MaxRetries:     3,
			RetryBackoff:   500 * time.Millisecond,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
