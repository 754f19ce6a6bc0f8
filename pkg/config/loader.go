package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, VOXGATE_CONFIG env, ./config.yaml,
//     /etc/voxgate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. VOXGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/voxgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("VOXGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/voxgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. It covers
// both the VOXGATE_* names and the variable names the original deployment
// scripts injected into the serverless endpoints.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOXGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Signing secret: VOXGATE_JWT_SECRET wins over the legacy JWT_SECRET_KEY.
	if v := os.Getenv("JWT_SECRET_KEY"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("VOXGATE_JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}

	if v := os.Getenv("VOXGATE_AUTH_REQUIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Required = b
		}
	}
	if v := os.Getenv("JWT_ALGORITHM"); v != "" {
		cfg.Auth.Algorithm = v
	}
	if v := os.Getenv("JWT_EXPIRATION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			cfg.Auth.TokenTTLHours = hours
		}
	}

	// Legacy dispatch knobs (seconds and attempt count).
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.MaxRetries = n
		}
	}

	// VOXGATE_ENGINES: JSON array of engine configs, mirroring the YAML shape.
	if v := os.Getenv("VOXGATE_ENGINES"); v != "" {
		engines, err := parseEnginesJSON(v)
		if err == nil && len(engines) > 0 {
			cfg.Engines = engines
		}
	}

	// Legacy per-engine endpoint variables from the deployment scripts.
	// They add or override the two stock engines.
	applyLegacyEngineEndpoint(cfg, "kokkoro", os.Getenv("KOKKORO_ENDPOINT"))
	applyLegacyEngineEndpoint(cfg, "chatterbox", os.Getenv("CHATTERBOX_ENDPOINT"))
}

// applyLegacyEngineEndpoint sets the URL of a named engine, appending a
// minimal entry when the engine is not configured yet.
func applyLegacyEngineEndpoint(cfg *Config, name, url string) {
	if url == "" {
		return
	}
	for i := range cfg.Engines {
		if cfg.Engines[i].Name == name {
			cfg.Engines[i].URL = url
			return
		}
	}
	cfg.Engines = append(cfg.Engines, EngineConfig{Name: name, URL: url})
}

// parseEnginesJSON parses a JSON array of engine configurations.
func parseEnginesJSON(jsonStr string) ([]EngineConfig, error) {
	var engines []EngineConfig
	if err := json.Unmarshal([]byte(jsonStr), &engines); err != nil {
		return nil, fmt.Errorf("parsing engines JSON: %w", err)
	}
	return engines, nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.secret_file -> auth.secret
	if cfg.Auth.SecretFile != "" && cfg.Auth.Secret == "" {
		val, err := readSecretFile(cfg.Auth.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.secret_file: %w", err)
		}
		cfg.Auth.Secret = val
	}

	// engines[*].api_key_file -> engines[*].api_key
	for i := range cfg.Engines {
		if cfg.Engines[i].APIKeyFile != "" && cfg.Engines[i].APIKey == "" {
			val, err := readSecretFile(cfg.Engines[i].APIKeyFile)
			if err != nil {
				return fmt.Errorf("engines[%d].api_key_file: %w", i, err)
			}
			cfg.Engines[i].APIKey = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// UnmarshalYAML accepts either Go duration strings ("300s") or bare numbers
// of seconds for duration fields, matching how the deployment scripts wrote
// their timeout values.
func (d *DispatchConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		RequestTimeout string `yaml:"request_timeout"`
		MaxRetries     *int   `yaml:"max_retries"`
		RetryBackoff   string `yaml:"retry_backoff"`
	}
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}

	if r.RequestTimeout != "" {
		dur, err := parseFlexibleDuration(r.RequestTimeout)
		if err != nil {
			return fmt.Errorf("request_timeout: %w", err)
		}
		d.RequestTimeout = dur
	}
	if r.MaxRetries != nil {
		d.MaxRetries = *r.MaxRetries
	}
	if r.RetryBackoff != "" {
		dur, err := parseFlexibleDuration(r.RetryBackoff)
		if err != nil {
			return fmt.Errorf("retry_backoff: %w", err)
		}
		d.RetryBackoff = dur
	}
	return nil
}

// parseFlexibleDuration parses "300s"/"5m" or a bare number of seconds.
func parseFlexibleDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
