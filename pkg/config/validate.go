package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	// The process must refuse to start when auth is required and no signing
	// secret is configured.
	if c.Auth.Required && c.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("auth.secret (or auth.secret_file / VOXGATE_JWT_SECRET) is required when auth.required is true"))
	}

	switch c.Auth.Algorithm {
	case "", "HS256", "HS384", "HS512":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.algorithm must be HS256, HS384, or HS512, got %q", c.Auth.Algorithm))
	}

	if c.Auth.TokenTTLHours <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl_hours must be > 0, got %d", c.Auth.TokenTTLHours))
	}
	if c.Auth.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit_rps must not be negative, got %v", c.Auth.RateLimitRPS))
	}

	if c.Dispatch.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.request_timeout must be > 0, got %v", c.Dispatch.RequestTimeout))
	}
	if c.Dispatch.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("dispatch.max_retries must be >= 1, got %d", c.Dispatch.MaxRetries))
	}
	if c.Dispatch.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("dispatch.retry_backoff must not be negative, got %v", c.Dispatch.RetryBackoff))
	}

	if len(c.Engines) == 0 {
		errs = append(errs, fmt.Errorf("at least one engine must be configured"))
	}
	seen := make(map[string]bool, len(c.Engines))
	for i, e := range c.Engines {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("engines[%d].name is required", i))
			continue
		}
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("engines[%d]: duplicate engine name %q", i, e.Name))
		}
		seen[e.Name] = true
		if e.URL == "" {
			errs = append(errs, fmt.Errorf("engines[%d] (%s): url is required", i, e.Name))
		}
	}

	return errors.Join(errs...)
}
