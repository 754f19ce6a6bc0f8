// Command server runs the voxgate TTS gateway.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (VOXGATE_CONFIG, ./config.yaml, or /etc/voxgate/config.yaml), then
// environment variables. The most commonly used variables:
//
//	VOXGATE_PORT          - Listen port (default: 8080)
//	JWT_SECRET_KEY        - HMAC signing secret (required when auth is on)
//	VOXGATE_AUTH_REQUIRED - "false" disables token checks
//	KOKKORO_ENDPOINT      - Kokkoro backend invocation URL
//	CHATTERBOX_ENDPOINT   - Chatterbox backend invocation URL
//	VOXGATE_ENGINES       - JSON engine list, replaces the configured set
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/voxgate/voxgate/pkg/config"
	"github.com/voxgate/voxgate/pkg/debug"
	"github.com/voxgate/voxgate/pkg/dispatch"
	"github.com/voxgate/voxgate/pkg/engine/httpengine"
	"github.com/voxgate/voxgate/pkg/registry"
	"github.com/voxgate/voxgate/pkg/token"
	transporthttp "github.com/voxgate/voxgate/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(cfg.Observability.Debug, cfg.Observability.LogLevel)
	logger := slog.Default()

	// Token service. Skipped entirely when auth is off and no secret is
	// configured; generate_token then reports an internal error.
	var tokens *token.Service
	if cfg.Auth.Secret != "" || cfg.Auth.Required {
		tokens, err = token.New(token.Config{
			Secret:     cfg.Auth.Secret,
			Algorithm:  cfg.Auth.Algorithm,
			DefaultTTL: cfg.Auth.TokenTTL(),
		})
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	}

	// Engine registry.
	reg := registry.New()
	for _, ec := range cfg.Engines {
		eng, err := httpengine.New(httpengine.Config{
			Name:    ec.Name,
			URL:     ec.URL,
			APIKey:  ec.APIKey,
			Timeout: cfg.Dispatch.RequestTimeout,
		})
		if err != nil {
			return fmt.Errorf("creating engine %s: %w", ec.Name, err)
		}
		desc := registry.Descriptor{
			Name:         ec.Name,
			DisplayName:  ec.DisplayName,
			Formats:      ec.Formats,
			Voices:       ec.Voices,
			Languages:    ec.Languages,
			DefaultVoice: ec.DefaultVoice,
		}
		if err := reg.Register(desc, eng); err != nil {
			return fmt.Errorf("registering engine %s: %w", ec.Name, err)
		}
		logger.Info("engine registered", "engine", ec.Name, "url", ec.URL)
	}
	defer reg.Close()

	dispatcher := dispatch.New(dispatch.Config{
		AuthRequired:   cfg.Auth.Required,
		RequestTimeout: cfg.Dispatch.RequestTimeout,
		MaxRetries:     cfg.Dispatch.MaxRetries,
		RetryBackoff:   cfg.Dispatch.RetryBackoff,
		RateLimitRPS:   cfg.Auth.RateLimitRPS,
		RateLimitBurst: cfg.Auth.RateLimitBurst,
	}, tokens, reg, logger)

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(dispatcher,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithLogger(logger),
	)

	logger.Info("gateway starting",
		"version", dispatch.Version,
		"port", cfg.Server.Port,
		"auth_required", cfg.Auth.Required,
		"engines", reg.Names(),
	)
	return srv.ListenAndServe()
}
