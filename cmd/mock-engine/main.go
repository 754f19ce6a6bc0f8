// Command mock-engine runs a deterministic TTS backend for local testing.
// It speaks the {"input": {...}} invocation protocol and returns a tiny
// silent WAV clip, so the gateway can be exercised end to end without a
// real synthesis worker.
//
// Configuration:
//
//	MOCK_PORT        - Listen port (default: 9090)
//	MOCK_FAIL_COUNT  - Fail the first N invocations (default: 0)
//	MOCK_FAIL_STATUS - HTTP status for injected failures (default: 503)
//	MOCK_DELAY       - Delay before answering, e.g. "200ms" (default: none)
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	port := envOrDefault("MOCK_PORT", "9090")
	failStatus := envIntOrDefault("MOCK_FAIL_STATUS", http.StatusServiceUnavailable)
	delay, _ := time.ParseDuration(os.Getenv("MOCK_DELAY"))

	var failCount atomic.Int64
	failCount.Store(int64(envIntOrDefault("MOCK_FAIL_COUNT", 0)))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
		handleInvoke(w, r, &failCount, failStatus, delay)
	})
	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		handleInvoke(w, r, &failCount, failStatus, delay)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock engine starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock engine failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock engine shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type invocation struct {
	Input struct {
		Text     string  `json:"text"`
		Voice    string  `json:"voice"`
		Speed    float64 `json:"speed"`
		Format   string  `json:"format"`
		Language string  `json:"language"`
	} `json:"input"`
}

type invocationResult struct {
	Output *output `json:"output,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type output struct {
	AudioBase64 string  `json:"audio_base64"`
	Voice       string  `json:"voice"`
	Format      string  `json:"format"`
	DurationSec float64 `json:"duration_sec"`
}

// silentWAV is a minimal valid 8-bit mono WAV header with no samples.
var silentWAV = []byte{
	'R', 'I', 'F', 'F', 36, 0, 0, 0, 'W', 'A', 'V', 'E',
	'f', 'm', 't', ' ', 16, 0, 0, 0, 1, 0, 1, 0,
	0x40, 0x1f, 0, 0, 0x40, 0x1f, 0, 0, 1, 0, 8, 0,
	'd', 'a', 't', 'a', 0, 0, 0, 0,
}

func handleInvoke(w http.ResponseWriter, r *http.Request, failCount *atomic.Int64, failStatus int, delay time.Duration) {
	if delay > 0 {
		time.Sleep(delay)
	}

	if failCount.Add(-1) >= 0 {
		slog.Warn("injecting failure", "status", failStatus)
		http.Error(w, "injected failure", failStatus)
		return
	}

	var inv invocation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		writeJSON(w, invocationResult{Error: "invalid JSON: " + err.Error()})
		return
	}
	if inv.Input.Text == "" {
		writeJSON(w, invocationResult{Error: "text is required"})
		return
	}

	voice := inv.Input.Voice
	if voice == "" {
		voice = "default"
	}
	format := inv.Input.Format
	if format == "" {
		format = "wav"
	}

	writeJSON(w, invocationResult{Output: &output{
		AudioBase64: base64.StdEncoding.EncodeToString(silentWAV),
		Voice:       voice,
		Format:      format,
		DurationSec: 0.0,
	}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer, using default", "key", key, "value", v)
		return def
	}
	return n
}
