// Command voxgate-client is a small CLI for exercising a running gateway:
// probing health, minting tokens, and requesting synthesis.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxgate/voxgate/pkg/api"
)

var (
	gatewayURL string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "voxgate-client",
		Short:         "Client for the voxgate TTS gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gatewayURL, "url", envOrDefault("VOXGATE_URL", "http://localhost:8080"), "gateway base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 330*time.Second, "request timeout")

	root.AddCommand(healthCmd(), tokenCmd(), synthCmd(), enginesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out api.HealthResponse
			if err := invoke(&api.Input{Action: api.ActionHealth}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func tokenCmd() *cobra.Command {
	var role string
	var permissions []string

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := &api.Input{
				Action: api.ActionGenerateToken,
				UserID: args[0],
			}
			if role != "" || len(permissions) > 0 {
				in.UserData = &api.UserData{Role: role, Permissions: permissions}
			}
			var out api.TokenResponse
			if err := invoke(in, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role claim (default: user)")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "permission claims")
	return cmd
}

func enginesCmd() *cobra.Command {
	var jwtToken string

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List registered engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out api.EngineListResponse
			if err := invoke(&api.Input{Action: api.ActionListEngines, JWTToken: jwtToken}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&jwtToken, "token", os.Getenv("VOXGATE_TOKEN"), "access token")
	return cmd
}

func synthCmd() *cobra.Command {
	var (
		jwtToken   string
		engineName string
		voice      string
		format     string
		language   string
		speed      float64
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "synth <text>",
		Short: "Synthesize speech",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := &api.Input{
				JWTToken: jwtToken,
				Text:     args[0],
				Engine:   engineName,
				Voice:    voice,
				Format:   format,
				Language: language,
				Speed:    speed,
			}
			var out api.SynthesisResponse
			if err := invoke(in, &out); err != nil {
				return err
			}

			if outputPath != "" {
				return writeAudio(out.Payload, outputPath)
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&jwtToken, "token", os.Getenv("VOXGATE_TOKEN"), "access token")
	cmd.Flags().StringVar(&engineName, "engine", "kokkoro", "engine name")
	cmd.Flags().StringVar(&voice, "voice", "", "voice name")
	cmd.Flags().StringVar(&format, "format", "", "audio format (engine default when empty)")
	cmd.Flags().StringVar(&language, "language", "", "language code")
	cmd.Flags().Float64Var(&speed, "speed", 0, "speech speed multiplier")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write decoded audio to file instead of printing JSON")
	return cmd
}

// invoke POSTs one request envelope and decodes the response into out.
func invoke(in *api.Input, out any) error {
	body, err := json.Marshal(api.Request{Input: *in})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(gatewayURL+"/runsync", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s (%s)", errResp.Error, errResp.Type)
		}
		return fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode, data)
	}

	return json.Unmarshal(data, out)
}

// writeAudio extracts the base64 audio from a synthesis payload and
// writes the decoded bytes to path.
func writeAudio(payload json.RawMessage, path string) error {
	var doc struct {
		AudioBase64 string `json:"audio_base64"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if doc.AudioBase64 == "" {
		return fmt.Errorf("payload carries no inline audio")
	}
	audio, err := base64.StdEncoding.DecodeString(doc.AudioBase64)
	if err != nil {
		return fmt.Errorf("decoding audio: %w", err)
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", len(audio), path)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
