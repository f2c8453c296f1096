// ABOUTME: Interactive `relay-gateway init` that writes a starter relay.yaml
// ABOUTME: Generates a random admin JWT secret and prepares the data directory

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/chat-relay/internal/config"
)

// initAnswers are the values collected by runInit.
type initAnswers struct {
	HTTPAddr         string
	GRPCAddr         string
	Environment      string
	DBPath           string
	Platforms        string
	JWTSecret        string
	TailscaleEnabled bool
	TSHostname       string
	TSFunnel         bool
	LogLevel         string
	LogFormat        string
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("relay-gateway configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDBPath := filepath.Join(getDataPath(), "relay.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	var a initAnswers
	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)
	a.GRPCAddr = prompt(reader, "gRPC health address (empty to disable)", "")
	a.Environment = prompt(reader, "Environment", "production")

	fmt.Println("\n--- Platforms ---")
	a.Platforms = prompt(reader, "Enabled platforms (comma separated)", strings.Join(config.DefaultPlatforms, ","))

	fmt.Println("\n--- Audit Database ---")
	a.DBPath = prompt(reader, "SQLite database path", defaultDBPath)

	fmt.Println("\n--- Admin API ---")
	a.JWTSecret = prompt(reader, "JWT secret", secret)

	fmt.Println("\n--- Tailscale Configuration ---")
	a.TailscaleEnabled = yes(prompt(reader, "Enable Tailscale?", "no"))
	if a.TailscaleEnabled {
		a.TSHostname = prompt(reader, "Tailscale hostname", "chat-relay")
		a.TSFunnel = yes(prompt(reader, "Enable Funnel (public HTTPS webhooks)?", "yes"))
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  relay-gateway serve\n")

	return nil
}

// renderConfig writes the answers as YAML that config.Parse accepts.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# relay-gateway configuration\n")
	cfg.WriteString("# Generated by relay-gateway init\n\n")

	fmt.Fprintf(&cfg, "environment: %q\n\n", a.Environment)

	cfg.WriteString("server:\n")
	fmt.Fprintf(&cfg, "  http_addr: %q\n", a.HTTPAddr)
	if a.GRPCAddr != "" {
		fmt.Fprintf(&cfg, "  grpc_addr: %q\n", a.GRPCAddr)
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString("  driver: \"sqlite\"\n")
	fmt.Fprintf(&cfg, "  path: %q\n\n", a.DBPath)

	cfg.WriteString("auth:\n")
	fmt.Fprintf(&cfg, "  jwt_secret: %q\n\n", a.JWTSecret)

	cfg.WriteString("platforms:\n")
	cfg.WriteString("  enabled:\n")
	for _, p := range strings.Split(a.Platforms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			fmt.Fprintf(&cfg, "    - %q\n", p)
		}
	}
	cfg.WriteString("  facebook:\n")
	cfg.WriteString("    app_secret: \"${FACEBOOK_APP_SECRET}\"\n")
	cfg.WriteString("    verify_token: \"${FACEBOOK_VERIFY_TOKEN}\"\n\n")

	cfg.WriteString("engine:\n")
	fmt.Fprintf(&cfg, "  session_timeout: %q\n", config.DefaultSessionTimeout.String())
	fmt.Fprintf(&cfg, "  sweep_interval: %q\n\n", config.DefaultSweepInterval.String())

	cfg.WriteString("plugins:\n")
	cfg.WriteString("  analysis:\n")
	cfg.WriteString("    enabled: true\n")
	cfg.WriteString("    openai_api_key: \"${OPENAI_API_KEY}\"\n\n")

	cfg.WriteString("tailscale:\n")
	fmt.Fprintf(&cfg, "  enabled: %t\n", a.TailscaleEnabled)
	if a.TailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", a.TSHostname)
		fmt.Fprintf(&cfg, "  funnel: %t\n", a.TSFunnel)
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	fmt.Fprintf(&cfg, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&cfg, "  format: %q\n", a.LogFormat)

	return cfg.String()
}

// generateSecret returns 32 random bytes, base64 encoded.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
