// ABOUTME: Entry point for relay-gateway, the multi-platform chat-bot relay
// ABOUTME: Subcommands serve webhooks, check health, mint admin tokens and validate FAQ content

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/chat-relay/internal/analysis"
	"github.com/2389/chat-relay/internal/auth"
	"github.com/2389/chat-relay/internal/builtins"
	"github.com/2389/chat-relay/internal/config"
	"github.com/2389/chat-relay/internal/content"
	"github.com/2389/chat-relay/internal/engine"
	"github.com/2389/chat-relay/internal/gateway"
	"github.com/2389/chat-relay/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _           _                   _
   ___| |__   __ _| |_      _ __ ___| | __ _ _   _
  / __| '_ \ / _' | __|____| '__/ _ \ |/ _' | | | |
 | (__| | | | (_| | ||_____| | |  __/ | (_| | |_| |
  \___|_| |_|\__,_|\__|    |_|  \___|_|\__,_|\__, |
                                             |___/
`

// getConfigPath returns the path to the relay config file.
// Priority: RELAY_CONFIG env var > XDG_CONFIG_HOME/chat-relay/relay.yaml > ~/.config/chat-relay/relay.yaml
func getConfigPath() string {
	if envPath := os.Getenv("RELAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "relay.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "chat-relay", "relay.yaml")
}

// getDataPath returns the path to the relay data directory.
// Priority: XDG_DATA_HOME/chat-relay > ~/.local/share/chat-relay
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "chat-relay")
}

func usage() {
	fmt.Println("Usage: relay-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the relay server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  health                         Check relay health")
	fmt.Println("  token --subject S [--role R]   Mint an admin API token")
	fmt.Println("  check-content [path]           Validate an FAQ catalog")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// A missing .env is normal; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(os.Args[2:])
	case "check-content":
		err = runCheckContent(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	catalog, err := loadCatalog(cfg.Content.Path)
	if err != nil {
		return err
	}

	printStartup(configPath, cfg, catalog)

	logger.Info("starting relay-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"environment", cfg.Environment,
		"platforms", cfg.Platforms.Enabled,
	)

	eng, err := engine.New(engine.Config{
		Content:        catalog,
		SessionTimeout: cfg.Engine.SessionTimeout,
		SweepInterval:  cfg.Engine.SweepInterval,
		ContextTTL:     cfg.Engine.ContextTTL,
		HistoryLimit:   cfg.Engine.HistoryLimit,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	if err := builtins.Register(eng.Pipeline(), builtins.Options{
		DedupeTTL:       cfg.Plugins.DedupeTTL,
		DisableAnalysis: !cfg.Plugins.Analysis.Enabled,
		Scorer:          buildScorer(cfg.Plugins.Analysis, logger),
		Logger:          logger,
	}); err != nil {
		return fmt.Errorf("registering plugins: %w", err)
	}

	auditStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	var recorder *store.Recorder
	if auditStore != nil {
		recorder = store.NewRecorder(auditStore, store.DefaultQueueSize, logger)
	}

	gw, err := gateway.New(cfg, gateway.Deps{
		Engine:   eng,
		Catalog:  catalog,
		Store:    auditStore,
		Recorder: recorder,
		Version:  version,
	}, logger)
	if err != nil {
		_ = recorder.Close(context.Background())
		if auditStore != nil {
			_ = auditStore.Close()
		}
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// printStartup prints the colorized startup summary.
func printStartup(configPath string, cfg *config.Config, catalog *content.Catalog) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Platforms: %v\n", cfg.Platforms.Enabled)
	green.Print("    ▶ ")
	fmt.Printf("Content:   %d categories (v%s)\n", len(catalog.Categories()), catalog.Metadata.Version)
	green.Print("    ▶ ")
	fmt.Printf("Audit:     %s\n", cfg.Database.Driver)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! admin API is unauthenticated (auth.jwt_secret not set)")
	}

	fmt.Println()
}

// loadCatalog loads the FAQ catalog from path, or the embedded catalog when path is empty.
func loadCatalog(path string) (*content.Catalog, error) {
	if path == "" {
		return content.Default(), nil
	}
	catalog, err := content.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}
	return catalog, nil
}

// buildScorer picks the sentiment scorer: OpenAI with a lexicon fallback when
// an API key is configured, otherwise the lexicon alone.
func buildScorer(cfg config.AnalysisConfig, logger *slog.Logger) analysis.Scorer {
	lexicon := analysis.NewLexiconScorer()
	if cfg.OpenAIAPIKey == "" {
		return lexicon
	}
	logger.Info("sentiment scoring via OpenAI", "model", cfg.Model)
	return analysis.FallbackScorer{
		Primary:   analysis.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.Model),
		Secondary: lexicon,
	}
}

// openStore opens the audit store for the configured driver. It returns a nil
// Store for the "none" driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", healthHost(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// healthHost turns a listen address into a dialable one; ":3000" becomes "localhost:3000".
func healthHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "token subject (who is calling)")
	role := fs.String("role", auth.RoleAdmin, "token role: admin or viewer")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set; the admin API is open and needs no token")
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(*subject, *role, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runCheckContent(args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	} else if cfg, err := config.Load(getConfigPath()); err == nil {
		path = cfg.Content.Path
	}

	catalog, err := loadCatalog(path)
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "embedded catalog"
	}
	green := color.New(color.FgGreen)
	green.Print("✓ ")
	questions := 0
	for _, c := range catalog.Categories() {
		questions += len(c.Questions)
	}
	fmt.Printf("%s: %d categories, %d questions, version %s (updated %s)\n",
		source, len(catalog.Categories()), questions, catalog.Metadata.Version, catalog.LastUpdated())
	return nil
}
