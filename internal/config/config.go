// ABOUTME: Configuration loading and parsing for relay-gateway
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing and defaults

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file leaves a field empty.
const (
	DefaultHTTPAddr       = ":3000"
	DefaultSessionTimeout = 30 * time.Minute
	DefaultSweepInterval  = 60 * time.Second
	DefaultContextTTL     = 5 * time.Minute
	DefaultHistoryLimit   = 20
	DefaultDedupeTTL      = 10 * time.Minute
	DefaultAnalysisModel  = "gpt-4o-mini"
)

// DefaultPlatforms is the allow-list used when platforms.enabled is empty.
var DefaultPlatforms = []string{"facebook", "zalo", "telegram", "tiktok", "weibo"}

// Config represents the complete relay-gateway configuration
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Tailscale   TailscaleConfig `yaml:"tailscale"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	Engine      EngineConfig    `yaml:"engine"`
	Content     ContentConfig   `yaml:"content"`
	Platforms   PlatformsConfig `yaml:"platforms"`
	Plugins     PluginsConfig   `yaml:"plugins"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // optional gRPC health endpoint
}

// TailscaleConfig holds Tailscale tsnet configuration for exposing webhooks
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"` // public HTTPS, required for platform webhooks
}

// DatabaseConfig selects the interaction audit store
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default), "postgres" or "none"
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// AuthConfig holds admin API authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// EngineConfig holds conversation engine timing and sizing
type EngineConfig struct {
	SessionTimeout time.Duration `yaml:"-"`
	SweepInterval  time.Duration `yaml:"-"`
	ContextTTL     time.Duration `yaml:"-"`
	TurnTimeout    time.Duration `yaml:"-"`
	HistoryLimit   int           `yaml:"history_limit"`

	// Raw string values for YAML unmarshaling
	SessionTimeoutRaw string `yaml:"session_timeout"`
	SweepIntervalRaw  string `yaml:"sweep_interval"`
	ContextTTLRaw     string `yaml:"context_ttl"`
	TurnTimeoutRaw    string `yaml:"turn_timeout"`
}

// ContentConfig points at the FAQ catalog; empty Path uses the embedded catalog
type ContentConfig struct {
	Path string `yaml:"path"`
}

// PlatformsConfig holds the platform allow-list and per-platform secrets
type PlatformsConfig struct {
	Enabled  []string       `yaml:"enabled"`
	Facebook FacebookConfig `yaml:"facebook"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
}

// FacebookConfig holds Messenger webhook verification settings
type FacebookConfig struct {
	AppSecret   string `yaml:"app_secret"`
	VerifyToken string `yaml:"verify_token"`
}

// WhatsAppConfig holds Twilio webhook verification settings
type WhatsAppConfig struct {
	AuthToken  string `yaml:"auth_token"`
	WebhookURL string `yaml:"webhook_url"` // public URL Twilio signs against
}

// PluginsConfig holds settings for the built-in plugins
type PluginsConfig struct {
	DedupeTTL    time.Duration  `yaml:"-"`
	DedupeTTLRaw string         `yaml:"dedupe_ttl"`
	Analysis     AnalysisConfig `yaml:"analysis"`
}

// AnalysisConfig configures the customer analysis plugin
type AnalysisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Model        string `yaml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Engine.SessionTimeout == 0 {
		c.Engine.SessionTimeout = DefaultSessionTimeout
	}
	if c.Engine.SweepInterval == 0 {
		c.Engine.SweepInterval = DefaultSweepInterval
	}
	if c.Engine.ContextTTL == 0 {
		c.Engine.ContextTTL = DefaultContextTTL
	}
	if c.Engine.HistoryLimit == 0 {
		c.Engine.HistoryLimit = DefaultHistoryLimit
	}
	if len(c.Platforms.Enabled) == 0 {
		c.Platforms.Enabled = append([]string(nil), DefaultPlatforms...)
	}
	for i, p := range c.Platforms.Enabled {
		c.Platforms.Enabled[i] = strings.ToLower(strings.TrimSpace(p))
	}
	if c.Plugins.DedupeTTL == 0 {
		c.Plugins.DedupeTTL = DefaultDedupeTTL
	}
	if c.Plugins.Analysis.Model == "" {
		c.Plugins.Analysis.Model = DefaultAnalysisModel
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	case "none":
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite, postgres or none)", c.Database.Driver)
	}

	if c.Engine.HistoryLimit < 0 {
		return fmt.Errorf("engine.history_limit must not be negative")
	}
	if c.Engine.TurnTimeout < 0 {
		return fmt.Errorf("engine.turn_timeout must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"engine.session_timeout", cfg.Engine.SessionTimeoutRaw, &cfg.Engine.SessionTimeout},
		{"engine.sweep_interval", cfg.Engine.SweepIntervalRaw, &cfg.Engine.SweepInterval},
		{"engine.context_ttl", cfg.Engine.ContextTTLRaw, &cfg.Engine.ContextTTL},
		{"engine.turn_timeout", cfg.Engine.TurnTimeoutRaw, &cfg.Engine.TurnTimeout},
		{"plugins.dedupe_ttl", cfg.Plugins.DedupeTTLRaw, &cfg.Plugins.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
