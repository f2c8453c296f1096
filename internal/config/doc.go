// Package config handles configuration loading for relay-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Missing values fall back to defaults, then Validate runs.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from RELAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/chat-relay/relay.yaml
//  3. ~/.config/chat-relay/relay.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${RELAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	engine:
//	  session_timeout: "30m"
//	  sweep_interval: "60s"
//	  context_ttl: "5m"
//	  turn_timeout: "10s"   # empty means no per-turn bound
//
// # Configuration Sections
//
//	server:
//	  http_addr: ":3000"          # webhooks, health, admin API
//	  grpc_addr: ":50051"         # optional grpc.health.v1
//
//	database:
//	  driver: "sqlite"            # sqlite, postgres, none
//	  path: "/var/lib/chat-relay/relay.db"
//
//	platforms:
//	  enabled: [facebook, zalo, telegram, tiktok, weibo]
//	  facebook:
//	    app_secret: "${FB_APP_SECRET}"
//	    verify_token: "${FB_VERIFY_TOKEN}"
//
//	plugins:
//	  dedupe_ttl: "10m"
//	  analysis:
//	    enabled: true
//	    openai_api_key: "${OPENAI_API_KEY}"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
