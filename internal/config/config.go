// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ggoodman/notion-mcp-go/notion"
	"github.com/joeshaw/envdecode"
)

// Transport selects how the server talks to clients.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportSSE   Transport = "sse"
)

// Config is the full server configuration.
type Config struct {
	Transport Transport `env:"MCP_TRANSPORT,default=stdio"`
	Host      string    `env:"MCP_HOST"`
	Port      int       `env:"MCP_PORT,default=3001,strict"`

	MaxResponseChars int           `env:"MCP_MAX_RESPONSE_CHARS,default=8000,strict"`
	SSEKeepAlive     time.Duration `env:"MCP_SSE_KEEPALIVE,default=25s,strict"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT"`

	Notion notion.Config
}

// Load decodes Config from the environment. It does not validate; call
// Validate once command-line overrides have been applied.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings. A missing NOTION_API_KEY is an error in
// every transport mode.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("config: MCP_TRANSPORT must be %q or %q, got %q", TransportStdio, TransportSSE, c.Transport)
	}
	if c.Transport == TransportSSE && (c.Port <= 0 || c.Port > 65535) {
		return fmt.Errorf("config: MCP_PORT out of range: %d", c.Port)
	}
	if c.MaxResponseChars <= 0 {
		return fmt.Errorf("config: MCP_MAX_RESPONSE_CHARS must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if strings.TrimSpace(c.Notion.APIKey) == "" {
		return fmt.Errorf("config: %w", notion.ErrMissingAPIKey)
	}
	return nil
}

// Addr returns the listen address for the SSE transport.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
	}
}
