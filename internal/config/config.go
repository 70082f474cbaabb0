// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the SpendWise configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Bank      BankConfig      `toml:"bank"`
	Notify    NotifyConfig    `toml:"notify"`
	Server    ServerConfig    `toml:"server"`
	Sync      SyncConfig      `toml:"sync"`
	Storage   StorageConfig   `toml:"storage"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, Ollama, etc.)
}

// BankConfig contains external ledger settings.
type BankConfig struct {
	BaseURL string `toml:"base_url"` // e.g. http://localhost:8081
	Domain  string `toml:"domain"`  // host used for egress grants
	Port    int    `toml:"port"`
}

// NotifyConfig contains notification channel settings.
type NotifyConfig struct {
	Endpoint  string `toml:"endpoint"` // SMS gateway URL
	Recipient string `toml:"recipient"`
	Domain    string `toml:"domain"`
	Port      int    `toml:"port"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Addr string `toml:"addr"` // listen address, e.g. :8080
}

// SyncConfig contains reconciler loop settings.
type SyncConfig struct {
	Interval string `toml:"interval"` // poll interval (default "5s")
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path string `toml:"path"` // sqlite database file
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// TimeoutsConfig contains timeout settings in seconds.
type TimeoutsConfig struct {
	Turn int `toml:"turn"` // orchestrator turn timeout (default 60)
	Tool int `toml:"tool"` // per-tool timeout (default 30)
	Bank int `toml:"bank"` // bank HTTP timeout (default 10)
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Bank: BankConfig{
			BaseURL: "http://localhost:8081",
			Domain:  "localhost",
			Port:    8081,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Sync: SyncConfig{
			Interval: "5s",
		},
		Storage: StorageConfig{
			Path: "spendwise.db",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
		Timeouts: TimeoutsConfig{
			Turn: 60,
			Tool: 30,
			Bank: 10,
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from spendwise.toml in the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFile(filepath.Join(cwd, "spendwise.toml"))
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// SyncInterval parses the reconciler poll interval, falling back to 5s.
func (c *Config) SyncInterval() time.Duration {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// TurnTimeout returns the orchestrator turn timeout.
func (c *Config) TurnTimeout() time.Duration {
	if c.Timeouts.Turn <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeouts.Turn) * time.Second
}

// ToolTimeout returns the per-tool execution timeout.
func (c *Config) ToolTimeout() time.Duration {
	if c.Timeouts.Tool <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeouts.Tool) * time.Second
}

// BankTimeout returns the bank HTTP client timeout.
func (c *Config) BankTimeout() time.Duration {
	if c.Timeouts.Bank <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Timeouts.Bank) * time.Second
}
