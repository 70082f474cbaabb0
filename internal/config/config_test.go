package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := New()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.SyncInterval() != 5*time.Second {
		t.Errorf("SyncInterval() = %v", cfg.SyncInterval())
	}
	if cfg.TurnTimeout() != 60*time.Second {
		t.Errorf("TurnTimeout() = %v", cfg.TurnTimeout())
	}
	if cfg.Bank.BaseURL != "http://localhost:8081" {
		t.Errorf("Bank.BaseURL = %q", cfg.Bank.BaseURL)
	}
}

func TestLoadFile(t *testing.T) {
	content := `
[llm]
provider = "anthropic"
model = "claude-sonnet-4-20250514"
api_key_env = "MY_KEY"

[bank]
base_url = "http://bank.local:9000"
domain = "bank.local"
port = 9000

[sync]
interval = "2s"

[timeouts]
turn = 30
`
	path := filepath.Join(t.TempDir(), "spendwise.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q", cfg.LLM.Provider)
	}
	if cfg.Bank.Domain != "bank.local" {
		t.Errorf("Bank.Domain = %q", cfg.Bank.Domain)
	}
	if cfg.SyncInterval() != 2*time.Second {
		t.Errorf("SyncInterval() = %v", cfg.SyncInterval())
	}
	if cfg.TurnTimeout() != 30*time.Second {
		t.Errorf("TurnTimeout() = %v", cfg.TurnTimeout())
	}
	// Unset sections keep their defaults.
	if cfg.Storage.Path != "spendwise.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
}

func TestGetAPIKey(t *testing.T) {
	t.Setenv("MY_CUSTOM_KEY", "sk-abc")
	cfg := New()
	cfg.LLM.APIKeyEnv = "MY_CUSTOM_KEY"
	if got := cfg.GetAPIKey(); got != "sk-abc" {
		t.Errorf("GetAPIKey() = %q", got)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	cfg.LLM.APIKeyEnv = ""
	cfg.LLM.Provider = "anthropic"
	if got := cfg.GetAPIKey(); got != "sk-ant" {
		t.Errorf("GetAPIKey() via provider default = %q", got)
	}
}

func TestBadIntervalFallsBack(t *testing.T) {
	cfg := New()
	cfg.Sync.Interval = "not-a-duration"
	if cfg.SyncInterval() != 5*time.Second {
		t.Errorf("SyncInterval() = %v, want fallback 5s", cfg.SyncInterval())
	}
}
