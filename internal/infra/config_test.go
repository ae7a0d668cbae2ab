package infra

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nft_market/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, domain.ErrConfigNotFound) {
			t.Fatalf("Expected ErrConfigNotFound, got %v", err)
		}
		if cfg == nil || cfg.Mode() != domain.ModeSimulation {
			t.Fatal("Expected default simulation config")
		}
		if cfg.RotationInterval() != 3*time.Second {
			t.Errorf("Expected 3s rotation, got %v", cfg.RotationInterval())
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
market:
  mode: live
  tier_policy: name
  terms: [Frog]
rotation:
  interval_ms: 500
ledger:
  ws_url: ws://localhost:9000/rpc
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Mode() != domain.ModeLive {
			t.Errorf("Expected live, got %s", cfg.Mode())
		}
		if len(cfg.Market.Terms) != 1 || cfg.Market.Terms[0] != "Frog" {
			t.Errorf("Unexpected terms %v", cfg.Market.Terms)
		}
		if cfg.RotationInterval() != 500*time.Millisecond {
			t.Errorf("Unexpected interval %v", cfg.RotationInterval())
		}
		if cfg.HTTP.Addr != ":8080" {
			t.Errorf("Default http addr lost: %q", cfg.HTTP.Addr)
		}
	})

	t.Run("env override", func(t *testing.T) {
		t.Setenv("NFT_MARKET_ACCOUNT", "0xabc")
		t.Setenv("NFT_MARKET_MODE", "simulation")
		path := writeConfig(t, "market:\n  mode: live\nledger:\n  ws_url: ws://x\n")
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Market.Account != "0xabc" || cfg.Mode() != domain.ModeSimulation {
			t.Errorf("Env override not applied: %+v", cfg.Market)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "market: [")
		_, err := LoadConfig(path)
		var cErr *domain.ConfigError
		if !errors.As(err, &cErr) {
			t.Errorf("Expected ConfigError, got %v", err)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad mode", func(c *Config) { c.Market.Mode = "paper" }, "market.mode"},
		{"unknown policy", func(c *Config) { c.Market.TierPolicy = "random" }, "market.tier_policy"},
		{"zero k", func(c *Config) { c.Market.TopK = 0 }, "market.top_k"},
		{"no terms", func(c *Config) { c.Market.TierPolicy = "name"; c.Market.Terms = nil }, "market.terms"},
		{"live without url", func(c *Config) { c.Market.Mode = "live" }, "ledger.ws_url"},
		{"http url", func(c *Config) { c.Ledger.WSURL = "http://x" }, "ledger.ws_url"},
		{"zero interval", func(c *Config) { c.Rotation.IntervalMS = 0 }, "rotation.interval_ms"},
		{"no addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"media size", func(c *Config) { c.Media.Enabled = true; c.Media.Size = 0 }, "media.size"},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cErr *domain.ConfigError
			if !errors.As(err, &cErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cErr.Field)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
