package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nft_market/internal/domain"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 배포별 값을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Mode           string   `yaml:"mode"`    // "simulation" or "live"
		Account        string   `yaml:"account"` // default viewer/owner address
		TierPolicy     string   `yaml:"tier_policy"`
		TopK           int      `yaml:"top_k"`
		Terms          []string `yaml:"terms"`
		PendingRetryMS int      `yaml:"pending_retry_ms"`
	} `yaml:"market"`

	Rotation struct {
		IntervalMS int `yaml:"interval_ms"`
	} `yaml:"rotation"`

	Ledger struct {
		WSURL            string `yaml:"ws_url"`
		RequestTimeoutMS int    `yaml:"request_timeout_ms"`
		ReconnectBaseMS  int    `yaml:"reconnect_base_ms"`
		ReconnectMaxMS   int    `yaml:"reconnect_max_ms"`
		Breaker          struct {
			Threshold  int `yaml:"threshold"`
			CooldownMS int `yaml:"cooldown_ms"`
		} `yaml:"breaker"`
	} `yaml:"ledger"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Media struct {
		Enabled  bool   `yaml:"enabled"`
		Size     int    `yaml:"size"`
		CacheDir string `yaml:"cache_dir"` // empty = user config dir
	} `yaml:"media"`

	Storage struct {
		Path string `yaml:"path"` // empty = user config dir
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration that runs the simulation without any external service.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "nft_market"
	cfg.App.Version = "0.1.0"

	cfg.Market.Mode = domain.ModeSimulation.String()
	cfg.Market.TierPolicy = "rank"
	cfg.Market.TopK = 3
	cfg.Market.Terms = []string{"Dragon", "Cat", "Monkey"}
	cfg.Market.PendingRetryMS = 2000

	cfg.Rotation.IntervalMS = 3000

	cfg.Ledger.RequestTimeoutMS = 10000
	cfg.Ledger.ReconnectBaseMS = 1000
	cfg.Ledger.ReconnectMaxMS = 60000
	cfg.Ledger.Breaker.Threshold = 5
	cfg.Ledger.Breaker.CooldownMS = 30000

	cfg.HTTP.Addr = ":8080"

	cfg.Media.Size = 320

	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// 파일이 없으면 기본값과 함께 domain.ErrConfigNotFound를 반환합니다.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			overrideWithEnv(cfg)
			return cfg, fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Field: path, Err: err}
	}

	// 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	// 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	mode, err := domain.ParseMode(c.Market.Mode)
	if err != nil {
		return &domain.ConfigError{Field: "market.mode", Err: err}
	}

	switch strings.ToLower(c.Market.TierPolicy) {
	case "rank":
		if c.Market.TopK <= 0 {
			return &domain.ConfigError{Field: "market.top_k", Err: errors.New("must be positive")}
		}
	case "name":
		if len(c.Market.Terms) == 0 {
			return &domain.ConfigError{Field: "market.terms", Err: errors.New("at least one term is required")}
		}
	default:
		return &domain.ConfigError{Field: "market.tier_policy", Err: fmt.Errorf("unknown policy %q", c.Market.TierPolicy)}
	}

	// Ledger
	if mode == domain.ModeLive && c.Ledger.WSURL == "" {
		return &domain.ConfigError{Field: "ledger.ws_url", Err: errors.New("required in live mode")}
	}
	if c.Ledger.WSURL != "" && !strings.HasPrefix(c.Ledger.WSURL, "ws://") && !strings.HasPrefix(c.Ledger.WSURL, "wss://") {
		return &domain.ConfigError{Field: "ledger.ws_url", Err: fmt.Errorf("invalid WS URL: %s", c.Ledger.WSURL)}
	}
	if c.Ledger.RequestTimeoutMS <= 0 {
		return &domain.ConfigError{Field: "ledger.request_timeout_ms", Err: errors.New("must be positive")}
	}

	if c.Rotation.IntervalMS <= 0 {
		return &domain.ConfigError{Field: "rotation.interval_ms", Err: errors.New("must be positive")}
	}
	if c.HTTP.Addr == "" {
		return &domain.ConfigError{Field: "http.addr", Err: errors.New("required")}
	}
	if c.Media.Enabled && c.Media.Size <= 0 {
		return &domain.ConfigError{Field: "media.size", Err: errors.New("must be positive")}
	}

	return nil
}

// Mode returns the parsed market mode. Call after Validate.
func (c *Config) Mode() domain.Mode {
	mode, _ := domain.ParseMode(c.Market.Mode)
	return mode
}

func (c *Config) RotationInterval() time.Duration {
	return time.Duration(c.Rotation.IntervalMS) * time.Millisecond
}

func (c *Config) PendingRetry() time.Duration {
	return time.Duration(c.Market.PendingRetryMS) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Ledger.RequestTimeoutMS) * time.Millisecond
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if mode := os.Getenv("NFT_MARKET_MODE"); mode != "" {
		cfg.Market.Mode = mode
	}
	if url := os.Getenv("NFT_MARKET_LEDGER_URL"); url != "" {
		cfg.Ledger.WSURL = url
	}
	if account := os.Getenv("NFT_MARKET_ACCOUNT"); account != "" {
		cfg.Market.Account = account
	}
	if addr := os.Getenv("NFT_MARKET_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
}
