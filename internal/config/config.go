// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Environment string // dev | staging | production
}

func (r RuntimeConfig) Production() bool { return r.Environment == "production" }

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type CheckoutConfig struct {
	SecretKey     string        `yaml:"secret_key"`     // provider API key
	WebhookSecret string        `yaml:"webhook_secret"` // webhook signing secret
	SuccessURL    string        `yaml:"success_url"`
	CancelURL     string        `yaml:"cancel_url"`
	VerifyTimeout time.Duration `yaml:"verify_timeout"` // bound on live provider queries
}

type SweeperConfig struct {
	Interval     time.Duration `yaml:"interval"`      // how often to scan
	Grace        time.Duration `yaml:"grace"`         // pending age before a purchase is swept at all
	LongAfter    time.Duration `yaml:"long_after"`    // pending age that earns persistent re-query attempts
	Batch        int           `yaml:"batch"`         // max purchases per sweep
	RecheckDelay time.Duration `yaml:"recheck_delay"` // one-shot verify delay after checkout creation
}

type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Auth     AuthConfig     `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the YAML config. The environment name comes
// from the caller (flag) so binaries stay in charge of how it is supplied.
func LoadConfig(path, environment string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Checkout.VerifyTimeout <= 0 {
		cfg.Checkout.VerifyTimeout = 10 * time.Second
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Minute
	}
	if cfg.Sweeper.Grace <= 0 {
		cfg.Sweeper.Grace = 10 * time.Minute
	}
	if cfg.Sweeper.LongAfter <= 0 {
		cfg.Sweeper.LongAfter = 24 * time.Hour
	}
	if cfg.Sweeper.Batch <= 0 {
		cfg.Sweeper.Batch = 200
	}
	if cfg.Sweeper.RecheckDelay <= 0 {
		cfg.Sweeper.RecheckDelay = 2 * time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Checkout.SecretKey == "" {
		return nil, errors.New("checkout.secret_key is required")
	}
	if cfg.Checkout.WebhookSecret == "" {
		return nil, errors.New("checkout.webhook_secret is required")
	}

	if environment == "" {
		environment = "dev"
	}
	cfg.Runtime.Environment = environment
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
