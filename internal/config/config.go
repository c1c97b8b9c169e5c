// Package config loads the argusd configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/argusquant/argusd/internal/domain/risk"
	"github.com/argusquant/argusd/internal/domain/trade"
	"github.com/argusquant/argusd/internal/engine"
)

// Config is the full process configuration. Zero values fall back to the
// engine defaults, so a minimal file only states what it changes.
type Config struct {
	Variant trade.MarketVariant `yaml:"variant"`
	Engine  engine.Config       `yaml:"engine"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Server struct {
		Host             string  `yaml:"host"`
		Port             int     `yaml:"port"`
		ReadTimeoutSecs  int     `yaml:"read_timeout_secs"`
		WriteTimeoutSecs int     `yaml:"write_timeout_secs"`
		RateLimit        float64 `yaml:"rate_limit"`
		RateBurst        int     `yaml:"rate_burst"`
	} `yaml:"server"`

	Weights struct {
		// Source selects the learned-weight backend: "postgres", "redis"
		// or "" to run on static tables only.
		Source              string `yaml:"source"`
		PostgresDSN         string `yaml:"postgres_dsn"`
		RedisAddr           string `yaml:"redis_addr"`
		RedisKey            string `yaml:"redis_key"`
		RefreshIntervalSecs int    `yaml:"refresh_interval_secs"`
	} `yaml:"weights"`
}

// ReadTimeout returns the server read timeout.
func (c Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSecs) * time.Second
}

// WriteTimeout returns the server write timeout.
func (c Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSecs) * time.Second
}

// RefreshInterval returns the learned-weight refresh cadence.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Weights.RefreshIntervalSecs) * time.Second
}

// Default returns the configuration argusd runs with when no file is
// given.
func Default() Config {
	var c Config
	c.Variant = trade.VariantGlobal
	c.Engine = engine.DefaultConfig(c.Variant)
	c.Log.Level = "info"
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 8090
	c.Server.ReadTimeoutSecs = 10
	c.Server.WriteTimeoutSecs = 10
	c.Server.RateLimit = 50
	c.Server.RateBurst = 100
	c.Weights.RefreshIntervalSecs = 60
	return c
}

// Load reads a YAML file over the defaults. Environment variables
// ARGUSD_PG_DSN and ARGUSD_REDIS_ADDR override the file so credentials
// stay out of it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// The variant chooses the risk ladder; a file that switches variants
	// without spelling out its own ceilings gets that variant's defaults.
	if cfg.Engine.Risk.Variant != cfg.Variant {
		cfg.Engine.Risk = risk.DefaultConfig(cfg.Variant)
	}

	if dsn := os.Getenv("ARGUSD_PG_DSN"); dsn != "" {
		cfg.Weights.PostgresDSN = dsn
	}
	if addr := os.Getenv("ARGUSD_REDIS_ADDR"); addr != "" {
		cfg.Weights.RedisAddr = addr
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Variant {
	case trade.VariantGlobal, trade.VariantBist, "":
	default:
		return fmt.Errorf("unknown market variant %q", c.Variant)
	}
	switch c.Weights.Source {
	case "", "postgres", "redis":
	default:
		return fmt.Errorf("unknown weights source %q", c.Weights.Source)
	}
	if c.Weights.Source == "postgres" && c.Weights.PostgresDSN == "" {
		return fmt.Errorf("weights source postgres needs a DSN")
	}
	if c.Weights.Source == "redis" && c.Weights.RedisAddr == "" {
		return fmt.Errorf("weights source redis needs an address")
	}
	if c.Engine.MinCoverage < 0 || c.Engine.MinCoverage > 1 {
		return fmt.Errorf("min_coverage %.2f outside [0,1]", c.Engine.MinCoverage)
	}
	return nil
}
