// Package config reads the gate's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Addr      string `env:"SESSIONGATE_ADDR"       envDefault:":8080"`
	PublicURL string `env:"SESSIONGATE_PUBLIC_URL" envDefault:"http://localhost:8080"`

	ProviderURL string `env:"SESSIONGATE_PROVIDER_URL,required"`
	ClientID    string `env:"SESSIONGATE_CLIENT_ID,required"`

	DBPath    string `env:"SESSIONGATE_DB_PATH"    envDefault:"sessiongate.db"`
	PolicyDir string `env:"SESSIONGATE_POLICY_DIR"`
	LogLevel  string `env:"SESSIONGATE_LOG_LEVEL"  envDefault:"info"`

	SecureCookies bool `env:"SESSIONGATE_SECURE_COOKIES" envDefault:"false"`
	Debug         bool `env:"SESSIONGATE_DEBUG"          envDefault:"false"`

	StateTTL        time.Duration `env:"SESSIONGATE_STATE_TTL"        envDefault:"10m"`
	TabIdleTTL      time.Duration `env:"SESSIONGATE_TAB_IDLE_TTL"     envDefault:"12h"`
	SweepInterval   time.Duration `env:"SESSIONGATE_SWEEP_INTERVAL"   envDefault:"10m"`
	ShutdownTimeout time.Duration `env:"SESSIONGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// RateLimit is the sustained number of requests per second allowed to
	// each client IP on the login, callback and logout routes.
	RateLimit float64 `env:"SESSIONGATE_RATE_LIMIT" envDefault:"5"`
	RateBurst int     `env:"SESSIONGATE_RATE_BURST" envDefault:"10"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validateURL("SESSIONGATE_PUBLIC_URL", c.PublicURL); err != nil {
		return err
	}
	if err := validateURL("SESSIONGATE_PROVIDER_URL", c.ProviderURL); err != nil {
		return err
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: SESSIONGATE_DB_PATH is empty", ErrInvalidConfig)
	}

	durations := map[string]time.Duration{
		"SESSIONGATE_STATE_TTL":        c.StateTTL,
		"SESSIONGATE_TAB_IDLE_TTL":     c.TabIdleTTL,
		"SESSIONGATE_SWEEP_INTERVAL":   c.SweepInterval,
		"SESSIONGATE_SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, d)
		}
	}

	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("%w: rate limit and burst must be positive", ErrInvalidConfig)
	}
	return nil
}

// RedirectURL is the canonical callback URL registered with the provider.
func (c *Config) RedirectURL() string {
	u, _ := url.Parse(c.PublicURL)
	return u.JoinPath("callback").String()
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL, got '%s'", ErrInvalidConfig, name, raw)
	}
	return nil
}
