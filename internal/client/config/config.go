package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/pflag"
)

// Config holds runtime settings for the ticketdesk CLI.
//
// Durations are time.Duration values; the JSON file and the environment
// accept strings like "5s", flags accept the same syntax.
type Config struct {
	// APIBaseURL is the origin of the ticket service. The notification
	// socket uses ws:// or wss:// on the same host.
	APIBaseURL string `env:"API_BASE_URL, overwrite" validate:"required,url"`
	// DatabasePath is the SQLite file holding the credential.
	DatabasePath string `env:"DATABASE_PATH, overwrite" validate:"required"`

	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT, overwrite" validate:"gt=0"`
	ReconnectInterval    time.Duration `env:"RECONNECT_INTERVAL, overwrite" validate:"gt=0"`
	MaxReconnectAttempts int           `env:"MAX_RECONNECT_ATTEMPTS, overwrite" validate:"gte=1"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL, overwrite" validate:"gt=0"`
	AlertDuration        time.Duration `env:"ALERT_DURATION, overwrite" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL, overwrite" validate:"oneof=trace debug info warn warning error"`
	LogPretty bool   `env:"LOG_PRETTY, overwrite"`
	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string `env:"METRICS_ADDR, overwrite"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TICKETDESK_"

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000"
	c.DatabasePath = "ticketdesk.db"
	c.RequestTimeout = 10 * time.Second
	c.ReconnectInterval = 5 * time.Second
	c.MaxReconnectAttempts = 10
	c.HeartbeatInterval = 30 * time.Second
	c.AlertDuration = 5 * time.Second
	c.LogLevel = "info"
	c.LogPretty = false
	c.MetricsAddr = ""
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ErrHelp is returned by Load when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

// Load builds a Config from defaults, the JSON file named by -c/--config,
// environment variables looked up through env, and finally args. Later
// sources take precedence over earlier ones.
func Load(args []string, env envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := parseJSONFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := parseEnv(cfg, env); err != nil {
		return nil, err
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads the configuration of the running process. It panics on
// malformed input; the caller recovers and reports it. Help requests print
// usage and exit.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:], envconfig.OsLookuper())
	if errors.Is(err, ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		panic(err)
	}
	return cfg
}

func parseEnv(cfg *Config, env envconfig.Lookuper) error {
	if env == nil {
		return nil
	}
	err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, env),
	})
	if err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}
