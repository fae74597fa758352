package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// configPath extracts -c/--config from args, ignoring every other flag.
func configPath(args []string) (string, error) {
	var path string

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.StringVarP(&path, "config", "c", "", "")

	if err := fs.Parse(args); err != nil && err != pflag.ErrHelp {
		return "", fmt.Errorf("flags: %w", err)
	}
	return path, nil
}

// newFlagSet binds every flag to cfg, using the current values as defaults
// so that unset flags leave earlier sources in place.
func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("ticketdesk", pflag.ContinueOnError)

	fs.StringP("config", "c", "", "path to a JSON config file (comments allowed)")
	fs.StringVarP(&cfg.APIBaseURL, "api", "a", cfg.APIBaseURL, "base URL of the ticket service")
	fs.StringVarP(&cfg.DatabasePath, "db", "d", cfg.DatabasePath, "path of the local SQLite database")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "timeout of a single API request")
	fs.DurationVar(&cfg.ReconnectInterval, "reconnect-interval", cfg.ReconnectInterval, "delay between notification reconnect attempts")
	fs.IntVar(&cfg.MaxReconnectAttempts, "max-reconnect-attempts", cfg.MaxReconnectAttempts, "reconnect attempts before giving up")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "interval of notification heartbeats")
	fs.DurationVar(&cfg.AlertDuration, "alert-duration", cfg.AlertDuration, "how long notification toasts stay visible")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-friendly log output")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")

	return fs
}

// parseFlags overlays cfg with the flags present in args. Unknown flags are
// skipped.
func parseFlags(cfg *Config, args []string) error {
	fs := newFlagSet(cfg)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return ErrHelp
		}
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}

// Usage returns the flag help text.
func Usage() string {
	var c Config
	c.LoadDefaults()
	return newFlagSet(&c).FlagUsages()
}
