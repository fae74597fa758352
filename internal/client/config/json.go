package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/ticketdesk/internal/timex"
)

// jsonConfig is a DTO used exclusively for JSON unmarshalling. Durations go
// through timex.Duration so the file may use "5s" or integer nanoseconds.
type jsonConfig struct {
	APIBaseURL           string         `json:"api_base_url"`
	DatabasePath         string         `json:"database_path"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	ReconnectInterval    timex.Duration `json:"reconnect_interval"`
	MaxReconnectAttempts int            `json:"max_reconnect_attempts"`
	HeartbeatInterval    timex.Duration `json:"heartbeat_interval"`
	AlertDuration        timex.Duration `json:"alert_duration"`
	LogLevel             string         `json:"log_level"`
	LogPretty            bool           `json:"log_pretty"`
	MetricsAddr          string         `json:"metrics_addr"`
}

// parseJSONFile overlays cfg with the keys present in the file at path.
// Keys missing from the file keep their current value. Comments and
// trailing commas are allowed.
func parseJSONFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	jc := jsonConfig{
		APIBaseURL:           cfg.APIBaseURL,
		DatabasePath:         cfg.DatabasePath,
		RequestTimeout:       timex.Duration{Duration: cfg.RequestTimeout},
		ReconnectInterval:    timex.Duration{Duration: cfg.ReconnectInterval},
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		HeartbeatInterval:    timex.Duration{Duration: cfg.HeartbeatInterval},
		AlertDuration:        timex.Duration{Duration: cfg.AlertDuration},
		LogLevel:             cfg.LogLevel,
		LogPretty:            cfg.LogPretty,
		MetricsAddr:          cfg.MetricsAddr,
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.APIBaseURL = jc.APIBaseURL
	cfg.DatabasePath = jc.DatabasePath
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.ReconnectInterval = jc.ReconnectInterval.Duration
	cfg.MaxReconnectAttempts = jc.MaxReconnectAttempts
	cfg.HeartbeatInterval = jc.HeartbeatInterval.Duration
	cfg.AlertDuration = jc.AlertDuration.Duration
	cfg.LogLevel = jc.LogLevel
	cfg.LogPretty = jc.LogPretty
	cfg.MetricsAddr = jc.MetricsAddr
	return nil
}
