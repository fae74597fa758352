// Package config loads runtime configuration for the ticketdesk CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config. Comments are allowed.
//  3. Environment variables prefixed with TICKETDESK_.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-c, --config string              JSON config file
//	-a, --api string                 base URL of the ticket service
//	-d, --db string                  local SQLite database
//	    --timeout duration           API request timeout
//	    --reconnect-interval duration
//	    --max-reconnect-attempts int
//	    --heartbeat-interval duration
//	    --alert-duration duration
//	    --log-level string
//	    --log-pretty
//	    --metrics-addr string
//
// # JSON schema
//
//	{
//	  // where the service lives
//	  "api_base_url": "https://tickets.example.com",
//	  "database_path": "ticketdesk.db",
//	  "request_timeout": "10s",
//	  "reconnect_interval": "5s",
//	  "max_reconnect_attempts": 10,
//	  "heartbeat_interval": "30s",
//	  "alert_duration": "5s",
//	  "log_level": "info",
//	  "log_pretty": false,
//	  "metrics_addr": ""
//	}
//
// Environment variables use the upper-case field name, e.g.
// TICKETDESK_API_BASE_URL or TICKETDESK_RECONNECT_INTERVAL=2s.
package config
