// Package config loads runtime configuration for the SportMatch CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables prefixed with SPORTMATCH_ (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string     API base URL
//	-w string     realtime websocket URL
//	-t duration   HTTP request timeout
//	-d string     SQLite DSN
//	-l string     log level
//	-p string     validation policy
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://localhost:8080/api",
//	  "realtime_url": "ws://localhost:8080/ws/websocket",
//	  "request_timeout": "10s",
//	  "reconnect_base_delay": "1s",
//	  "reconnect_max_attempts": 5,
//	  "validation_policy": "fail-open"
//	}
package config
