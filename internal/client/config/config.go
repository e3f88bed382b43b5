package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/client/services"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

// Config holds runtime settings for the SportMatch CLI.
//
// Units: every *Timeout, *Delay and Heartbeat* field is a time.Duration.
// StoreSecret seals the persisted session; when empty the session is kept
// in memory only.
type Config struct {
	APIBaseURL     string        `env:"API_BASE_URL"`
	RealtimeURL    string        `env:"REALTIME_URL"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY"`
	ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY"`
	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS"`
	HeartbeatOutgoing    time.Duration `env:"HEARTBEAT_OUTGOING"`
	HeartbeatIncoming    time.Duration `env:"HEARTBEAT_INCOMING"`

	PageSize      int `env:"PAGE_SIZE"`
	MaxDistanceKm int `env:"MAX_DISTANCE_KM"`

	ValidationPolicy string `env:"VALIDATION_POLICY"`
	DatabaseDSN      string `env:"DATABASE_DSN"`
	StoreSecret      string `env:"STORE_SECRET"`
	LogLevel         string `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8080/api"
	c.RealtimeURL = "ws://localhost:8080/ws/websocket"
	c.RequestTimeout = 10 * time.Second

	c.ReconnectBaseDelay = time.Second
	c.ReconnectMaxDelay = 30 * time.Second
	c.ReconnectMaxAttempts = 5
	c.HeartbeatOutgoing = 4 * time.Second
	c.HeartbeatIncoming = 4 * time.Second

	c.PageSize = 10
	c.MaxDistanceKm = 10

	c.ValidationPolicy = string(services.FailOpen)
	c.DatabaseDSN = "sportmatch.db"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api base url %q is not absolute", c.APIBaseURL))
	}
	if u, err := url.Parse(c.RealtimeURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss" && u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("realtime url %q must be ws(s) or http(s)", c.RealtimeURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.ReconnectBaseDelay <= 0 || c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		errs = append(errs, errors.New("reconnect delays must be positive and max >= base"))
	}
	if c.ReconnectMaxAttempts <= 0 {
		errs = append(errs, errors.New("reconnect attempts must be positive"))
	}
	if c.HeartbeatOutgoing < 0 || c.HeartbeatIncoming < 0 {
		errs = append(errs, errors.New("heartbeats must not be negative"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.MaxDistanceKm <= 0 {
		errs = append(errs, errors.New("max distance must be positive"))
	}
	if _, err := services.ParseValidationPolicy(c.ValidationPolicy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policy returns the parsed validation policy; call Validate first.
func (c *Config) Policy() services.ValidationPolicy {
	p, _ := services.ParseValidationPolicy(c.ValidationPolicy)
	return p
}

var logWriter io.Writer = os.Stderr

// Logger builds the CLI's text logger at the configured level.
func (c *Config) Logger() logging.Logger {
	return logging.NewText(logWriter, c.LogLevel)
}
