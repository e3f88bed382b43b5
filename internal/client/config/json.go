package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/flagx"
	"github.com/dmitrijs2005/sportmatch/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	APIBaseURL     string         `json:"api_base_url"`
	RealtimeURL    string         `json:"realtime_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`

	ReconnectBaseDelay   timex.Duration `json:"reconnect_base_delay"`
	ReconnectMaxDelay    timex.Duration `json:"reconnect_max_delay"`
	ReconnectMaxAttempts int            `json:"reconnect_max_attempts"`
	HeartbeatOutgoing    timex.Duration `json:"heartbeat_outgoing"`
	HeartbeatIncoming    timex.Duration `json:"heartbeat_incoming"`

	PageSize      int `json:"page_size"`
	MaxDistanceKm int `json:"max_distance_km"`

	ValidationPolicy string `json:"validation_policy"`
	DatabaseDSN      string `json:"database_dsn"`
	StoreSecret      string `json:"store_secret"`
	LogLevel         string `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file named by
// -c or -config. Keys missing from the file keep their current value.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.RealtimeURL, jc.RealtimeURL)
	setString(&cfg.ValidationPolicy, jc.ValidationPolicy)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setString(&cfg.StoreSecret, jc.StoreSecret)
	setString(&cfg.LogLevel, jc.LogLevel)

	setInt(&cfg.ReconnectMaxAttempts, jc.ReconnectMaxAttempts)
	setInt(&cfg.PageSize, jc.PageSize)
	setInt(&cfg.MaxDistanceKm, jc.MaxDistanceKm)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.ReconnectBaseDelay, jc.ReconnectBaseDelay)
	setDuration(&cfg.ReconnectMaxDelay, jc.ReconnectMaxDelay)
	setDuration(&cfg.HeartbeatOutgoing, jc.HeartbeatOutgoing)
	setDuration(&cfg.HeartbeatIncoming, jc.HeartbeatIncoming)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
