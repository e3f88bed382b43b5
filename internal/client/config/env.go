package config

import "github.com/caarlos0/env/v11"

// EnvPrefix prefixes every environment variable, e.g. SPORTMATCH_API_BASE_URL.
const EnvPrefix = "SPORTMATCH_"

// parseEnv overlays Config with SPORTMATCH_* variables. Unset variables
// leave the current value alone. Panics on a malformed value.
func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
