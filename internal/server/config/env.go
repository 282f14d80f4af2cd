package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays configuration from environment variables using the
// `env` struct tags declared on Config.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
