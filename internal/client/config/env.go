package config

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	envServer          = "GOPHDRIVE_SERVER"
	envToken           = "GOPHDRIVE_TOKEN"
	envChunkMultiplier = "GOPHDRIVE_CHUNK_MULTIPLIER"
	envTimeout         = "GOPHDRIVE_TIMEOUT"
	envLogLevel        = "GOPHDRIVE_LOG_LEVEL"
)

// parseEnv overlays values from the process environment. Empty variables
// are ignored.
func parseEnv(cfg *Config) {
	v := viper.New()

	str := func(key string, dst *string) {
		_ = v.BindEnv(key)
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}

	str(envServer, &cfg.ServerURL)
	str(envToken, &cfg.Token)
	str(envLogLevel, &cfg.LogLevel)

	_ = v.BindEnv(envChunkMultiplier)
	if strings.TrimSpace(v.GetString(envChunkMultiplier)) != "" {
		cfg.ChunkMultiplier = v.GetInt(envChunkMultiplier)
	}

	_ = v.BindEnv(envTimeout)
	if d := v.GetDuration(envTimeout); d > 0 {
		cfg.Timeout = d
	}
}
