package config

import "time"

// Config holds runtime settings for the uploader CLI.
//
// ChunkMultiplier of zero leaves the choice to the server.
type Config struct {
	ServerURL       string
	Token           string
	ChunkMultiplier int
	Timeout         time.Duration
	LogLevel        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Timeout = 2 * time.Minute
	c.LogLevel = "warn"
}

// Load builds a Config from defaults, the JSON file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, path); err != nil {
		return nil, err
	}
	parseEnv(cfg)
	return cfg, nil
}
