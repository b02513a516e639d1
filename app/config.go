package app

import (
	"fmt"

	coreconfig "github.com/m3rciful/counterbot/core/config"
	coredatabase "github.com/m3rciful/counterbot/core/database"
	"github.com/m3rciful/counterbot/core/health"
)

// Config is the full bot configuration: the reusable core plus storage and liveness settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Health   health.Config       `yaml:"health"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path (optional) and the environment, then validates every section.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if err := coreconfig.Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, fmt.Errorf("database config: %w", err)
	}
	if err := cfg.Health.Normalize(); err != nil {
		return nil, fmt.Errorf("health config: %w", err)
	}
	return cfg, nil
}
