package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	APIConfig
	StoreConfig
	PushConfig
	OIDCConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
	IsDev() bool
}

type mainConfig struct {
	EnvVars
	API   API       `envPrefix:"API_"`
	Store Store     `envPrefix:"STORE_"`
	Redis RedisVars `envPrefix:"REDIS_"`
	Push  Push      `envPrefix:"PUSH_"`
	OIDC  OIDC      `envPrefix:"OIDC_"`
}

// New loads the configuration from the environment. Call godotenv.Load first
// when a .env file should contribute values.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config.New: %w", err)
	}
	c.Sanitize()
	return &c, nil
}

// Sanitize applies guardrails to values loaded from the environment.
func (c *mainConfig) Sanitize() {
	c.EnvVars.sanitize()
	c.API.sanitize()
	c.Store.sanitize()
	c.Push.sanitize()
}
