package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

// API holds the backend connection settings.
type API struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"30s"`
}

var _ APIConfig = (*mainConfig)(nil)

func (c *mainConfig) GetAPIBaseURL() string {
	return c.API.BaseURL
}

func (c *mainConfig) GetAPITimeout() time.Duration {
	return c.API.Timeout
}

func (a *API) sanitize() {
	a.BaseURL = strings.TrimRight(strings.TrimSpace(a.BaseURL), "/")
	if a.Timeout <= 0 {
		a.Timeout = 30 * time.Second
	}
}
