package config

import "strings"

type EnvVars struct {
	AppName    string `env:"APP_NAME"    envDefault:"Office Hours"`
	DataFolder string `env:"DATA_FOLDER" envDefault:"./data"`
	Env        string `env:"ENV"         envDefault:"DEV"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
}

var _ EnvConfig = (*mainConfig)(nil)

func (c *mainConfig) GetAppName() string {
	return c.EnvVars.AppName
}

func (c *mainConfig) GetDataFolder() string {
	return c.EnvVars.DataFolder
}

func (c *mainConfig) GetEnv() string {
	return c.EnvVars.Env
}

func (c *mainConfig) GetLogLevel() string {
	return c.EnvVars.LogLevel
}

func (c *mainConfig) IsDev() bool {
	return c.EnvVars.Env == "DEV"
}

func (e *EnvVars) sanitize() {
	e.Env = strings.ToUpper(strings.TrimSpace(e.Env))
	if e.Env == "" {
		e.Env = "DEV"
	}
	e.LogLevel = strings.ToLower(strings.TrimSpace(e.LogLevel))
	if e.DataFolder == "" {
		e.DataFolder = "./data"
	}
}
