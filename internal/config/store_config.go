package config

import "strings"

// StoreBackend selects where session credentials are persisted.
type StoreBackend string

const (
	StoreBackendFile   StoreBackend = "file"
	StoreBackendRedis  StoreBackend = "redis"
	StoreBackendMemory StoreBackend = "memory"
)

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetStoreFile() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Store struct {
	Backend StoreBackend `env:"BACKEND" envDefault:"file"`
	File    string       `env:"FILE"    envDefault:"session.json"`
}

type RedisVars struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
	Prefix   string `env:"PREFIX"   envDefault:"officehours:"`
}

var _ StoreConfig = (*mainConfig)(nil)

func (c *mainConfig) GetStoreBackend() StoreBackend {
	return c.Store.Backend
}

// GetStoreFile returns the session file name, relative to the data folder.
func (c *mainConfig) GetStoreFile() string {
	return c.Store.File
}

func (c *mainConfig) GetRedisAddr() string {
	return c.Redis.Addr
}

func (c *mainConfig) GetRedisPassword() string {
	return c.Redis.Password
}

func (c *mainConfig) GetRedisDB() int {
	return c.Redis.DB
}

func (c *mainConfig) GetRedisPrefix() string {
	return c.Redis.Prefix
}

func (s *Store) sanitize() {
	switch StoreBackend(strings.ToLower(string(s.Backend))) {
	case StoreBackendRedis:
		s.Backend = StoreBackendRedis
	case StoreBackendMemory:
		s.Backend = StoreBackendMemory
	default:
		s.Backend = StoreBackendFile
	}
	if s.File == "" {
		s.File = "session.json"
	}
}
