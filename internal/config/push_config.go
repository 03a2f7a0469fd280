package config

import "strings"

type PushConfig interface {
	GetVAPIDPublicKey() string
	GetPushListenAddr() string
	GetPushPublicURL() string
}

// Push configures the local push platform and the server's application key.
type Push struct {
	VAPIDPublicKey string `env:"VAPID_PUBLIC_KEY"`
	ListenAddr     string `env:"LISTEN_ADDR"      envDefault:":8090"`
	PublicURL      string `env:"PUBLIC_URL"       envDefault:"http://localhost:8090"`
}

var _ PushConfig = (*mainConfig)(nil)

func (c *mainConfig) GetVAPIDPublicKey() string {
	return c.Push.VAPIDPublicKey
}

func (c *mainConfig) GetPushListenAddr() string {
	return c.Push.ListenAddr
}

func (c *mainConfig) GetPushPublicURL() string {
	return c.Push.PublicURL
}

func (p *Push) sanitize() {
	p.VAPIDPublicKey = strings.TrimSpace(p.VAPIDPublicKey)
	p.PublicURL = strings.TrimRight(p.PublicURL, "/")
	if p.ListenAddr != "" && !strings.Contains(p.ListenAddr, ":") {
		p.ListenAddr = ":" + p.ListenAddr
	}
}
