package config

type OIDCConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURL() string
	GetOIDCProvider() string
}

// OIDC configures the provider login flow. The provider name is the path
// segment of the backend exchange endpoint, /api/auth/<provider>/.
type OIDC struct {
	Issuer       string `env:"ISSUER"        envDefault:"https://accounts.google.com"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8091/callback"`
	Provider     string `env:"PROVIDER"      envDefault:"google"`
}

var _ OIDCConfig = (*mainConfig)(nil)

func (c *mainConfig) GetOIDCIssuer() string {
	return c.OIDC.Issuer
}

func (c *mainConfig) GetOIDCClientID() string {
	return c.OIDC.ClientID
}

func (c *mainConfig) GetOIDCClientSecret() string {
	return c.OIDC.ClientSecret
}

func (c *mainConfig) GetOIDCRedirectURL() string {
	return c.OIDC.RedirectURL
}

func (c *mainConfig) GetOIDCProvider() string {
	return c.OIDC.Provider
}
