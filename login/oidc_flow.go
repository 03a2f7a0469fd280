package login

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-officehours-client/api"
	"github.com/jrsteele09/go-officehours-client/internal/browser"
	"github.com/jrsteele09/go-officehours-client/internal/config"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/internal/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const completePage = `<!doctype html><html><body><p>Login complete. You can close this window.</p></body></html>`

// OIDCFlow runs the authorization code flow with PKCE against an OpenID
// provider and yields the ID token the backend exchanges for a session
type OIDCFlow struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	open     func(url string) error
	logger   zerolog.Logger
}

type Option func(*OIDCFlow)

func WithLogger(logger zerolog.Logger) Option {
	return func(f *OIDCFlow) {
		f.logger = logger
	}
}

// WithBrowserOpener replaces the system browser
func WithBrowserOpener(open func(url string) error) Option {
	return func(f *OIDCFlow) {
		f.open = open
	}
}

// Attempt holds the per-login secrets the callback is checked against
type Attempt struct {
	State    string
	Nonce    string
	Verifier string
	AuthURL  string
}

// NewOIDCFlow discovers the provider configured in cfg
func NewOIDCFlow(ctx context.Context, cfg config.OIDCConfig, opts ...Option) (*OIDCFlow, error) {
	if cfg.GetOIDCClientID() == "" {
		return nil, fmt.Errorf("login.NewOIDCFlow: OIDC_CLIENT_ID is not set")
	}
	provider, err := oidc.NewProvider(ctx, cfg.GetOIDCIssuer())
	if err != nil {
		return nil, fmt.Errorf("login.NewOIDCFlow discovery: %w", err)
	}
	oauthConfig := oauth2.Config{
		ClientID:     cfg.GetOIDCClientID(),
		ClientSecret: cfg.GetOIDCClientSecret(),
		RedirectURL:  cfg.GetOIDCRedirectURL(),
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: oauthConfig.ClientID})
	return New(oauthConfig, verifier, opts...), nil
}

// New creates a flow from an explicit client configuration and verifier
func New(oauthConfig oauth2.Config, verifier *oidc.IDTokenVerifier, opts ...Option) *OIDCFlow {
	f := &OIDCFlow{
		oauth:    oauthConfig,
		verifier: verifier,
		open:     browser.Open,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Begin prepares a login attempt with fresh state, nonce and PKCE verifier
func (f *OIDCFlow) Begin() Attempt {
	a := Attempt{
		State:    uuid.NewString(),
		Nonce:    uuid.NewString(),
		Verifier: oauth2.GenerateVerifier(),
	}
	a.AuthURL = f.oauth.AuthCodeURL(a.State, oidc.Nonce(a.Nonce), oauth2.S256ChallengeOption(a.Verifier))
	return a
}

// Complete exchanges the authorization code and verifies the ID token
func (f *OIDCFlow) Complete(ctx context.Context, a Attempt, state, code string) (api.ProviderCredential, error) {
	if state != a.State {
		return api.ProviderCredential{}, fmt.Errorf("login.Complete: %w", clienterrors.ErrLoginStateMismatch)
	}
	token, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(a.Verifier))
	if err != nil {
		return api.ProviderCredential{}, fmt.Errorf("login.Complete exchange: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return api.ProviderCredential{}, fmt.Errorf("login.Complete: no id_token in token response")
	}
	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return api.ProviderCredential{}, fmt.Errorf("login.Complete verify: %w", err)
	}
	if idToken.Nonce != a.Nonce {
		return api.ProviderCredential{}, fmt.Errorf("login.Complete nonce: %w", clienterrors.ErrLoginStateMismatch)
	}
	f.logger.Debug().Str("issuer", idToken.Issuer).Msg("id token verified")
	return api.ProviderCredential{IDToken: rawIDToken, AccessToken: token.AccessToken}, nil
}

// Outcome is the result of a callback
type Outcome struct {
	Credential api.ProviderCredential
	Err        error
}

// CallbackHandler serves the redirect URL for one attempt. The first callback
// decides the outcome; later ones are answered but ignored.
func (f *OIDCFlow) CallbackHandler(a Attempt, results chan<- Outcome) http.Handler {
	var once sync.Once
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var res Outcome
		if errParam := r.FormValue("error"); errParam != "" {
			res.Err = fmt.Errorf("login: provider returned %s: %s", errParam, r.FormValue("error_description"))
		} else if r.FormValue("code") == "" || r.FormValue("state") == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		} else {
			res.Credential, res.Err = f.Complete(r.Context(), a, r.FormValue("state"), r.FormValue("code"))
		}

		delivered := false
		once.Do(func() {
			results <- res
			delivered = true
		})
		switch {
		case !delivered:
			http.Error(w, "Login already completed", http.StatusConflict)
		case res.Err != nil:
			http.Error(w, "Login failed", http.StatusBadRequest)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(completePage))
		}
	})
}

// Run performs a complete login: it listens on the redirect URL, opens the
// provider's login page and waits for the callback or for ctx to end
func (f *OIDCFlow) Run(ctx context.Context) (api.ProviderCredential, error) {
	redirect, err := url.Parse(f.oauth.RedirectURL)
	if err != nil || redirect.Host == "" {
		return api.ProviderCredential{}, fmt.Errorf("login.Run: invalid redirect url %q", f.oauth.RedirectURL)
	}
	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return api.ProviderCredential{}, fmt.Errorf("login.Run: start callback listener: %w", err)
	}

	attempt := f.Begin()
	results := make(chan Outcome, 1)
	path := redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.Handle(path, f.CallbackHandler(attempt, results))
	srv := &http.Server{
		Handler:           middleware.Chain(mux, middleware.Recover(f.logger), middleware.Logging(f.logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Err(err).Msg("callback server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := f.open(attempt.AuthURL); err != nil {
		f.logger.Warn().Err(err).Msg("could not open a browser")
	}
	f.logger.Info().Str("url", attempt.AuthURL).Msg("waiting for provider login")

	select {
	case res := <-results:
		if res.Err != nil {
			return api.ProviderCredential{}, res.Err
		}
		return res.Credential, nil
	case <-ctx.Done():
		return api.ProviderCredential{}, fmt.Errorf("login.Run: %w", ctx.Err())
	}
}
