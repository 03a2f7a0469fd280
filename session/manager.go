package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-officehours-client/api"
	"github.com/jrsteele09/go-officehours-client/httpclient"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/internal/utils"
	"github.com/jrsteele09/go-officehours-client/tokens"
	"github.com/jrsteele09/go-officehours-client/users"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// AuthAPI is the part of the REST API the session drives
type AuthAPI interface {
	ExchangeProvider(ctx context.Context, provider string, credential any) (*api.SessionPayload, error)
	RefreshToken(ctx context.Context, refresh string) (*api.RefreshResponse, error)
	Logout(ctx context.Context, refresh string) error
	CurrentUser(ctx context.Context) (*users.User, error)
}

// TokenListener is told about every access token change. "" means logged out.
type TokenListener func(accessToken string)

var (
	_ httpclient.TokenProvider = (*Manager)(nil)
	_ httpclient.Refresher     = (*Manager)(nil)
	_ oauth2.TokenSource       = (*Manager)(nil)
)

// Manager owns the authenticated session: the token pair, the cached user and
// the single refresh attempt shared by all callers. Memory and the durable
// store are always updated together.
type Manager struct {
	api    AuthAPI
	store  tokens.Store
	logger zerolog.Logger

	refreshGroup singleflight.Group
	bootOnce     sync.Once

	lock         sync.RWMutex
	state        State
	booting      bool
	listeners    map[uint64]TokenListener
	nextListener uint64
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a session manager in the Bootstrapping state
func New(authAPI AuthAPI, store tokens.Store, opts ...Option) *Manager {
	m := &Manager{
		api:       authAPI,
		store:     store,
		logger:    zerolog.Nop(),
		state:     State{Status: StatusBootstrapping, Loading: true},
		listeners: make(map[uint64]TokenListener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the session
func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state.clone()
}

// GetToken returns the current access token, or "" when anonymous
func (m *Manager) GetToken() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state.AccessToken
}

// Token implements oauth2.TokenSource over the current session
func (m *Manager) Token() (*oauth2.Token, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.state.AccessToken == "" {
		return nil, clienterrors.ErrNotAuthenticated
	}
	tok := &oauth2.Token{
		AccessToken:  m.state.AccessToken,
		RefreshToken: m.state.RefreshToken,
		TokenType:    "Bearer",
	}
	if expiry, ok := tokens.AccessTokenExpiry(m.state.AccessToken); ok {
		tok.Expiry = expiry
	}
	return tok, nil
}

// OnTokenChange registers a listener and returns the function that removes it
func (m *Manager) OnTokenChange(listener TokenListener) (cancel func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = listener
	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.listeners, id)
	}
}

// Bootstrap restores the session from the durable store. It runs once;
// later calls return the current state. Failures end in the Anonymous state.
func (m *Manager) Bootstrap(ctx context.Context) State {
	m.bootOnce.Do(func() {
		start := time.Now()
		m.lock.Lock()
		m.booting = true
		m.lock.Unlock()

		m.bootstrap(ctx)

		m.lock.Lock()
		m.booting = false
		m.state.Loading = false
		m.lock.Unlock()
		m.logger.Debug().Str("status", string(m.State().Status)).Dur("elapsed", time.Since(start)).Msg("session bootstrapped")
	})
	return m.State()
}

func (m *Manager) bootstrap(ctx context.Context) {
	creds, err := tokens.Load(ctx, m.store)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not read stored credentials")
		m.becomeAnonymous()
		return
	}
	if creds.RefreshToken == "" {
		if creds.AccessToken != "" {
			m.logger.Info().Msg("stored access token has no refresh token, discarding")
			m.clearSession(ctx)
			return
		}
		m.becomeAnonymous()
		return
	}

	m.lock.Lock()
	m.state.AccessToken = creds.AccessToken
	m.state.RefreshToken = creds.RefreshToken
	m.state.User = creds.User
	m.lock.Unlock()
	m.notify(creds.AccessToken)

	if creds.AccessToken == "" || tokens.AccessTokenExpired(creds.AccessToken) {
		if _, err := m.RefreshAccessToken(ctx); err != nil {
			m.logger.Info().Err(err).Msg("stored session could not be refreshed")
			m.clearSession(ctx)
			return
		}
	}

	// Bootstrap runs its own refresh-then-retry, so the transport must not add another
	fetchCtx := httpclient.WithoutRetry(ctx)
	if err := m.loadUser(fetchCtx); err != nil {
		m.logger.Info().Err(err).Msg("user fetch failed, refreshing once")
		if _, err := m.RefreshAccessToken(ctx); err != nil {
			m.clearSession(ctx)
			return
		}
		if err := m.loadUser(fetchCtx); err != nil {
			m.logger.Info().Err(err).Msg("user fetch failed after refresh")
			m.clearSession(ctx)
			return
		}
	}
}

// Login starts a session from a login payload. When the payload carries no user
// it is fetched; if that fails the session reverts to Anonymous.
func (m *Manager) Login(ctx context.Context, payload api.SessionPayload) error {
	if payload.Access == "" || payload.Refresh == "" {
		return fmt.Errorf("session.Login: %w: payload is missing a token", clienterrors.ErrNotAuthenticated)
	}
	if err := m.commit(ctx, payload.Access, payload.Refresh, payload.User); err != nil {
		return clienterrors.Wrapf(err, "session.Login")
	}
	if payload.User == nil {
		if err := m.loadUser(ctx); err != nil {
			m.clearSession(ctx)
			return clienterrors.Wrapf(err, "session.Login")
		}
	}
	m.lock.Lock()
	m.state.Status = StatusAuthenticated
	m.state.Loading = false
	m.lock.Unlock()
	m.logger.Info().Msg("logged in")
	return nil
}

// LoginWithProvider exchanges a provider credential (for OIDC providers an
// api.ProviderCredential) for a session and logs in with it
func (m *Manager) LoginWithProvider(ctx context.Context, provider string, credential any) error {
	payload, err := m.api.ExchangeProvider(ctx, provider, credential)
	if err != nil {
		return clienterrors.Wrapf(err, "session.LoginWithProvider")
	}
	return m.Login(ctx, *payload)
}

// RefreshAccessToken exchanges the refresh token for a new access token.
// Concurrent callers share one network call. A refresh the server rejects
// ends the session.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	return m.refreshShared(ctx, "")
}

// ReplaceRejectedToken returns an access token to use after rejected was
// refused with a 401. When the session already moved past rejected, the
// current token is returned without a network call.
func (m *Manager) ReplaceRejectedToken(ctx context.Context, rejected string) (string, error) {
	return m.refreshShared(ctx, rejected)
}

func (m *Manager) refreshShared(ctx context.Context, rejected string) (string, error) {
	// The shared attempt must outlive any single caller that gives up
	shared := context.WithoutCancel(ctx)
	result := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		m.lock.RLock()
		access, refresh := m.state.AccessToken, m.state.RefreshToken
		m.lock.RUnlock()

		if refresh == "" {
			return "", clienterrors.ErrNoRefreshToken
		}
		if rejected != "" && access != "" && access != rejected {
			return access, nil
		}
		return m.refresh(shared, refresh)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("session.RefreshAccessToken: %w", ctx.Err())
	case res := <-result:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) refresh(ctx context.Context, refresh string) (string, error) {
	resp, err := m.api.RefreshToken(ctx, refresh)
	if err != nil {
		if httpclient.IsClientError(err) {
			m.logger.Info().Err(err).Msg("refresh token rejected, ending session")
			if m.holdsRefreshToken(refresh) {
				m.clearSession(ctx)
			}
			return "", fmt.Errorf("session.RefreshAccessToken: %w: %w", clienterrors.ErrRefreshFailed, err)
		}
		return "", clienterrors.Wrapf(err, "session.RefreshAccessToken")
	}

	nextRefresh := utils.FirstNonEmpty(utils.Value(resp.Refresh), refresh)
	if err := m.commitTokens(ctx, refresh, resp.Access, nextRefresh); err != nil {
		return "", clienterrors.Wrapf(err, "session.RefreshAccessToken")
	}
	m.logger.Debug().Bool("rotated", nextRefresh != refresh).Msg("access token refreshed")
	return resp.Access, nil
}

// Logout tells the backend to drop the refresh token, then clears the session
// regardless of the outcome
func (m *Manager) Logout(ctx context.Context) {
	m.lock.RLock()
	refresh := m.state.RefreshToken
	m.lock.RUnlock()

	if refresh != "" {
		if err := m.api.Logout(ctx, refresh); err != nil {
			m.logger.Warn().Err(err).Msg("backend logout failed")
		}
	}
	m.clearSession(ctx)
	m.logger.Info().Msg("logged out")
}

// ForceLogout ends the session after an unrecoverable authentication failure
func (m *Manager) ForceLogout(ctx context.Context) {
	m.Logout(ctx)
}

// UpdateUser patches the cached user. The backend is not contacted.
func (m *Manager) UpdateUser(ctx context.Context, patch users.Patch) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state.User == nil {
		return fmt.Errorf("session.UpdateUser: %w", clienterrors.ErrNotAuthenticated)
	}
	updated := m.state.User.Apply(patch)
	if err := tokens.SaveUser(ctx, m.store, &updated); err != nil {
		return clienterrors.Wrapf(err, "session.UpdateUser")
	}
	m.state.User = &updated
	return nil
}

func (m *Manager) loadUser(ctx context.Context) error {
	u, err := m.api.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", clienterrors.ErrUserUnavailable, err)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state.RefreshToken == "" {
		return clienterrors.ErrNotAuthenticated
	}
	if err := tokens.SaveUser(ctx, m.store, u); err != nil {
		return err
	}
	m.state.User = u
	m.state.Status = StatusAuthenticated
	return nil
}

// commit writes the credentials to the store and then to memory. A store
// failure leaves memory untouched.
func (m *Manager) commit(ctx context.Context, access, refresh string, user *users.User) error {
	m.lock.Lock()
	err := tokens.Save(ctx, m.store, tokens.Credentials{AccessToken: access, RefreshToken: refresh, User: user})
	if err == nil {
		m.state.AccessToken = access
		m.state.RefreshToken = refresh
		m.state.User = user
	}
	m.lock.Unlock()
	if err != nil {
		return err
	}
	m.notify(access)
	return nil
}

// commitTokens replaces the token pair of the session that holds expect. A
// refresh that settles after a logout or a new login cannot revive the old session.
func (m *Manager) commitTokens(ctx context.Context, expect, access, refresh string) error {
	m.lock.Lock()
	if m.state.RefreshToken != expect {
		m.lock.Unlock()
		return clienterrors.ErrSessionReplaced
	}
	err := tokens.SaveTokens(ctx, m.store, access, refresh)
	if err == nil {
		m.state.AccessToken = access
		m.state.RefreshToken = refresh
	}
	m.lock.Unlock()
	if err != nil {
		return err
	}
	m.notify(access)
	return nil
}

func (m *Manager) holdsRefreshToken(refresh string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state.RefreshToken == refresh
}

func (m *Manager) clearSession(ctx context.Context) {
	if err := tokens.Clear(ctx, m.store); err != nil {
		m.logger.Error().Err(err).Msg("could not clear stored credentials")
	}
	m.becomeAnonymous()
}

func (m *Manager) becomeAnonymous() {
	m.lock.Lock()
	hadToken := m.state.AccessToken != ""
	m.state = State{Status: StatusAnonymous, Loading: m.booting}
	m.lock.Unlock()
	if hadToken {
		m.notify("")
	}
}

func (m *Manager) notify(accessToken string) {
	m.lock.RLock()
	listeners := make([]TokenListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.lock.RUnlock()
	for _, l := range listeners {
		l(accessToken)
	}
}
