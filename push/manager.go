package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-officehours-client/api"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/rs/zerolog"
)

// User-facing failure messages
const (
	MessageNotSupported     = "Not supported"
	MessagePermissionDenied = "Permission denied"
)

// Source names what decided the subscribed flag during reconciliation
type Source string

const (
	SourceNone     Source = "none"
	SourceBackend  Source = "backend"
	SourcePlatform Source = "platform"
)

// State is a snapshot of the push subscription for UI consumers
type State struct {
	Supported  bool
	Permission Permission
	Subscribed bool
	Loading    bool
}

// Result is the outcome of an explicit push action
type Result struct {
	Success bool
	Error   string
}

func failure(err error) Result {
	switch {
	case clienterrors.Is(err, clienterrors.ErrNotSupported):
		return Result{Error: MessageNotSupported}
	case clienterrors.Is(err, clienterrors.ErrPermissionDenied):
		return Result{Error: MessagePermissionDenied}
	default:
		return Result{Error: err.Error()}
	}
}

// Manager keeps the application's belief about push subscription state and
// reconciles it with the platform and the backend
type Manager struct {
	platform Platform
	backend  Backend
	vapidKey string
	browser  string
	logger   zerolog.Logger

	// serializes subscribe and unsubscribe
	op sync.Mutex

	lock         sync.RWMutex
	state        State
	listeners    map[uint64]func(State)
	nextListener uint64
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithUserAgent sets the user agent the browser label is derived from
func WithUserAgent(userAgent string) Option {
	return func(m *Manager) {
		m.browser = DetectBrowser(userAgent)
	}
}

// New creates a push manager. vapidPublicKey is the URL-safe base64 VAPID public key.
func New(platform Platform, backend Backend, vapidPublicKey string, opts ...Option) *Manager {
	m := &Manager{
		platform:  platform,
		backend:   backend,
		vapidKey:  vapidPublicKey,
		browser:   BrowserUnknown,
		logger:    zerolog.Nop(),
		state:     State{Permission: PermissionDefault},
		listeners: make(map[uint64]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() State {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// OnChange registers a state listener and returns the function that removes it
func (m *Manager) OnChange(listener func(State)) (cancel func()) {
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

// Mount detects platform support, reads the permission and, when supported,
// reconciles the subscribed flag
func (m *Manager) Mount(ctx context.Context) State {
	supported := m.platform.HasServiceWorker() && m.platform.HasPushManager()
	permission := PermissionDefault
	if supported {
		permission = m.platform.Permission()
	}
	m.update(func(s *State) {
		s.Supported = supported
		s.Permission = permission
	})

	if supported {
		if _, err := m.Reconcile(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("push state could not be reconciled")
		}
	} else {
		m.logger.Info().Msg("push notifications are not supported here")
	}
	return m.State()
}

// Reconcile sets the subscribed flag. The backend wins when reachable; when it
// is not, an existing platform subscription counts as subscribed.
func (m *Manager) Reconcile(ctx context.Context) (Source, error) {
	if !m.State().Supported {
		return SourceNone, clienterrors.ErrNotSupported
	}

	subscribed, backendErr := m.backend.PushStatus(ctx)
	if backendErr == nil {
		m.setSubscribed(subscribed)
		return SourceBackend, nil
	}
	m.logger.Warn().Err(backendErr).Msg("backend push status unavailable, asking the platform")

	reg, err := m.platform.Ready(ctx)
	if err != nil {
		return SourceNone, fmt.Errorf("push.Reconcile: %w", clienterrors.Join(backendErr, err))
	}
	sub, err := reg.GetSubscription(ctx)
	if err != nil {
		return SourceNone, fmt.Errorf("push.Reconcile: %w", clienterrors.Join(backendErr, err))
	}
	m.setSubscribed(sub != nil)
	return SourcePlatform, nil
}

// Subscribe asks for permission, subscribes on the platform and registers the
// subscription with the backend. Subscribed only becomes true once the backend
// has accepted it.
func (m *Manager) Subscribe(ctx context.Context) Result {
	m.op.Lock()
	defer m.op.Unlock()
	return m.runSubscribe(ctx)
}

func (m *Manager) runSubscribe(ctx context.Context) Result {
	if !m.State().Supported {
		return failure(clienterrors.ErrNotSupported)
	}
	m.setLoading(true)
	defer m.setLoading(false)

	if err := m.subscribe(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("push subscribe failed")
		return failure(err)
	}
	m.logger.Info().Msg("push subscription registered")
	return Result{Success: true}
}

func (m *Manager) subscribe(ctx context.Context) error {
	permission, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return clienterrors.Wrapf(err, "push.Subscribe request permission")
	}
	m.update(func(s *State) { s.Permission = permission })
	if permission != PermissionGranted {
		return clienterrors.ErrPermissionDenied
	}

	key, err := DecodeApplicationServerKey(m.vapidKey)
	if err != nil {
		return err
	}
	reg, err := m.platform.Ready(ctx)
	if err != nil {
		return clienterrors.Wrapf(err, "push.Subscribe ready")
	}
	sub, err := reg.Subscribe(ctx, SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: key})
	if err != nil {
		return clienterrors.Wrapf(err, "push.Subscribe")
	}

	p256dh, auth := sub.Key(KeyP256dh), sub.Key(KeyAuth)
	if len(p256dh) == 0 || len(auth) == 0 {
		return clienterrors.ErrMissingSubscriptionKeys
	}
	record := api.PushSubscription{
		Endpoint: sub.Endpoint(),
		Keys: api.PushKeys{
			P256dh: EncodeKey(p256dh),
			Auth:   EncodeKey(auth),
		},
		Browser: m.browser,
	}
	// A rejected record leaves the platform subscription in place
	if err := m.backend.PushSubscribe(ctx, record); err != nil {
		return err
	}
	m.setSubscribed(true)
	return nil
}

// Unsubscribe removes the backend record first, then the platform
// subscription, so a platform failure never orphans a backend record
func (m *Manager) Unsubscribe(ctx context.Context) Result {
	m.op.Lock()
	defer m.op.Unlock()
	return m.runUnsubscribe(ctx)
}

func (m *Manager) runUnsubscribe(ctx context.Context) Result {
	if !m.State().Supported {
		return failure(clienterrors.ErrNotSupported)
	}
	m.setLoading(true)
	defer m.setLoading(false)

	if err := m.unsubscribe(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("push unsubscribe failed")
		return failure(err)
	}
	m.logger.Info().Msg("push subscription removed")
	return Result{Success: true}
}

func (m *Manager) unsubscribe(ctx context.Context) error {
	reg, err := m.platform.Ready(ctx)
	if err != nil {
		return clienterrors.Wrapf(err, "push.Unsubscribe ready")
	}
	sub, err := reg.GetSubscription(ctx)
	if err != nil {
		return clienterrors.Wrapf(err, "push.Unsubscribe")
	}

	if sub == nil {
		if err := m.backend.PushUnsubscribe(ctx, ""); err != nil {
			return err
		}
		m.setSubscribed(false)
		return nil
	}

	if err := m.backend.PushUnsubscribe(ctx, sub.Endpoint()); err != nil {
		return err
	}
	m.setSubscribed(false)
	if _, err := sub.Unsubscribe(ctx); err != nil {
		return clienterrors.Wrapf(err, "push.Unsubscribe platform")
	}
	return nil
}

// Toggle unsubscribes when subscribed and subscribes otherwise. The choice is
// made under the same lock as the operation, so concurrent toggles alternate.
func (m *Manager) Toggle(ctx context.Context) Result {
	m.op.Lock()
	defer m.op.Unlock()
	if m.State().Subscribed {
		return m.runUnsubscribe(ctx)
	}
	return m.runSubscribe(ctx)
}

func (m *Manager) setSubscribed(subscribed bool) {
	m.update(func(s *State) { s.Subscribed = subscribed })
}

func (m *Manager) setLoading(loading bool) {
	m.update(func(s *State) { s.Loading = loading })
}

func (m *Manager) update(fn func(*State)) {
	m.lock.Lock()
	before := m.state
	fn(&m.state)
	after := m.state
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.lock.Unlock()

	if before == after {
		return
	}
	for _, l := range listeners {
		l(after)
	}
}
