package platform

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/push"
	"github.com/jrsteele09/go-officehours-client/worker"
	"github.com/rs/zerolog"
)

const (
	// PushPathPrefix is where subscription endpoints are served
	PushPathPrefix = "/push/"

	authSecretLen  = 16
	maxPushBodyLen = 16 << 10
)

var _ push.Platform = (*Local)(nil)

// Prompter asks the user whether origin may show notifications
type Prompter interface {
	Prompt(ctx context.Context, origin string) (bool, error)
}

// Local is a self-hosted push platform. It plays the browser's role: it owns
// the notification permission, hands out subscriptions whose endpoints it
// serves itself, decrypts what is pushed to them and passes the payload to
// the worker.
type Local struct {
	publicURL *url.URL
	worker    *worker.Worker
	prompter  Prompter
	logger    zerolog.Logger

	lock          sync.RWMutex
	permission    push.Permission
	subscriptions map[string]*Subscription
	current       *Subscription
}

type Option func(*Local)

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Local) {
		l.logger = logger
	}
}

// WithPermission starts the platform with a permission already decided
func WithPermission(p push.Permission) Option {
	return func(l *Local) {
		l.permission = p
	}
}

// NewLocal creates a platform serving endpoints under publicURL. An empty
// publicURL means there is no push manager; a nil worker means no service
// worker is registered.
func NewLocal(publicURL string, w *worker.Worker, prompter Prompter, opts ...Option) (*Local, error) {
	l := &Local{
		worker:        w,
		prompter:      prompter,
		logger:        zerolog.Nop(),
		permission:    push.PermissionDefault,
		subscriptions: make(map[string]*Subscription),
	}
	if publicURL != "" {
		u, err := url.Parse(strings.TrimRight(publicURL, "/"))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("platform.NewLocal: invalid public url %q", publicURL)
		}
		l.publicURL = u
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Local) HasServiceWorker() bool {
	return l.worker != nil
}

func (l *Local) HasPushManager() bool {
	return l.publicURL != nil
}

func (l *Local) Permission() push.Permission {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.permission
}

// RequestPermission prompts only while the permission is undecided. A denial
// is final.
func (l *Local) RequestPermission(ctx context.Context) (push.Permission, error) {
	if current := l.Permission(); current != push.PermissionDefault {
		return current, nil
	}
	if l.prompter == nil {
		return push.PermissionDefault, nil
	}
	allowed, err := l.prompter.Prompt(ctx, l.origin())
	if err != nil {
		return push.PermissionDefault, fmt.Errorf("platform.RequestPermission: %w", err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	if l.permission == push.PermissionDefault {
		l.permission = push.PermissionDenied
		if allowed {
			l.permission = push.PermissionGranted
		}
	}
	return l.permission, nil
}

// Ready blocks until the worker is active
func (l *Local) Ready(ctx context.Context) (push.Registration, error) {
	if l.worker == nil {
		return nil, clienterrors.ErrServiceWorkerNotRegistered
	}
	select {
	case <-l.worker.Activated():
		return registration{platform: l}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("platform.Ready: %w", ctx.Err())
	}
}

func (l *Local) origin() string {
	if l.publicURL == nil {
		return ""
	}
	return l.publicURL.Scheme + "://" + l.publicURL.Host
}

func (l *Local) currentSubscription() push.Subscription {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if l.current == nil {
		return nil
	}
	return l.current
}

func (l *Local) subscribe(opts push.SubscribeOptions) (push.Subscription, error) {
	if l.publicURL == nil {
		return nil, clienterrors.ErrNotSupported
	}
	if l.Permission() != push.PermissionGranted {
		return nil, clienterrors.ErrPermissionDenied
	}
	if !opts.UserVisibleOnly {
		return nil, fmt.Errorf("platform.Subscribe: only user visible subscriptions are supported")
	}
	if err := validateServerKey(opts.ApplicationServerKey); err != nil {
		return nil, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	if l.current != nil {
		if !bytes.Equal(l.current.serverKey, opts.ApplicationServerKey) {
			return nil, fmt.Errorf("platform.Subscribe: %w: a subscription with a different key exists", clienterrors.ErrInvalidApplicationServerKey)
		}
		return l.current, nil
	}

	private, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("platform.Subscribe: %w", err)
	}
	authSecret := make([]byte, authSecretLen)
	if _, err := rand.Read(authSecret); err != nil {
		return nil, fmt.Errorf("platform.Subscribe: %w", err)
	}

	id := uuid.NewString()
	sub := &Subscription{
		id:         id,
		endpoint:   l.publicURL.String() + PushPathPrefix + id,
		private:    private,
		authSecret: authSecret,
		serverKey:  bytes.Clone(opts.ApplicationServerKey),
		platform:   l,
	}
	l.subscriptions[id] = sub
	l.current = sub
	l.logger.Info().Str("endpoint", sub.endpoint).Msg("push subscription created")
	return sub, nil
}

func (l *Local) remove(id string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, ok := l.subscriptions[id]; !ok {
		return false
	}
	delete(l.subscriptions, id)
	if l.current != nil && l.current.id == id {
		l.current = nil
	}
	return true
}

func (l *Local) lookup(id string) (*Subscription, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	sub, ok := l.subscriptions[id]
	return sub, ok
}

// ServeHTTP is the push endpoint: POST /push/<id> with an aes128gcm body
func (l *Local) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutPrefix(r.URL.Path, PushPathPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sub, ok := l.lookup(id)
	if !ok {
		http.Error(w, "subscription expired", http.StatusGone)
		return
	}
	if err := verifyVAPID(r.Header.Get("Authorization"), l.origin(), sub.serverKey); err != nil {
		l.logger.Warn().Err(err).Str("subscription", id).Msg("push rejected")
		http.Error(w, "unauthorized", http.StatusForbidden)
		return
	}
	if enc := r.Header.Get("Content-Encoding"); !strings.EqualFold(enc, "aes128gcm") {
		l.logger.Warn().Str("content_encoding", enc).Msg("push rejected")
		http.Error(w, clienterrors.ErrUnsupportedContentEncoding.Error(), http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBodyLen))
	if err != nil {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}
	var data []byte
	if len(body) > 0 {
		data, err = decryptPush(body, sub.private, sub.authSecret)
		if err != nil {
			l.logger.Warn().Err(err).Str("subscription", id).Msg("push payload could not be decrypted")
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
	}

	if err := l.worker.Post(r.Context(), worker.PushEvent{Data: data}); err != nil {
		l.logger.Error().Err(err).Msg("push could not be delivered to the worker")
		http.Error(w, "worker unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func validateServerKey(key []byte) error {
	if len(key) != 65 || key[0] != 0x04 {
		return fmt.Errorf("%w: want a 65 byte uncompressed P-256 point", clienterrors.ErrInvalidApplicationServerKey)
	}
	if _, err := ecdh.P256().NewPublicKey(key); err != nil {
		return fmt.Errorf("%w: %w", clienterrors.ErrInvalidApplicationServerKey, err)
	}
	return nil
}

type registration struct {
	platform *Local
}

func (r registration) GetSubscription(_ context.Context) (push.Subscription, error) {
	return r.platform.currentSubscription(), nil
}

func (r registration) Subscribe(_ context.Context, opts push.SubscribeOptions) (push.Subscription, error) {
	return r.platform.subscribe(opts)
}

// Subscription is a subscription served by a Local platform
type Subscription struct {
	id         string
	endpoint   string
	private    *ecdh.PrivateKey
	authSecret []byte
	serverKey  []byte
	platform   *Local
}

func (s *Subscription) Endpoint() string {
	return s.endpoint
}

func (s *Subscription) Key(name push.KeyName) []byte {
	switch name {
	case push.KeyP256dh:
		return s.private.PublicKey().Bytes()
	case push.KeyAuth:
		return bytes.Clone(s.authSecret)
	default:
		return nil
	}
}

func (s *Subscription) Unsubscribe(_ context.Context) (bool, error) {
	return s.platform.remove(s.id), nil
}
