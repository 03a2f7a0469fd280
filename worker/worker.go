package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
)

// DismissAction closes a notification without opening anything
const DismissAction = "dismiss"

// Notifier displays notifications
type Notifier interface {
	ShowNotification(ctx context.Context, n Notification) error
}

// Opener focuses or opens a window on a URL
type Opener interface {
	OpenWindow(ctx context.Context, url string) error
}

// Worker is the background notification actor. It shares nothing with the
// session; everything reaches it through its mailbox.
type Worker struct {
	mailbox  chan Message
	notifier Notifier
	opener   Opener
	origin   *url.URL
	defaults Defaults
	logger   zerolog.Logger

	activated    chan struct{}
	activateOnce sync.Once
	stopped      chan struct{}
}

type Option func(*Worker)

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithOpener sets where notification clicks are sent
func WithOpener(o Opener) Option {
	return func(w *Worker) {
		w.opener = o
	}
}

// WithOrigin resolves relative notification URLs against origin
func WithOrigin(origin *url.URL) Option {
	return func(w *Worker) {
		w.origin = origin
	}
}

func WithDefaults(d Defaults) Option {
	return func(w *Worker) {
		w.defaults = d
	}
}

// WithMailboxSize sets how many messages may queue before Post blocks
func WithMailboxSize(n int) Option {
	return func(w *Worker) {
		w.mailbox = make(chan Message, n)
	}
}

// New installs a worker. It starts in the waiting phase until it receives SkipWaiting.
func New(notifier Notifier, opts ...Option) *Worker {
	w := &Worker{
		mailbox:  make(chan Message, 16),
		notifier: notifier,
		defaults: Defaults{
			Title: DefaultTitle,
			Body:  DefaultBody,
			Icon:  DefaultIcon,
			URL:   DefaultURL,
		},
		logger:    zerolog.Nop(),
		activated: make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Activated is closed once the worker is active
func (w *Worker) Activated() <-chan struct{} {
	return w.activated
}

func (w *Worker) Lifecycle() Lifecycle {
	select {
	case <-w.activated:
		return LifecycleActive
	default:
		return LifecycleWaiting
	}
}

// Post delivers a message to the mailbox
func (w *Worker) Post(ctx context.Context, msg Message) error {
	select {
	case w.mailbox <- msg:
		return nil
	case <-w.stopped:
		return fmt.Errorf("worker.Post: worker stopped")
	case <-ctx.Done():
		return fmt.Errorf("worker.Post: %w", ctx.Err())
	}
}

// Run processes the mailbox until ctx is done. A failing message is logged and
// never stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-w.mailbox:
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case SkipWaiting:
		w.activateOnce.Do(func() {
			close(w.activated)
			w.logger.Info().Msg("worker activated")
		})
	case PushEvent:
		n := BuildNotification(m.Data, w.defaults)
		if err := w.notifier.ShowNotification(ctx, n); err != nil {
			w.logger.Error().Err(err).Str("tag", n.Tag).Msg("could not show notification")
		}
	case NotificationClick:
		w.click(ctx, m)
	default:
		w.logger.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unknown worker message")
	}
}

func (w *Worker) click(ctx context.Context, m NotificationClick) {
	if m.Action == DismissAction || w.opener == nil {
		return
	}
	target := w.resolve(m.Notification.URL)
	if err := w.opener.OpenWindow(ctx, target); err != nil {
		w.logger.Error().Err(err).Str("url", target).Msg("could not open notification url")
	}
}

func (w *Worker) resolve(raw string) string {
	if raw == "" {
		raw = w.defaults.URL
	}
	if w.origin == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return w.origin.ResolveReference(ref).String()
}
