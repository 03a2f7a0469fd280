package worker_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-officehours-client/worker"
	"github.com/stretchr/testify/require"
)

type chanNotifier struct {
	shown chan worker.Notification
	err   error
}

func (c *chanNotifier) ShowNotification(_ context.Context, n worker.Notification) error {
	c.shown <- n
	return c.err
}

type chanOpener struct {
	opened chan string
}

func (c *chanOpener) OpenWindow(_ context.Context, u string) error {
	c.opened <- u
	return nil
}

func startWorker(t *testing.T, notifier worker.Notifier, opts ...worker.Option) *worker.Worker {
	t.Helper()
	w := worker.New(notifier, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker")
	}
	var zero T
	return zero
}

func TestWorker_SkipWaitingActivates(t *testing.T) {
	w := startWorker(t, &chanNotifier{shown: make(chan worker.Notification, 1)})
	require.Equal(t, worker.LifecycleWaiting, w.Lifecycle())

	require.NoError(t, w.Post(context.Background(), worker.SkipWaiting{}))
	receive(t, w.Activated())
	require.Equal(t, worker.LifecycleActive, w.Lifecycle())

	// a second activation is harmless
	require.NoError(t, w.Post(context.Background(), worker.SkipWaiting{}))
}

func TestWorker_PushEventShowsNotification(t *testing.T) {
	notifier := &chanNotifier{shown: make(chan worker.Notification, 1)}
	w := startWorker(t, notifier)

	payload := `{"head":"Queue update","body":"You are next","tag":"queue-42","url":"/queue/42","requireInteraction":true,"actions":[{"action":"view","title":"View"}]}`
	require.NoError(t, w.Post(context.Background(), worker.PushEvent{Data: []byte(payload)}))

	n := receive(t, notifier.shown)
	require.Equal(t, "Queue update", n.Title)
	require.Equal(t, "You are next", n.Body)
	require.Equal(t, "queue-42", n.Tag)
	require.Equal(t, "/queue/42", n.URL)
	require.True(t, n.RequireInteraction)
	require.Equal(t, []worker.Action{{Action: "view", Title: "View"}}, n.Actions)
	require.NotEmpty(t, n.ID)
}

func TestWorker_NotifierFailureKeepsRunning(t *testing.T) {
	notifier := &chanNotifier{shown: make(chan worker.Notification, 2), err: errors.New("display unavailable")}
	w := startWorker(t, notifier)

	require.NoError(t, w.Post(context.Background(), worker.PushEvent{}))
	receive(t, notifier.shown)
	require.NoError(t, w.Post(context.Background(), worker.PushEvent{Data: []byte("second")}))
	require.Equal(t, "second", receive(t, notifier.shown).Body)
}

func TestWorker_NotificationClick(t *testing.T) {
	origin, err := url.Parse("https://officehours.example.edu")
	require.NoError(t, err)
	opener := &chanOpener{opened: make(chan string, 3)}
	notifier := &chanNotifier{shown: make(chan worker.Notification, 1)}
	w := startWorker(t, notifier, worker.WithOpener(opener), worker.WithOrigin(origin))
	ctx := context.Background()

	require.NoError(t, w.Post(ctx, worker.NotificationClick{Notification: worker.Notification{URL: "/queue/42"}}))
	require.Equal(t, "https://officehours.example.edu/queue/42", receive(t, opener.opened))

	require.NoError(t, w.Post(ctx, worker.NotificationClick{Notification: worker.Notification{URL: "/queue/42"}, Action: worker.DismissAction}))
	require.NoError(t, w.Post(ctx, worker.NotificationClick{Notification: worker.Notification{}, Action: "view"}))
	require.Equal(t, "https://officehours.example.edu/", receive(t, opener.opened))
}

func TestWorker_PostAfterStop(t *testing.T) {
	w := worker.New(&chanNotifier{shown: make(chan worker.Notification, 1)}, worker.WithMailboxSize(0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	err := w.Post(context.Background(), worker.SkipWaiting{})
	require.ErrorContains(t, err, "worker stopped")
}
