package platform_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jrsteele09/go-officehours-client/api"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/platform"
	"github.com/jrsteele09/go-officehours-client/push"
	"github.com/jrsteele09/go-officehours-client/worker"
	"github.com/stretchr/testify/require"
)

type chanNotifier struct {
	shown chan worker.Notification
}

func (c *chanNotifier) ShowNotification(_ context.Context, n worker.Notification) error {
	c.shown <- n
	return nil
}

type countingPrompter struct {
	mu      sync.Mutex
	answer  bool
	prompts int
}

func (p *countingPrompter) Prompt(_ context.Context, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts++
	return p.answer, nil
}

// recordingBackend keeps the last subscription record it was given
type recordingBackend struct {
	mu     sync.Mutex
	record *api.PushSubscription
}

func (b *recordingBackend) PushStatus(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record != nil, nil
}

func (b *recordingBackend) PushSubscribe(_ context.Context, sub api.PushSubscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record = &sub
	return nil
}

func (b *recordingBackend) PushUnsubscribe(_ context.Context, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record = nil
	return nil
}

type testPlatform struct {
	local    *platform.Local
	server   *httptest.Server
	worker   *worker.Worker
	notifier *chanNotifier
}

func newTestPlatform(t *testing.T, prompter platform.Prompter) *testPlatform {
	t.Helper()
	tp := &testPlatform{notifier: &chanNotifier{shown: make(chan worker.Notification, 4)}}
	tp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tp.local.ServeHTTP(w, r)
	}))
	t.Cleanup(tp.server.Close)

	tp.worker = worker.New(tp.notifier)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tp.worker.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.NoError(t, tp.worker.Post(ctx, worker.SkipWaiting{}))

	local, err := platform.NewLocal(tp.server.URL, tp.worker, prompter)
	require.NoError(t, err)
	tp.local = local
	return tp
}

func TestNewLocal(t *testing.T) {
	l, err := platform.NewLocal("", nil, nil)
	require.NoError(t, err)
	require.False(t, l.HasServiceWorker())
	require.False(t, l.HasPushManager())

	_, err = l.Ready(context.Background())
	require.ErrorIs(t, err, clienterrors.ErrServiceWorkerNotRegistered)

	_, err = platform.NewLocal("not a url", nil, nil)
	require.Error(t, err)
}

func TestLocal_PermissionIsSticky(t *testing.T) {
	ctx := context.Background()

	t.Run("Denied", func(t *testing.T) {
		prompter := &countingPrompter{answer: false}
		l, err := platform.NewLocal("https://client.example", nil, prompter)
		require.NoError(t, err)
		require.Equal(t, push.PermissionDefault, l.Permission())

		for i := 0; i < 3; i++ {
			p, err := l.RequestPermission(ctx)
			require.NoError(t, err)
			require.Equal(t, push.PermissionDenied, p)
		}
		require.Equal(t, 1, prompter.prompts)
	})

	t.Run("Granted", func(t *testing.T) {
		prompter := &countingPrompter{answer: true}
		l, err := platform.NewLocal("https://client.example", nil, prompter)
		require.NoError(t, err)

		p, err := l.RequestPermission(ctx)
		require.NoError(t, err)
		require.Equal(t, push.PermissionGranted, p)
		require.Equal(t, push.PermissionGranted, l.Permission())
	})

	t.Run("NoPrompter", func(t *testing.T) {
		l, err := platform.NewLocal("https://client.example", nil, nil)
		require.NoError(t, err)
		p, err := l.RequestPermission(ctx)
		require.NoError(t, err)
		require.Equal(t, push.PermissionDefault, p)
	})

	t.Run("Preset", func(t *testing.T) {
		prompter := &countingPrompter{answer: true}
		l, err := platform.NewLocal("https://client.example", nil, prompter, platform.WithPermission(push.PermissionDenied))
		require.NoError(t, err)
		p, err := l.RequestPermission(ctx)
		require.NoError(t, err)
		require.Equal(t, push.PermissionDenied, p)
		require.Zero(t, prompter.prompts)
	})
}

func TestLocal_ReadyWaitsForActivation(t *testing.T) {
	w := worker.New(&chanNotifier{shown: make(chan worker.Notification, 1)})
	l, err := platform.NewLocal("https://client.example", w, nil)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Ready(short)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = w.Run(ctx) }()
	require.NoError(t, w.Post(ctx, worker.SkipWaiting{}))

	reg, err := l.Ready(ctx)
	require.NoError(t, err)
	sub, err := reg.GetSubscription(ctx)
	require.NoError(t, err)
	require.Nil(t, sub)
}

func TestLocal_Subscribe(t *testing.T) {
	ctx := context.Background()
	_, vapidPublic, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	serverKey, err := push.DecodeApplicationServerKey(vapidPublic)
	require.NoError(t, err)

	tp := newTestPlatform(t, &countingPrompter{answer: true})
	reg, err := tp.local.Ready(ctx)
	require.NoError(t, err)

	_, err = reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: serverKey})
	require.ErrorIs(t, err, clienterrors.ErrPermissionDenied, "permission must be granted first")

	_, err = tp.local.RequestPermission(ctx)
	require.NoError(t, err)

	_, err = reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: serverKey[:33]})
	require.ErrorIs(t, err, clienterrors.ErrInvalidApplicationServerKey)

	sub, err := reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: serverKey})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sub.Endpoint(), tp.server.URL+platform.PushPathPrefix))
	require.Len(t, sub.Key(push.KeyP256dh), 65)
	require.Len(t, sub.Key(push.KeyAuth), 16)

	again, err := reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: serverKey})
	require.NoError(t, err)
	require.Equal(t, sub.Endpoint(), again.Endpoint())

	_, otherPublic, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	otherKey, err := push.DecodeApplicationServerKey(otherPublic)
	require.NoError(t, err)
	_, err = reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: otherKey})
	require.ErrorIs(t, err, clienterrors.ErrInvalidApplicationServerKey)

	current, err := reg.GetSubscription(ctx)
	require.NoError(t, err)
	require.Equal(t, sub.Endpoint(), current.Endpoint())

	removed, err := sub.Unsubscribe(ctx)
	require.NoError(t, err)
	require.True(t, removed)
	current, err = reg.GetSubscription(ctx)
	require.NoError(t, err)
	require.Nil(t, current)
}

// TestWebPushEndToEnd subscribes through the push manager, sends a real
// encrypted Web Push message to the endpoint the backend received, and checks
// the worker displays it
func TestWebPushEndToEnd(t *testing.T) {
	ctx := context.Background()
	vapidPrivate, vapidPublic, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	tp := newTestPlatform(t, &countingPrompter{answer: true})
	backend := &recordingBackend{}
	manager := push.New(tp.local, backend, vapidPublic, push.WithUserAgent("Go-http-client/1.1"))

	state := manager.Mount(ctx)
	require.True(t, state.Supported)
	require.False(t, state.Subscribed)
	require.Equal(t, push.Result{Success: true}, manager.Subscribe(ctx))
	require.True(t, manager.State().Subscribed)

	record := backend.record
	require.NotNil(t, record)
	require.Equal(t, "unknown", record.Browser)

	// the backend stores standard base64; a sender works with the raw bytes
	p256dh, err := base64.StdEncoding.DecodeString(record.Keys.P256dh)
	require.NoError(t, err)
	auth, err := base64.StdEncoding.DecodeString(record.Keys.Auth)
	require.NoError(t, err)

	send := func(payload string) *http.Response {
		resp, err := webpush.SendNotification([]byte(payload), &webpush.Subscription{
			Endpoint: record.Endpoint,
			Keys: webpush.Keys{
				P256dh: base64.RawURLEncoding.EncodeToString(p256dh),
				Auth:   base64.RawURLEncoding.EncodeToString(auth),
			},
		}, &webpush.Options{
			Subscriber:      "ta@officehours.example.edu",
			VAPIDPublicKey:  vapidPublic,
			VAPIDPrivateKey: vapidPrivate,
			TTL:             60,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := send(`{"head":"You're up!","body":"A TA is ready for you in room 204","url":"/queue/42","tag":"queue"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case n := <-tp.notifier.shown:
		require.Equal(t, "You're up!", n.Title)
		require.Equal(t, "A TA is ready for you in room 204", n.Body)
		require.Equal(t, "/queue/42", n.URL)
		require.Equal(t, "queue", n.Tag)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not shown")
	}

	resp = send("plain text reminder")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	n := <-tp.notifier.shown
	require.Equal(t, worker.DefaultTitle, n.Title)
	require.Equal(t, "plain text reminder", n.Body)

	require.Equal(t, push.Result{Success: true}, manager.Unsubscribe(ctx))
	require.Nil(t, backend.record)

	resp = send(`{"head":"late"}`)
	require.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestLocal_ServeHTTPRejects(t *testing.T) {
	ctx := context.Background()
	_, vapidPublic, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	serverKey, err := push.DecodeApplicationServerKey(vapidPublic)
	require.NoError(t, err)

	tp := newTestPlatform(t, &countingPrompter{answer: true})
	_, err = tp.local.RequestPermission(ctx)
	require.NoError(t, err)
	reg, err := tp.local.Ready(ctx)
	require.NoError(t, err)
	sub, err := reg.Subscribe(ctx, push.SubscribeOptions{UserVisibleOnly: true, ApplicationServerKey: serverKey})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		url    string
		header map[string]string
		want   int
	}{
		{"UnknownPath", http.MethodPost, tp.server.URL + "/other", nil, http.StatusNotFound},
		{"WrongMethod", http.MethodGet, sub.Endpoint(), nil, http.StatusMethodNotAllowed},
		{"UnknownSubscription", http.MethodPost, tp.server.URL + platform.PushPathPrefix + "missing", nil, http.StatusGone},
		{"NoVAPID", http.MethodPost, sub.Endpoint(), map[string]string{"Content-Encoding": "aes128gcm"}, http.StatusForbidden},
		{"ForeignVAPIDKey", http.MethodPost, sub.Endpoint(), map[string]string{
			"Content-Encoding": "aes128gcm",
			"Authorization":    "vapid t=abc.def.ghi, k=" + base64.RawURLEncoding.EncodeToString(make([]byte, 65)),
		}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, tt.url, strings.NewReader("x"))
			require.NoError(t, err)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
