package push

import (
	"context"

	"github.com/jrsteele09/go-officehours-client/api"
)

// Permission is the notification permission owned by the platform
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// KeyName names a subscription key
type KeyName string

const (
	KeyP256dh KeyName = "p256dh"
	KeyAuth   KeyName = "auth"
)

// Platform is the push capability of the runtime: a service worker host with
// a push manager and a notification permission
type Platform interface {
	HasServiceWorker() bool
	HasPushManager() bool
	Permission() Permission
	// RequestPermission may prompt the user. Once denied it must not prompt again.
	RequestPermission(ctx context.Context) (Permission, error)
	// Ready blocks until the service worker registration is active
	Ready(ctx context.Context) (Registration, error)
}

// Registration is an active service worker registration
type Registration interface {
	// GetSubscription returns nil when there is no current subscription
	GetSubscription(ctx context.Context) (Subscription, error)
	Subscribe(ctx context.Context, opts SubscribeOptions) (Subscription, error)
}

// SubscribeOptions are passed to Registration.Subscribe
type SubscribeOptions struct {
	UserVisibleOnly      bool
	ApplicationServerKey []byte
}

// Subscription is a platform push subscription
type Subscription interface {
	Endpoint() string
	// Key returns the raw key bytes, or nil when the key is missing
	Key(name KeyName) []byte
	Unsubscribe(ctx context.Context) (bool, error)
}

// Backend is the subscription record keeper on the office-hours API
type Backend interface {
	PushStatus(ctx context.Context) (bool, error)
	PushSubscribe(ctx context.Context, sub api.PushSubscription) error
	PushUnsubscribe(ctx context.Context, endpoint string) error
}
