package api

import "github.com/jrsteele09/go-officehours-client/users"

// SessionPayload is the response of a provider login exchange.
// Returned from POST /api/auth/<provider>/.
type SessionPayload struct {
	// Access is the short-lived JWT sent as "Authorization: Bearer <access>".
	Access string `json:"access"`

	// Refresh is the long-lived token exchanged at /api/auth/token/refresh/.
	// The backend may rotate it on every refresh.
	Refresh string `json:"refresh"`

	// User is the profile of the account that logged in. Optional; when absent
	// the session fetches it from /api/user-data/.
	User *users.User `json:"user,omitempty"`
}

// RefreshRequest is the body of POST /api/auth/token/refresh/ and POST /api/auth/logout/
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by POST /api/auth/token/refresh/.
type RefreshResponse struct {
	// Access replaces the current access token.
	Access string `json:"access"`

	// Refresh is only present when the backend rotates refresh tokens.
	// When nil the current refresh token stays valid.
	Refresh *string `json:"refresh,omitempty"`
}

// ProviderCredential is the body of POST /api/auth/<provider>/ for OIDC providers
type ProviderCredential struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token,omitempty"`
}

// PushKeys are the subscription keys, standard base64 encoded
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is the body of POST /api/push/subscribe/.
type PushSubscription struct {
	// Endpoint is the push service URL the backend delivers to.
	Endpoint string `json:"endpoint"`

	Keys PushKeys `json:"keys"`

	// Browser is a coarse label such as "chrome" or "firefox". Metadata only.
	Browser string `json:"browser"`
}

// PushUnsubscribeRequest is the body of DELETE /api/push/subscribe/.
// An empty endpoint asks the backend to drop every subscription of the user.
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint,omitempty"`
}

// PushStatusResponse is returned by GET /api/push/subscribe/
type PushStatusResponse struct {
	Subscribed bool `json:"subscribed"`
}

// PushSubscribeResponse is returned by POST /api/push/subscribe/
type PushSubscribeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
