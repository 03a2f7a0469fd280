package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jrsteele09/go-officehours-client/httpclient"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/users"
)

const (
	AuthPathPrefix    = "/api/auth/"
	TokenRefreshPath  = "/api/auth/token/refresh/"
	LogoutPath        = "/api/auth/logout/"
	UserDataPath      = "/api/user-data/"
	PushSubscribePath = "/api/push/subscribe/"
)

// Client is the typed surface of the office-hours REST API
type Client struct {
	http *httpclient.Client
}

func New(c *httpclient.Client) *Client {
	return &Client{http: c}
}

// ExchangeProvider trades a provider credential for a session
func (c *Client) ExchangeProvider(ctx context.Context, provider string, credential any) (*SessionPayload, error) {
	if provider == "" {
		return nil, fmt.Errorf("api.ExchangeProvider: provider is required")
	}
	var payload SessionPayload
	if err := c.http.Post(ctx, AuthPathPrefix+url.PathEscape(provider)+"/", credential, &payload); err != nil {
		if httpclient.IsClientError(err) {
			return nil, fmt.Errorf("api.ExchangeProvider: %w: %w", clienterrors.ErrProviderCredentialRejected, err)
		}
		return nil, clienterrors.Wrapf(err, "api.ExchangeProvider")
	}
	return &payload, nil
}

// RefreshToken exchanges a refresh token for a new access token
func (c *Client) RefreshToken(ctx context.Context, refresh string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.http.Post(ctx, TokenRefreshPath, RefreshRequest{Refresh: refresh}, &resp); err != nil {
		return nil, clienterrors.Wrapf(err, "api.RefreshToken")
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("api.RefreshToken: response has no access token")
	}
	return &resp, nil
}

// Logout asks the backend to invalidate the refresh token
func (c *Client) Logout(ctx context.Context, refresh string) error {
	if err := c.http.Post(ctx, LogoutPath, RefreshRequest{Refresh: refresh}, nil); err != nil {
		return clienterrors.Wrapf(err, "api.Logout")
	}
	return nil
}

// CurrentUser fetches the profile of the authenticated user
func (c *Client) CurrentUser(ctx context.Context) (*users.User, error) {
	var u users.User
	if err := c.http.Get(ctx, UserDataPath, &u); err != nil {
		return nil, clienterrors.Wrapf(err, "api.CurrentUser")
	}
	return &u, nil
}

// PushStatus reports whether the backend holds a push subscription for the user
func (c *Client) PushStatus(ctx context.Context) (bool, error) {
	var resp PushStatusResponse
	if err := c.http.Get(ctx, PushSubscribePath, &resp); err != nil {
		return false, clienterrors.Wrapf(err, "api.PushStatus")
	}
	return resp.Subscribed, nil
}

// PushSubscribe registers a push subscription with the backend
func (c *Client) PushSubscribe(ctx context.Context, sub PushSubscription) error {
	var resp PushSubscribeResponse
	if err := c.http.Post(ctx, PushSubscribePath, sub, &resp); err != nil {
		return clienterrors.Wrapf(err, "api.PushSubscribe")
	}
	if !resp.Success {
		if resp.Error != "" {
			return fmt.Errorf("api.PushSubscribe: %s", resp.Error)
		}
		return fmt.Errorf("api.PushSubscribe: backend did not confirm the subscription")
	}
	return nil
}

// PushUnsubscribe removes the subscription for endpoint, or all of the
// user's subscriptions when endpoint is empty
func (c *Client) PushUnsubscribe(ctx context.Context, endpoint string) error {
	if err := c.http.Delete(ctx, PushSubscribePath, PushUnsubscribeRequest{Endpoint: endpoint}, nil); err != nil {
		return clienterrors.Wrapf(err, "api.PushUnsubscribe")
	}
	return nil
}
