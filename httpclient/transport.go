package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultExcludedPrefix covers the login, refresh and logout endpoints. A 401
// from any of them is final and never triggers a refresh.
const DefaultExcludedPrefix = "/api/auth/"

// TokenProvider returns the current access token, or "" when anonymous
type TokenProvider interface {
	GetToken() string
}

// Refresher is the session side of the retry path. ReplaceRejectedToken returns
// an access token to replay with; it only hits the network when rejected is
// still the session's current token.
type Refresher interface {
	ReplaceRejectedToken(ctx context.Context, rejected string) (string, error)
	ForceLogout(ctx context.Context)
}

type retriedKey struct{}

// WithoutRetry marks ctx so a 401 on its request is returned as is. Replays
// carry the mark, and callers that run their own refresh-then-retry set it.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// Retried reports whether ctx is marked by WithoutRetry
func Retried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// AuthTransport attaches the session bearer token and recovers from a single
// 401 per request by refreshing the session and replaying the request once.
type AuthTransport struct {
	base      http.RoundTripper
	tokens    TokenProvider
	refresher Refresher
	excluded  []string
	logger    zerolog.Logger
}

// NewAuthTransport wraps base. A nil base uses http.DefaultTransport.
func NewAuthTransport(base http.RoundTripper, tokens TokenProvider, refresher Refresher, logger zerolog.Logger) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{
		base:      base,
		tokens:    tokens,
		refresher: refresher,
		excluded:  []string{DefaultExcludedPrefix},
		logger:    logger,
	}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Requests that bring their own Authorization header are not session requests
	if req.Header.Get("Authorization") != "" || t.tokens == nil {
		return t.base.RoundTrip(req)
	}

	sent := t.tokens.GetToken()
	out := req
	if sent != "" {
		out = withBearer(req.Context(), req, sent)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if sent == "" || t.refresher == nil || t.isExcluded(req.URL.Path) || Retried(req.Context()) {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		t.logger.Warn().Str("path", req.URL.Path).Msg("401 on a request whose body cannot be replayed")
		return resp, nil
	}

	ctx := req.Context()
	current := t.tokens.GetToken()
	switch {
	case current == "":
		// Logged out while this request was in flight
		return resp, nil
	case current == sent:
		current, err = t.refresher.ReplaceRejectedToken(ctx, sent)
		if err != nil {
			t.endSession(ctx, sent, req.URL.Path, "refresh failed")
			return resp, nil
		}
	default:
		t.logger.Debug().Str("path", req.URL.Path).Msg("token rotated while in flight, replaying without refresh")
	}

	retry := withBearer(WithoutRetry(ctx), req, current)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	drain(resp)

	retryResp, err := t.base.RoundTrip(retry)
	if err != nil {
		return nil, err
	}
	if retryResp.StatusCode == http.StatusUnauthorized {
		t.endSession(ctx, current, req.URL.Path, "replay rejected")
	}
	return retryResp, nil
}

// endSession forces a logout only while the session still holds the token that
// failed. A session that was logged out or replaced in the meantime is left alone.
func (t *AuthTransport) endSession(ctx context.Context, failed, path, reason string) {
	if t.tokens.GetToken() != failed {
		t.logger.Debug().Str("path", path).Msg(reason + ", session already changed")
		return
	}
	t.logger.Info().Str("path", path).Msg(reason + ", ending session")
	t.refresher.ForceLogout(ctx)
}

func (t *AuthTransport) isExcluded(path string) bool {
	for _, prefix := range t.excluded {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func withBearer(ctx context.Context, req *http.Request, accessToken string) *http.Request {
	r := req.Clone(ctx)
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(r)
	return r
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
