package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-officehours-client/api"
	"github.com/jrsteele09/go-officehours-client/httpclient"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/users"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   string
}

func newTestAPI(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*api.Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: string(data)})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return api.New(httpclient.New(srv.URL)), &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestExchangeProvider(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"access":  "a1",
				"refresh": "r1",
				"user":    map[string]any{"id": 3, "email": "sam@example.edu", "user_type": "student", "is_verified": true},
			})
		})
		payload, err := client.ExchangeProvider(context.Background(), "google", api.ProviderCredential{IDToken: "idt"})
		require.NoError(t, err)
		require.Equal(t, "a1", payload.Access)
		require.Equal(t, "r1", payload.Refresh)
		require.NotNil(t, payload.User)
		require.Equal(t, users.UserTypeStudent, payload.User.Type)

		require.Len(t, *calls, 1)
		require.Equal(t, "/api/auth/google/", (*calls)[0].path)
		require.JSONEq(t, `{"id_token":"idt"}`, (*calls)[0].body)
	})

	t.Run("Rejected", func(t *testing.T) {
		client, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id token"})
		})
		_, err := client.ExchangeProvider(context.Background(), "google", api.ProviderCredential{IDToken: "bad"})
		require.ErrorIs(t, err, clienterrors.ErrProviderCredentialRejected)
		require.True(t, httpclient.IsStatus(err, http.StatusBadRequest))
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("Rotated", func(t *testing.T) {
		client, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"access": "a2", "refresh": "r2"})
		})
		resp, err := client.RefreshToken(context.Background(), "r1")
		require.NoError(t, err)
		require.Equal(t, "a2", resp.Access)
		require.NotNil(t, resp.Refresh)
		require.Equal(t, "r2", *resp.Refresh)
		require.Equal(t, api.TokenRefreshPath, (*calls)[0].path)
		require.JSONEq(t, `{"refresh":"r1"}`, (*calls)[0].body)
	})

	t.Run("NotRotated", func(t *testing.T) {
		client, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"access": "a2"})
		})
		resp, err := client.RefreshToken(context.Background(), "r1")
		require.NoError(t, err)
		require.Nil(t, resp.Refresh)
	})

	t.Run("Expired", func(t *testing.T) {
		client, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is blacklisted"})
		})
		_, err := client.RefreshToken(context.Background(), "r1")
		require.True(t, httpclient.IsUnauthorized(err))
	})
}

func TestCurrentUserAndLogout(t *testing.T) {
	client, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case api.UserDataPath:
			writeJSON(w, http.StatusOK, map[string]any{"id": 9, "email": "ta@example.edu", "first_name": "Ada", "user_type": "ta"})
		case api.LogoutPath:
			w.WriteHeader(http.StatusResetContent)
		}
	})

	u, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(9), u.ID)
	require.True(t, u.IsTA())

	require.NoError(t, client.Logout(context.Background(), "r1"))
	require.Equal(t, http.MethodPost, (*calls)[1].method)
	require.JSONEq(t, `{"refresh":"r1"}`, (*calls)[1].body)
}

func TestPushEndpoints(t *testing.T) {
	client, calls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]bool{"subscribed": true})
		case http.MethodPost:
			writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	subscribed, err := client.PushStatus(ctx)
	require.NoError(t, err)
	require.True(t, subscribed)

	sub := api.PushSubscription{
		Endpoint: "https://push.example/abc",
		Keys:     api.PushKeys{P256dh: "BPk=", Auth: "YXV0aA=="},
		Browser:  "firefox",
	}
	require.NoError(t, client.PushSubscribe(ctx, sub))
	require.NoError(t, client.PushUnsubscribe(ctx, sub.Endpoint))
	require.NoError(t, client.PushUnsubscribe(ctx, ""))

	require.Len(t, *calls, 4)
	require.JSONEq(t, `{"endpoint":"https://push.example/abc","keys":{"p256dh":"BPk=","auth":"YXV0aA=="},"browser":"firefox"}`, (*calls)[1].body)
	require.JSONEq(t, `{"endpoint":"https://push.example/abc"}`, (*calls)[2].body)
	require.JSONEq(t, `{}`, (*calls)[3].body)
	for _, c := range *calls {
		require.Equal(t, api.PushSubscribePath, c.path)
	}
}

func TestPushSubscribeNotConfirmed(t *testing.T) {
	client, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "quota exceeded"})
	})
	err := client.PushSubscribe(context.Background(), api.PushSubscription{Endpoint: "https://push.example/abc"})
	require.ErrorContains(t, err, "quota exceeded")
}
