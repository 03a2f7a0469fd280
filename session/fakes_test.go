package session_test

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-officehours-client/api"
	"github.com/jrsteele09/go-officehours-client/httpclient"
	"github.com/jrsteele09/go-officehours-client/users"
)

var (
	errOffline   = errors.New("dial tcp: connection refused")
	unauthorized = &httpclient.HTTPError{StatusCode: http.StatusUnauthorized, Message: "Token is invalid or expired"}
)

// fakeAPI records every call in order
type fakeAPI struct {
	mu           sync.Mutex
	calls        []string
	user         *users.User
	userErr      error
	userFailures int
	refresh      api.RefreshResponse
	refreshErr   error
	exchange     *api.SessionPayload
	exchangeErr  error
	logoutErr    error
	refreshSeen  []string
	logoutSeen   []string
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) ExchangeProvider(_ context.Context, provider string, _ any) (*api.SessionPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("exchange:" + provider)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchange, nil
}

func (f *fakeAPI) RefreshToken(_ context.Context, refresh string) (*api.RefreshResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("refresh")
	f.refreshSeen = append(f.refreshSeen, refresh)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	resp := f.refresh
	return &resp, nil
}

func (f *fakeAPI) Logout(_ context.Context, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("logout")
	f.logoutSeen = append(f.logoutSeen, refresh)
	return f.logoutErr
}

func (f *fakeAPI) CurrentUser(_ context.Context) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("user")
	if f.userFailures > 0 {
		f.userFailures--
		return nil, f.userErr
	}
	if f.user == nil {
		return nil, f.userErr
	}
	u := *f.user
	return &u, nil
}

func fixtureUser() *users.User {
	return &users.User{ID: 3, Email: "sam@example.edu", FirstName: "Sam", Type: users.UserTypeStudent, Verified: true}
}
