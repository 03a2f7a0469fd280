package session

import "github.com/jrsteele09/go-officehours-client/users"

// Status is the lifecycle phase of the session
type Status string

const (
	StatusBootstrapping Status = "bootstrapping"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// State is a snapshot of the session for UI consumers
type State struct {
	Status       Status
	AccessToken  string
	RefreshToken string
	User         *users.User
	Loading      bool
}

// Authenticated reports whether the session holds a user and both tokens
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.AccessToken != "" && s.RefreshToken != "" && s.User != nil
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}
