package tokens

import (
	"context"
	"encoding/json"
	"fmt"

	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/users"
)

// Durable storage keys. They match the keys the web client keeps in
// same-origin storage so a session file can be inspected by hand.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// Store is durable key/value persistence for session credentials.
// Values are stored unencrypted; they are only as protected as the backing store.
// Get returns errors.ErrNotFound when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Apply performs every write in b or none of them
	Apply(ctx context.Context, b Batch) error
}

// Batch groups writes that must land together
type Batch struct {
	Set    map[string]string
	Delete []string
}

// Put sets key, or deletes it when value is empty
func (b *Batch) Put(key, value string) {
	if value == "" {
		b.Delete = append(b.Delete, key)
		return
	}
	if b.Set == nil {
		b.Set = make(map[string]string)
	}
	b.Set[key] = value
}

// Empty reports whether the batch holds no writes
func (b Batch) Empty() bool {
	return len(b.Set) == 0 && len(b.Delete) == 0
}

// Credentials is the typed view of everything the session keeps in a Store
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         *users.User
}

// Anonymous reports whether the credentials carry no tokens at all
func (c Credentials) Anonymous() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Load reads the credentials from the store. Missing keys are left empty;
// an unreadable user record is dropped rather than failing the load.
func Load(ctx context.Context, s Store) (Credentials, error) {
	var creds Credentials
	var err error

	if creds.AccessToken, err = getOptional(ctx, s, KeyAccessToken); err != nil {
		return Credentials{}, err
	}
	if creds.RefreshToken, err = getOptional(ctx, s, KeyRefreshToken); err != nil {
		return Credentials{}, err
	}
	rawUser, err := getOptional(ctx, s, KeyUser)
	if err != nil {
		return Credentials{}, err
	}
	if rawUser != "" {
		var u users.User
		if json.Unmarshal([]byte(rawUser), &u) == nil {
			creds.User = &u
		}
	}
	return creds, nil
}

// Save writes every credential field in one batch. Empty fields are deleted
// so the store never holds a value the in-memory session no longer has.
func Save(ctx context.Context, s Store, creds Credentials) error {
	var b Batch
	b.Put(KeyAccessToken, creds.AccessToken)
	b.Put(KeyRefreshToken, creds.RefreshToken)
	if creds.User == nil {
		b.Delete = append(b.Delete, KeyUser)
	} else {
		data, err := json.Marshal(creds.User)
		if err != nil {
			return clienterrors.Wrapf(err, "tokens.Save marshal user")
		}
		b.Put(KeyUser, string(data))
	}
	return clienterrors.Wrapf(s.Apply(ctx, b), "tokens.Save")
}

// SaveTokens writes the token pair in one batch and leaves the user record alone
func SaveTokens(ctx context.Context, s Store, accessToken, refreshToken string) error {
	var b Batch
	b.Put(KeyAccessToken, accessToken)
	b.Put(KeyRefreshToken, refreshToken)
	return clienterrors.Wrapf(s.Apply(ctx, b), "tokens.SaveTokens")
}

// SaveUser serializes the user record, deleting it when u is nil
func SaveUser(ctx context.Context, s Store, u *users.User) error {
	if u == nil {
		return s.Delete(ctx, KeyUser)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return clienterrors.Wrapf(err, "tokens.SaveUser marshal")
	}
	if err := s.Set(ctx, KeyUser, string(data)); err != nil {
		return clienterrors.Wrapf(err, "tokens.SaveUser")
	}
	return nil
}

// Clear removes all session keys
func Clear(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return clienterrors.Wrapf(err, "tokens.Clear")
	}
	return nil
}

func getOptional(ctx context.Context, s Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if clienterrors.Is(err, clienterrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokens.Load %s: %w", key, err)
	}
	return v, nil
}
