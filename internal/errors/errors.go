package errors

import (
	"errors"
	"fmt"
)

// Common error types for the office-hours client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrSessionReplaced  = errors.New("session was replaced while refreshing")
	ErrUserUnavailable  = errors.New("user data unavailable")

	// Push errors
	ErrNotSupported                = errors.New("not supported")
	ErrPermissionDenied            = errors.New("permission denied")
	ErrMissingSubscriptionKeys     = errors.New("subscription is missing p256dh or auth key")
	ErrInvalidApplicationServerKey = errors.New("invalid application server key")
	ErrServiceWorkerNotRegistered  = errors.New("service worker not registered")
	ErrInvalidPushMessage          = errors.New("invalid push message")
	ErrUnsupportedContentEncoding  = errors.New("unsupported content encoding")

	// Login errors
	ErrProviderCredentialRejected = errors.New("provider credential rejected")
	ErrLoginStateMismatch         = errors.New("login state mismatch")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf prefixes err with a call-site label, keeping it matchable with Is.
// A nil err stays nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join combines errors, see errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
