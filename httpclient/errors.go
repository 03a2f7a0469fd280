package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a non-2xx response from the office-hours API
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *HTTPError with the given status code
func IsStatus(err error, code int) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode == code
	}
	return false
}

// IsUnauthorized reports whether err is a 401 from the API
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// IsClientError reports whether the server answered with a 4xx status,
// i.e. it understood the request and rejected it.
func IsClientError(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode >= 400 && he.StatusCode < 500
	}
	return false
}
