package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// ExpiryLeeway treats tokens that expire within this window as already expired
const ExpiryLeeway = 10 * time.Second

// AccessTokenExpiry reads the exp claim of a JWT access token without verifying
// its signature. The client cannot verify it and only uses the value to skip a
// request that is certain to be rejected. ok is false for opaque tokens.
func AccessTokenExpiry(raw string) (expiry time.Time, ok bool) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// AccessTokenExpired reports whether raw is a JWT whose exp claim has passed.
// Tokens without a readable exp claim are never considered expired; the server decides.
func AccessTokenExpired(raw string) bool {
	expiry, ok := AccessTokenExpiry(raw)
	if !ok {
		return false
	}
	return !NowTimeFunc().Add(ExpiryLeeway).Before(expiry)
}
