package platform

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
)

// verifyVAPID checks an RFC 8292 "vapid t=<jwt>, k=<key>" Authorization header
// against the application server key the subscription was created with
func verifyVAPID(header, audience string, serverKey []byte) error {
	scheme, params, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "vapid") {
		return fmt.Errorf("%w: missing vapid authorization", clienterrors.ErrPermissionDenied)
	}

	var token, key string
	for _, part := range strings.Split(params, ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch name {
		case "t":
			token = value
		case "k":
			key = value
		}
	}

	k, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil || !bytes.Equal(k, serverKey) {
		return fmt.Errorf("%w: vapid key does not match the subscription", clienterrors.ErrPermissionDenied)
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(serverKey[1:33]),
		Y:     new(big.Int).SetBytes(serverKey[33:65]),
	}
	_, err = jwt.Parse(token, func(*jwt.Token) (any, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: vapid token: %w", clienterrors.ErrPermissionDenied, err)
	}
	return nil
}
