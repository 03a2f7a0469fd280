package push

import (
	"encoding/base64"
	"fmt"
	"strings"

	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
)

// DecodeApplicationServerKey decodes a URL-safe base64 VAPID public key,
// restoring the padding it is usually published without
func DecodeApplicationServerKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("push.DecodeApplicationServerKey: %w: empty key", clienterrors.ErrInvalidApplicationServerKey)
	}
	padded := key + strings.Repeat("=", (4-len(key)%4)%4)
	std := strings.NewReplacer("-", "+", "_", "/").Replace(padded)
	raw, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return nil, fmt.Errorf("push.DecodeApplicationServerKey: %w: %w", clienterrors.ErrInvalidApplicationServerKey, err)
	}
	return raw, nil
}

// EncodeKey encodes subscription key bytes as standard padded base64, the
// form the backend stores
func EncodeKey(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
