package platform

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"golang.org/x/crypto/hkdf"
)

// RFC 8188 / RFC 8291 aes128gcm framing
const (
	saltLen      = 16
	headerMinLen = saltLen + 4 + 1
	tagLen       = 16
	cekLen       = 16
	nonceLen     = 12
	ikmLen       = 32
)

var (
	webPushInfo = []byte("WebPush: info\x00")
	cekInfo     = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo   = []byte("Content-Encoding: nonce\x00")
)

// decryptPush decrypts an aes128gcm Web Push body addressed to the
// subscription owning uaPrivate and authSecret
func decryptPush(body []byte, uaPrivate *ecdh.PrivateKey, authSecret []byte) ([]byte, error) {
	if len(body) < headerMinLen {
		return nil, invalidMessage("body shorter than the content coding header")
	}
	salt := body[:saltLen]
	recordSize := int(binary.BigEndian.Uint32(body[saltLen : saltLen+4]))
	idLen := int(body[saltLen+4])
	if recordSize < tagLen+2 {
		return nil, invalidMessage("record size %d too small", recordSize)
	}
	if len(body) < headerMinLen+idLen {
		return nil, invalidMessage("truncated key id")
	}
	keyID := body[headerMinLen : headerMinLen+idLen]
	ciphertext := body[headerMinLen+idLen:]
	if len(ciphertext) == 0 {
		return nil, invalidMessage("no records")
	}

	senderPublic, err := ecdh.P256().NewPublicKey(keyID)
	if err != nil {
		return nil, invalidMessage("sender key: %v", err)
	}
	shared, err := uaPrivate.ECDH(senderPublic)
	if err != nil {
		return nil, invalidMessage("key agreement: %v", err)
	}

	keyInfo := make([]byte, 0, len(webPushInfo)+2*len(keyID))
	keyInfo = append(keyInfo, webPushInfo...)
	keyInfo = append(keyInfo, uaPrivate.PublicKey().Bytes()...)
	keyInfo = append(keyInfo, keyID...)

	ikm, err := hkdfBytes(shared, authSecret, keyInfo, ikmLen)
	if err != nil {
		return nil, err
	}
	cek, err := hkdfBytes(ikm, salt, cekInfo, cekLen)
	if err != nil {
		return nil, err
	}
	baseNonce, err := hkdfBytes(ikm, salt, nonceInfo, nonceLen)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("platform.decryptPush: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("platform.decryptPush: %w", err)
	}

	var plaintext []byte
	for seq := uint64(0); len(ciphertext) > 0; seq++ {
		n := min(recordSize, len(ciphertext))
		record := ciphertext[:n]
		ciphertext = ciphertext[n:]

		plain, err := gcm.Open(nil, recordNonce(baseNonce, seq), record, nil)
		if err != nil {
			return nil, invalidMessage("record %d: %v", seq, err)
		}
		data, err := unpad(plain, len(ciphertext) == 0)
		if err != nil {
			return nil, err
		}
		plaintext = append(plaintext, data...)
	}
	return plaintext, nil
}

// unpad strips the zero padding and the record delimiter: 0x02 ends the last
// record, 0x01 every other one
func unpad(plain []byte, last bool) ([]byte, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, invalidMessage("record has no delimiter")
	}
	want := byte(0x01)
	if last {
		want = 0x02
	}
	if plain[i] != want {
		return nil, invalidMessage("unexpected record delimiter 0x%02x", plain[i])
	}
	return plain[:i], nil
}

func recordNonce(base []byte, seq uint64) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(seq >> (8 * i))
	}
	return nonce
}

func hkdfBytes(secret, salt, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("platform.hkdf: %w", err)
	}
	return out, nil
}

func invalidMessage(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{clienterrors.ErrInvalidPushMessage}, args...)...)
}
