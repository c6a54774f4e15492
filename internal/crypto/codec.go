package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"

	"securechat/internal/common"
)

const (
	keySize = 32
	ivSize  = 12
)

// Envelope is the (ciphertext, IV) pair persisted per message. The 16-byte
// GCM tag sits at the end of the raw ciphertext, before base64 encoding.
type Envelope struct {
	Ciphertext string
	IV         string
}

// Encrypt seals plaintext under the base64-encoded 32-byte key with
// AES-256-GCM and a fresh random 12-byte IV.
func Encrypt(plaintext, key string) (Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Envelope{}, err
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, common.WrapError(common.CodeUnknown, "failed to generate IV", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)

	return Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens an envelope. Any tampering with ciphertext or IV, or a wrong
// key, surfaces as ErrAuthenticationFailure rather than garbage plaintext.
func Decrypt(ciphertext, iv, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	rawIV, err := base64.StdEncoding.DecodeString(iv)
	if err != nil || len(rawIV) != ivSize {
		return "", common.ErrAuthenticationFailure
	}

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(sealed) < gcm.Overhead() {
		return "", common.ErrAuthenticationFailure
	}

	plaintext, err := gcm.Open(nil, rawIV, sealed, nil)
	if err != nil {
		return "", common.ErrAuthenticationFailure
	}

	return string(plaintext), nil
}

func newGCM(key string) (cipher.AEAD, error) {
	rawKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(rawKey) != keySize {
		return nil, common.ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, common.ErrInvalidKeyLength
	}

	return cipher.NewGCM(block)
}
