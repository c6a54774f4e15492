package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/common"
)

func testKey(t *testing.T) string {
	t.Helper()
	return NewKeyProvider("test-master-key").ConversationKey("conv-test")
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "simple text", plaintext: "hello world"},
		{name: "empty string", plaintext: ""},
		{name: "unicode", plaintext: "привет 你好 🙂"},
		{name: "long text", plaintext: string(make([]byte, 16*1024))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encrypt(tt.plaintext, key)
			require.NoError(t, err)

			plaintext, err := Decrypt(env.Ciphertext, env.IV, key)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	key := testKey(t)

	first, err := Encrypt("same message", key)
	require.NoError(t, err)
	second, err := Encrypt("same message", key)
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestEncrypt_IVIs12Bytes(t *testing.T) {
	env, err := Encrypt("hello", testKey(t))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, raw, 12)
}

func TestEncrypt_TagAppendedToCiphertext(t *testing.T) {
	// 16-byte GCM tag trails the raw ciphertext inside the base64 payload.
	env, err := Encrypt("hello", testKey(t))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	assert.Len(t, raw, len("hello")+16)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	key := testKey(t)
	env, err := Encrypt("sensitive message", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)

	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		_, err := Decrypt(base64.StdEncoding.EncodeToString(tampered), env.IV, key)
		assert.ErrorIs(t, err, common.ErrAuthenticationFailure, "flipped bit at byte %d", i)
	}
}

func TestDecrypt_TamperedIV(t *testing.T) {
	key := testKey(t)
	env, err := Encrypt("sensitive message", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	raw[0] ^= 0x01

	_, err = Decrypt(env.Ciphertext, base64.StdEncoding.EncodeToString(raw), key)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := testKey(t)
	env, err := Encrypt("sensitive message", key)
	require.NoError(t, err)

	otherKey := NewKeyProvider("other-master-key").ConversationKey("conv-test")
	_, err = Decrypt(env.Ciphertext, env.IV, otherKey)
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)
}

func TestDecrypt_MalformedInputs(t *testing.T) {
	key := testKey(t)

	tests := []struct {
		name       string
		ciphertext string
		iv         string
	}{
		{name: "not base64", ciphertext: "!!not-base64!!", iv: "AAAAAAAAAAAAAAAA"},
		{name: "too short for tag", ciphertext: base64.StdEncoding.EncodeToString([]byte("short")), iv: base64.StdEncoding.EncodeToString(make([]byte, 12))},
		{name: "wrong IV size", ciphertext: base64.StdEncoding.EncodeToString(make([]byte, 32)), iv: base64.StdEncoding.EncodeToString(make([]byte, 8))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.ciphertext, tt.iv, key)
			assert.ErrorIs(t, err, common.ErrAuthenticationFailure)
		})
	}
}

func TestInvalidKeyLength(t *testing.T) {
	shortKey := base64.StdEncoding.EncodeToString([]byte("too short"))

	_, err := Encrypt("hello", shortKey)
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)

	_, err = Decrypt("whatever", "whatever", shortKey)
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)

	_, err = Encrypt("hello", "%%%not base64%%%")
	assert.ErrorIs(t, err, common.ErrInvalidKeyLength)
}
