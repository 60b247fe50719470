package vault

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", keySize)))
}

func TestRoundTrip(t *testing.T) {
	v, err := New(testKey())
	require.NoError(t, err)
	assert.False(t, v.Degraded())

	for _, token := range []string{"", "EAAG-token", strings.Repeat("x", 4096), "токен"} {
		blob, err := v.Encrypt(token)
		require.NoError(t, err)
		plain, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, token, plain)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v, err := New(testKey())
	require.NoError(t, err)

	a, err := v.Encrypt("same")
	require.NoError(t, err)
	b, err := v.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptDetectsEveryBitFlip(t *testing.T) {
	v, err := New(testKey())
	require.NoError(t, err)

	blob, err := v.Encrypt("EAAG-long-lived")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x80
		_, err := v.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryptFailed, "flip at byte %d", i)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v, err := New(testKey())
	require.NoError(t, err)

	for _, blob := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := v.Decrypt(blob)
		assert.ErrorIs(t, err, ErrDecryptFailed)
	}
}

func TestDecryptWithOtherKeyFails(t *testing.T) {
	a, err := New(testKey())
	require.NoError(t, err)
	b, err := New(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("z", keySize))))
	require.NoError(t, err)

	blob, err := a.Encrypt("secret")
	require.NoError(t, err)
	_, err = b.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("%%%")
	assert.Error(t, err)
	_, err = New(base64.StdEncoding.EncodeToString([]byte("too-short")))
	assert.Error(t, err)
}

func TestFromConfigFallsBackToDerivation(t *testing.T) {
	v, err := FromConfig("", "app-secret")
	require.NoError(t, err)
	assert.True(t, v.Degraded())

	again, err := Derive("app-secret")
	require.NoError(t, err)
	blob, err := v.Encrypt("token")
	require.NoError(t, err)
	plain, err := again.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "token", plain)

	_, err = FromConfig("", "")
	assert.ErrorIs(t, err, ErrNoKey)
}
