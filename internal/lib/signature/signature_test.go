package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyAcceptsOwnSignature(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{"object":"whatsapp_business_account"}`),
		[]byte(``),
		[]byte("\x00\x01\x02 binary"),
	}
	for _, body := range bodies {
		header := Sign(body, "app-secret")
		assert.True(t, Verify(body, header, "app-secret"), "body %q", body)
	}
}

func TestVerifyRejectsEveryByteMutation(t *testing.T) {
	body := []byte(`{"entry":[{"id":"123"}]}`)
	header := Sign(body, "app-secret")

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		assert.False(t, Verify(mutated, header, "app-secret"), "mutation at %d verified", i)
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	body := []byte(`{}`)
	valid := Sign(body, "secret")

	tests := []struct {
		name   string
		header string
		secret string
	}{
		{name: "missing header", header: "", secret: "secret"},
		{name: "wrong prefix", header: "sha1=" + valid[len(prefix):], secret: "secret"},
		{name: "prefix only", header: prefix, secret: "secret"},
		{name: "no secret", header: valid, secret: ""},
		{name: "other secret", header: valid, secret: "other"},
		{name: "truncated digest", header: valid[:len(valid)-2], secret: "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Verify(body, tt.header, tt.secret))
		})
	}
}

func TestVerifierEnabled(t *testing.T) {
	assert.False(t, NewVerifier("").Enabled())
	assert.True(t, NewVerifier("s").Enabled())

	var nilVerifier *Verifier
	assert.False(t, nilVerifier.Enabled())
	assert.False(t, nilVerifier.Verify([]byte("x"), "sha256=00"))
}
