// Package signature verifies X-Hub-Signature-256 headers sent with Meta webhook deliveries.
// The signature is an HMAC-SHA256 over the raw request body keyed with the app secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	Header = "X-Hub-Signature-256"
	prefix = "sha256="
)

// Verifier checks webhook bodies against a shared app secret.
// A Verifier with an empty secret is disabled; callers decide whether to skip it.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret != ""
}

func (v *Verifier) Verify(body []byte, header string) bool {
	if v == nil {
		return false
	}
	return Verify(body, header, v.secret)
}

// Sign returns the header value a platform would send for body.
func Sign(body []byte, secret string) string {
	return prefix + computeHMAC(body, secret)
}

// Verify fails closed: an empty secret, a missing header or a wrong prefix never verifies.
func Verify(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	if !strings.HasPrefix(header, prefix) || len(header) == len(prefix) {
		return false
	}
	provided := header[len(prefix):]
	expected := computeHMAC(body, secret)
	return constantTimeEqual(provided, expected)
}

func computeHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// constantTimeEqual never returns early on the first differing byte.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
