// Package auth signs private exchange requests.
//
// A private request carries the account's public key and an HMAC-SHA512 tag
// of the exact form body in the Key and Sign headers. Every body includes a
// nonce that must strictly increase per account.
package auth

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
)

// Header names carried by signed requests.
const (
	HeaderKey  = "Key"
	HeaderSign = "Sign"
)

var (
	// ErrMissingKey is returned when the public key is empty.
	ErrMissingKey = errors.New("auth: API key is required")

	// ErrMissingSecret is returned when the secret is empty.
	ErrMissingSecret = errors.New("auth: API secret is required")
)

// Credentials is an immutable API key pair.
// Its String form never includes the secret.
type Credentials struct {
	publicKey string
	secretKey []byte
}

// NewCredentials validates and copies a key pair.
func NewCredentials(publicKey, secret string) (Credentials, error) {
	if publicKey == "" {
		return Credentials{}, ErrMissingKey
	}
	if secret == "" {
		return Credentials{}, ErrMissingSecret
	}
	return Credentials{publicKey: publicKey, secretKey: []byte(secret)}, nil
}

// PublicKey returns the public API key.
func (c Credentials) PublicKey() string {
	return c.publicKey
}

// Fingerprint returns a short, loggable identifier of the public key.
func (c Credentials) Fingerprint() string {
	if len(c.publicKey) <= 8 {
		return "****"
	}
	return c.publicKey[:4] + "..." + c.publicKey[len(c.publicKey)-4:]
}

// String implements fmt.Stringer without revealing the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{key=%s}", c.Fingerprint())
}

// GoString keeps %#v from printing the secret.
func (c Credentials) GoString() string {
	return c.String()
}

// Sign returns the lowercase hex HMAC-SHA512 tag of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether tag is the signature of body under secret.
func Verify(secret, body []byte, tag string) bool {
	want, err := hex.DecodeString(tag)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
