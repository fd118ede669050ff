// Package cryptox wraps the primitives used to sign session tokens and
// derive purpose-bound keys from the configured upload secret.
package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sign returns HMAC-SHA256(key, msg).
func Sign(key, msg []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil)
}

// Verify recomputes the MAC of msg and compares it with sig in constant time.
func Verify(key, msg, sig []byte) bool {
	return hmac.Equal(Sign(key, msg), sig)
}

// EqualStrings compares two secrets in constant time. Lengths may leak.
func EqualStrings(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// DeriveKey expands secret into a 32-byte key bound to info, so that one
// configured secret can serve several independent purposes.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("derive key %q: empty secret", info)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key %q: %w", info, err)
	}
	return key, nil
}
