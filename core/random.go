package core

import (
	"crypto/rand"
	"encoding/base64"
)

// randomToken returns a URL-safe random string with n bytes of entropy,
// used for remember-me token values.
func randomToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
