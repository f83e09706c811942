package helpers

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomToken returns n random bytes hex encoded, for email links.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
