package utils

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// NewGuestToken returns a random guest access token and its bcrypt hash.
// Only the hash is stored; the raw token is shown to the guest once.
func NewGuestToken(cost int) (raw, hash string, err error) {
	raw, err = randomHex(24)
	if err != nil {
		return "", "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", "", err
	}
	return raw, string(b), nil
}

// VerifyGuestToken compares a presented token with the stored hash.
func VerifyGuestToken(hash, raw string) bool {
	if hash == "" || raw == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

// randomHex returns n bytes of crypto/rand output, hex encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
