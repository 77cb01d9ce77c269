package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TokenPrefix starts every session token.
const TokenPrefix = "cn_"

// SessionToken is a freshly minted bearer token. Raw is shown to the client
// once; only Hash and Prefix are stored.
type SessionToken struct {
	Raw    string
	Prefix string
	Hash   string
}

// NewSessionToken mints a random token and its bcrypt hash.
func NewSessionToken() (SessionToken, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return SessionToken{}, fmt.Errorf("read random: %w", err)
	}
	raw := TokenPrefix + hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return SessionToken{}, fmt.Errorf("hash token: %w", err)
	}
	return SessionToken{Raw: raw, Prefix: raw[:keyPrefixLen], Hash: string(hash)}, nil
}
