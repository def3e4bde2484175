package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const (
	// TokenSize128 is 128 bits of entropy, enough for short-lived secrets.
	TokenSize128 = 16
	// TokenSize256 is 256 bits of entropy, used for long-lived opaque tokens.
	TokenSize256 = 32
)

// GenerateToken returns a URL-safe random token with n bytes of entropy.
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint returns a stable hex-encoded SHA-256 digest of the given
// parts. Parts are newline-joined so that ("ab","c") and ("a","bc")
// produce different digests.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
