// Package jwtx signs and verifies the session tokens minted when a login
// is finalized. This is the host's "finalize authenticated session"
// primitive: a short-lived EdDSA-signed JWT carrying the user identity and
// which authentication methods were performed.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication Method Reference values recorded in session tokens.
const (
	AMRPassword = "pwd"
	AMRMFA      = "mfa"
	AMRDevice   = "device" // remembered-device bypass
	AMRBackdoor = "backdoor"
)

// DefaultSessionTTL is how long a finalized login session token is valid.
const DefaultSessionTTL = 12 * time.Hour

var (
	ErrIssuer  = errors.New("jwtx: issuer mismatch")
	ErrExpired = errors.New("jwtx: token expired")
)

// SessionClaims are the claims carried by a finalized login session token.
type SessionClaims struct {
	jwt.RegisteredClaims

	Username string   `json:"username"`
	AMR      []string `json:"amr"`
	Method   string   `json:"mfa_method,omitempty"` // second-factor method code, if one ran
}

// NewSessionClaims builds claims for a finalized login.
func NewSessionClaims(userID, username, issuer, method string, amr []string, ttl time.Duration, now time.Time) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
		AMR:      amr,
		Method:   method,
	}
}

// ValidateIssuer checks the iss claim against the expected issuer. An
// empty expected issuer disables the check.
func (c *SessionClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry checks exp against the current time.
func (c *SessionClaims) ValidateExpiry() error {
	if c.ExpiresAt == nil || time.Now().After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}
