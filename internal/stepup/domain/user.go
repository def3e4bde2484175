package domain

import (
	"strings"
	"time"
)

// AdminRole is the role that may use the backdoor bypass.
const AdminRole = "administrator"

// User is a first-factor account. The credential check against
// PasswordHash happens before any second-factor orchestration.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether the user holds the named role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user holds at least one of the roles.
func (u User) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// EmailDomain returns the part of the user's email after the final "@",
// lower-cased, or "" when the email is malformed.
func (u User) EmailDomain() string {
	at := strings.LastIndex(u.Email, "@")
	if at < 0 || at == len(u.Email)-1 {
		return ""
	}
	return strings.ToLower(u.Email[at+1:])
}
