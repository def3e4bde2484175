package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials: first-factor check failed (unknown user or
	// wrong password). Deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrLoginNotFound: no in-flight login session for the given ID.
	ErrLoginNotFound = errors.New("login_not_found")

	// ErrTamperDetected: the login session's user does not match the user
	// the request is acting on. The session is torn down before this is
	// returned.
	ErrTamperDetected = errors.New("tamper_detected")

	// ErrAttemptsExhausted: too many failed verifications; the session is
	// torn down and the user must log in again.
	ErrAttemptsExhausted = errors.New("attempts_exhausted")

	// ErrChallengeDenied: the provider terminally rejected the challenge
	// (denied on device, timed out, internal error).
	ErrChallengeDenied = errors.New("challenge_denied")

	// ErrWrongPhase: the operation does not match the login's phase, e.g.
	// verifying while enrollment is still pending.
	ErrWrongPhase = errors.New("wrong_phase")

	// ErrMFANotConfigured: the user has no configured method, inline
	// enrollment is off, and fail-open is disabled.
	ErrMFANotConfigured = errors.New("mfa_not_configured")

	// ErrMethodNotEligible: the selected enrollment method is unknown or
	// not in the effective allow-list.
	ErrMethodNotEligible = errors.New("method_not_eligible")

	// ErrPhoneRequired: the selected method needs a phone number and none
	// is on file or supplied.
	ErrPhoneRequired = errors.New("phone_required")

	// ErrUserLimitExceeded: the provider's licensed user cap is reached;
	// surfaced distinctly so admins see a user-limit message, not a
	// generic failure.
	ErrUserLimitExceeded = errors.New("user_limit_exceeded")

	// ErrConfigurationMissing: the gateway has no provider credentials
	// configured yet.
	ErrConfigurationMissing = errors.New("configuration_missing")
)

// InvalidCodeError: the provider rejected the submitted code or answers.
// The session stays alive while attempts remain.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid_code: %d attempts remaining", e.AttemptsRemaining)
}
