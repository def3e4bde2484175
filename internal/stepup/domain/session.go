package domain

import "time"

// LoginPhase is the phase of an in-flight login's second-factor flow.
// Terminal outcomes (verified, aborted) have no phase: the session row is
// deleted instead.
type LoginPhase string

const (
	// PhaseChallenged: a provider challenge is pending a code/answer or an
	// out-of-band approval.
	PhaseChallenged LoginPhase = "challenged"
	// PhaseEnrollSelect: first-time user is choosing an enrollment method.
	PhaseEnrollSelect LoginPhase = "enroll_select"
	// PhaseEnrollPending: an enrollment challenge/registration awaits the
	// user's confirmation.
	PhaseEnrollPending LoginPhase = "enroll_pending"
)

// DefaultLoginAttempts is the number of verification attempts allowed per
// challenge before the login is torn down.
const DefaultLoginAttempts = 3

// Challenge is the short-lived provider response tracked inside a login
// session. Never persisted beyond the session row.
type Challenge struct {
	TxID      string   `json:"tx_id"`
	Method    Method   `json:"method"`
	Message   string   `json:"message,omitempty"`
	QRCode    string   `json:"qr_code,omitempty"`
	Secret    string   `json:"secret,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// LoginSession is the per-login-attempt state bag, persisted server-side
// and keyed by an opaque ID handed to the client. It is created once the
// first factor passes and deleted on success, cancel, tamper or attempt
// exhaustion.
type LoginSession struct {
	ID     string
	UserID string
	Phase  LoginPhase

	// Challenge is the pending provider challenge, nil while the user is
	// still selecting an enrollment method.
	Challenge *Challenge

	// EnrollMethod/EnrollPhone track the inline-enrollment selection.
	EnrollMethod Method
	EnrollPhone  string

	AttemptsRemaining int

	// RememberDevice is the user's opt-in to trust this device;
	// DeviceFingerprint identifies it.
	RememberDevice    bool
	DeviceFingerprint string

	// RedirectHint is the post-login destination suggested at login time
	// (e.g. from a destination cookie); it wins over the configured
	// default when the login finalizes.
	RedirectHint string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has lapsed.
func (s *LoginSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
