package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/pkg/cryptox"
	"github.com/stepauth/stepauth/pkg/idx"
	"github.com/stepauth/stepauth/pkg/jwtx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
	"github.com/stepauth/stepauth/pkg/slogx"
)

// DefaultLoginTTL is how long an in-flight login may sit between steps
// before it lapses and the user must start over.
const DefaultLoginTTL = 5 * time.Minute

// Outcome tells the caller what happened to the login and what the next
// step is.
type Outcome string

const (
	// OutcomeFinalized: the login is complete; Token and RedirectTo are set.
	OutcomeFinalized Outcome = "finalized"
	// OutcomeChallenged: a challenge is pending a code/answer submission.
	OutcomeChallenged Outcome = "challenged"
	// OutcomePending: an out-of-band challenge awaits the user's device;
	// keep polling.
	OutcomePending Outcome = "pending"
	// OutcomeEnrollSelect: the user must pick an enrollment method.
	OutcomeEnrollSelect Outcome = "enroll_select"
	// OutcomeEnrollPending: an enrollment awaits the user's confirmation.
	OutcomeEnrollPending Outcome = "enroll_pending"
)

// LoginResult is the orchestrator's answer for every entry point.
type LoginResult struct {
	Outcome Outcome
	LoginID string

	// Challenge details, for OutcomeChallenged/OutcomeEnrollPending.
	Method            domain.Method
	QRCode            string
	Secret            string
	Questions         []string
	AttemptsRemaining int

	// Enrollment choices, for OutcomeEnrollSelect.
	EligibleMethods []domain.Method

	// Finalized login, for OutcomeFinalized.
	Token      string
	RedirectTo string
}

// DeviceInfo identifies the client for remembered-device decisions.
type DeviceInfo struct {
	UserAgent string
	ClientIP  string
}

// Fingerprint is a stable hash of the client user agent and network
// origin. Coarse on purpose: it identifies a browser on a network, not a
// person.
func (d DeviceInfo) Fingerprint() string {
	if d.UserAgent == "" && d.ClientIP == "" {
		return ""
	}
	return cryptox.Fingerprint(d.UserAgent, d.ClientIP)
}

// BeginLoginRequest carries everything the first login step needs.
type BeginLoginRequest struct {
	Username string
	Password string

	// BackdoorSecret, when the administrative backdoor is enabled and the
	// user is an administrator, skips MFA entirely.
	BackdoorSecret string

	// RememberDevice is the user's opt-in to trust this device after a
	// successful verification.
	RememberDevice bool

	Device DeviceInfo

	// RedirectHint is a caller-provided post-login destination (e.g. from
	// a destination cookie); it wins over the configured default.
	RedirectHint string
}

// Orchestrator drives the second-factor login state machine: decide
// whether a factor is required, challenge it, track the round-trip in a
// persisted login session, and finalize the login. State transitions are
// last-write-wins per session; concurrent requests for one login are not
// serialized.
type Orchestrator struct {
	Store    store.Store
	Provider Provider
	Policy   Policy
	Settings *SettingsService
	Signer   *jwtx.Signer

	Issuer   string
	LoginTTL time.Duration // zero means DefaultLoginTTL
	TokenTTL time.Duration // zero means jwtx.DefaultSessionTTL
}

// BeginLogin runs the first factor and, when it passes, hands over to the
// second-factor decision. Unknown users and wrong passwords both come
// back as ErrInvalidCredentials.
func (o *Orchestrator) BeginLogin(ctx context.Context, req BeginLoginRequest) (*LoginResult, error) {
	user, err := o.Store.Users().GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := cryptox.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	return o.BeginVerifiedLogin(ctx, user, req)
}

// BeginVerifiedLogin is the second-factor entry point for callers that
// have already verified the first factor themselves.
func (o *Orchestrator) BeginVerifiedLogin(ctx context.Context, user domain.User, req BeginLoginRequest) (*LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	settings, err := o.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	// Documented trapdoor: flag + shared secret + administrator role. No
	// provider calls are made on this path.
	if o.Policy.BackdoorAllowed(user, req.BackdoorSecret, settings) {
		l.Warn("backdoor login used", "user_id", user.ID, "username", user.Username)
		return o.finalize(user, domain.Method(""), []string{jwtx.AMRPassword, jwtx.AMRBackdoor}, req.RedirectHint, settings)
	}

	rec, err := o.loadRecord(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if !o.Policy.IsMFARequired(user, rec, settings) {
		return o.finalize(user, domain.Method(""), []string{jwtx.AMRPassword}, req.RedirectHint, settings)
	}

	// Never-configured user: inline enrollment, fail-open, or refusal.
	if rec == nil || rec.ActivatedMethod == "" {
		if settings.InlineEnrollment {
			return o.beginEnrollment(ctx, user, rec, req, settings, now)
		}
		if settings.AllowUnconfiguredSkip {
			l.Info("mfa skipped for unconfigured user", "user_id", user.ID)
			return o.finalize(user, domain.Method(""), []string{jwtx.AMRPassword}, req.RedirectHint, settings)
		}
		return nil, ErrMFANotConfigured
	}

	// Remembered-device bypass, with lazy purge of lapsed entries.
	fingerprint := req.Device.Fingerprint()
	if purged := rec.PurgeExpiredDevices(now); purged > 0 {
		// Best effort: a lost purge only means the next lookup purges again.
		if err := o.Store.MFARecords().UpsertMFARecord(ctx, *rec); err != nil {
			l.Warn("failed to persist device purge", "user_id", user.ID, "error", err)
		}
	}
	if o.Policy.DeviceBypassAllowed(rec, fingerprint, settings, now) {
		l.Info("remembered device bypassed challenge", "user_id", user.ID)
		return o.finalize(user, rec.ActivatedMethod, []string{jwtx.AMRPassword, jwtx.AMRDevice}, req.RedirectHint, settings)
	}

	return o.challenge(ctx, user, rec, req, settings, now)
}

// challenge issues the provider challenge for the user's active method and
// persists the pending login session.
func (o *Orchestrator) challenge(
	ctx context.Context,
	user domain.User,
	rec *domain.MFARecord,
	req BeginLoginRequest,
	settings domain.Settings,
	now time.Time,
) (*LoginResult, error) {
	l := slogx.FromContext(ctx)
	method := rec.ActivatedMethod

	resp, err := o.Provider.Challenge(ctx, user.Username, rec.RegisteredEmail, rec.PhoneNumber, string(method))
	if err != nil {
		l.Error("provider challenge failed", "user_id", user.ID, "method", method, "error", err)
		return nil, err
	}
	if resp.Status != mfasdk.StatusSuccess {
		l.Error("provider refused challenge", "user_id", user.ID, "method", method,
			"status", resp.Status, "message", resp.Message)
		return nil, ErrChallengeDenied
	}

	session := domain.LoginSession{
		ID:     idx.New().String(),
		UserID: user.ID,
		Phase:  domain.PhaseChallenged,
		Challenge: &domain.Challenge{
			TxID:      resp.TxID,
			Method:    method,
			QRCode:    resp.QRCode,
			Questions: resp.Questions,
		},
		AttemptsRemaining: domain.DefaultLoginAttempts,
		RememberDevice:    req.RememberDevice,
		DeviceFingerprint: req.Device.Fingerprint(),
		RedirectHint:      req.RedirectHint,
		CreatedAt:         now,
		ExpiresAt:         now.Add(o.loginTTL()),
	}
	if err := o.Store.LoginSessions().CreateLoginSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create login session: %w", err)
	}

	return &LoginResult{
		Outcome:           OutcomeChallenged,
		LoginID:           session.ID,
		Method:            method,
		QRCode:            resp.QRCode,
		Questions:         resp.Questions,
		AttemptsRemaining: session.AttemptsRemaining,
	}, nil
}

// VerifyChallenge submits a code or KBA answers against a pending
// challenge. actingUserID is the user the request claims to act on; any
// mismatch with the session aborts the login.
func (o *Orchestrator) VerifyChallenge(
	ctx context.Context,
	loginID, actingUserID, code string,
	answers map[string]string,
) (*LoginResult, error) {
	l := slogx.FromContext(ctx)

	session, err := o.guardedSession(ctx, loginID, actingUserID, domain.PhaseChallenged)
	if err != nil {
		return nil, err
	}

	if session.AttemptsRemaining <= 0 {
		_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
		return nil, ErrAttemptsExhausted
	}

	user, err := o.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	method := session.Challenge.Method
	info, _ := method.Info()

	// Out-of-band methods are polled, not submitted; treat a verify call
	// against one as a poll.
	var resp *mfasdk.Response
	if info.Asynchronous {
		resp, err = o.Provider.AuthStatus(ctx, session.Challenge.TxID)
	} else {
		resp, err = o.Provider.Validate(ctx, user.Username, session.Challenge.TxID, code, string(method), answers)
	}
	if err != nil {
		// Transport failures are not authentication outcomes: the session
		// stays alive and no attempt is consumed.
		l.Error("provider validate failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	switch resp.Status {
	case mfasdk.StatusSuccess:
		return o.completeChallenge(ctx, user, session)

	case mfasdk.StatusFailed:
		remaining, derr := o.Store.LoginSessions().DecrementLoginAttempts(ctx, session.ID)
		if derr != nil {
			return nil, fmt.Errorf("decrement attempts: %w", derr)
		}
		if remaining <= 0 {
			_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
			l.Warn("login attempts exhausted", "user_id", user.ID, "login_id", session.ID)
			return nil, ErrAttemptsExhausted
		}
		l.Info("challenge verification failed", "user_id", user.ID, "attempts_remaining", remaining)
		return nil, &InvalidCodeError{AttemptsRemaining: remaining}

	case mfasdk.StatusInProgress:
		return &LoginResult{
			Outcome:           OutcomePending,
			LoginID:           session.ID,
			Method:            method,
			AttemptsRemaining: session.AttemptsRemaining,
		}, nil

	default: // DENIED, ERROR, anything unknown
		_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
		l.Warn("challenge terminally rejected", "user_id", user.ID,
			"status", resp.Status, "message", resp.Message)
		return nil, ErrChallengeDenied
	}
}

// PollChallenge checks an out-of-band challenge's progress without
// consuming an attempt.
func (o *Orchestrator) PollChallenge(ctx context.Context, loginID, actingUserID string) (*LoginResult, error) {
	session, err := o.guardedSession(ctx, loginID, actingUserID, domain.PhaseChallenged)
	if err != nil {
		return nil, err
	}

	user, err := o.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	resp, err := o.Provider.AuthStatus(ctx, session.Challenge.TxID)
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case mfasdk.StatusSuccess:
		return o.completeChallenge(ctx, user, session)
	case mfasdk.StatusInProgress:
		return &LoginResult{Outcome: OutcomePending, LoginID: session.ID, Method: session.Challenge.Method}, nil
	default:
		_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
		return nil, ErrChallengeDenied
	}
}

// CancelLogin abandons an in-flight login. For enrollments that created a
// provider-side user which never finished registering, the orphaned
// vendor record is deleted.
func (o *Orchestrator) CancelLogin(ctx context.Context, loginID, actingUserID string) error {
	l := slogx.FromContext(ctx)

	session, err := o.Store.LoginSessions().GetLoginSession(ctx, loginID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // already gone; cancel is idempotent
		}
		return err
	}
	if session.UserID != actingUserID {
		_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
		return ErrTamperDetected
	}

	if session.Phase == domain.PhaseEnrollSelect || session.Phase == domain.PhaseEnrollPending {
		rec, rerr := o.loadRecord(ctx, session.UserID)
		if rerr == nil && rec == nil {
			// No local record: the vendor user (if any) was created for this
			// enrollment and is now orphaned.
			if user, uerr := o.Store.Users().GetUserByID(ctx, session.UserID); uerr == nil {
				if derr := o.Provider.DeleteUser(ctx, user.Username); derr != nil {
					l.Warn("failed to delete orphaned provider user", "user_id", user.ID, "error", derr)
				}
			}
		}
	}

	return o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
}

// completeChallenge is the success path out of a verified challenge:
// remember the device if requested and within quota, tear down the
// session, finalize the login.
func (o *Orchestrator) completeChallenge(ctx context.Context, user domain.User, session *domain.LoginSession) (*LoginResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	settings, err := o.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if session.RememberDevice && settings.RememberDevices && session.DeviceFingerprint != "" {
		// Read-then-write, not transactional: concurrent logins can lose a
		// device entry. Accepted as best effort.
		if rec, rerr := o.loadRecord(ctx, user.ID); rerr == nil && rec != nil {
			if rec.RememberDevice(session.DeviceFingerprint, settings.RememberDuration, settings.MaxRememberedDevices, now) {
				if uerr := o.Store.MFARecords().UpsertMFARecord(ctx, *rec); uerr != nil {
					l.Warn("failed to persist remembered device", "user_id", user.ID, "error", uerr)
				}
			} else {
				l.Info("remembered device quota reached", "user_id", user.ID)
			}
		}
	}

	if err := o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("clear login session: %w", err)
	}

	return o.finalize(user, session.Challenge.Method, []string{jwtx.AMRPassword, jwtx.AMRMFA}, session.RedirectHint, settings)
}

// finalize mints the authenticated session token. The redirect hint from
// login time (destination cookie) wins over the configured default.
func (o *Orchestrator) finalize(
	user domain.User,
	method domain.Method,
	amr []string,
	redirectHint string,
	settings domain.Settings,
) (*LoginResult, error) {
	ttl := o.TokenTTL
	if ttl == 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(user.ID, user.Username, o.Issuer, string(method), amr, ttl, time.Now().UTC())
	token, err := o.Signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	redirect := settings.PostLoginRedirect
	if redirectHint != "" {
		redirect = redirectHint
	}

	return &LoginResult{
		Outcome:    OutcomeFinalized,
		Method:     method,
		Token:      token,
		RedirectTo: redirect,
	}, nil
}

// guardedSession loads a login session and enforces the two invariants
// shared by every step: the acting user must match the session's user
// (tamper rule; mismatch tears the session down), and the session must be
// in the expected phase.
func (o *Orchestrator) guardedSession(ctx context.Context, loginID, actingUserID string, phase domain.LoginPhase) (*domain.LoginSession, error) {
	session, err := o.Store.LoginSessions().GetLoginSession(ctx, loginID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLoginNotFound
		}
		return nil, fmt.Errorf("load login session: %w", err)
	}

	if session.UserID != actingUserID {
		_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
		slogx.FromContext(ctx).Warn("login session user mismatch",
			"login_id", session.ID, "session_user", session.UserID, "acting_user", actingUserID)
		return nil, ErrTamperDetected
	}

	if session.Phase != phase {
		return nil, ErrWrongPhase
	}
	return &session, nil
}

// loadRecord returns the user's MFA record or nil when none exists.
func (o *Orchestrator) loadRecord(ctx context.Context, userID string) (*domain.MFARecord, error) {
	rec, err := o.Store.MFARecords().GetMFARecord(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load mfa record: %w", err)
	}
	return &rec, nil
}

func (o *Orchestrator) loginTTL() time.Duration {
	if o.LoginTTL > 0 {
		return o.LoginTTL
	}
	return DefaultLoginTTL
}
