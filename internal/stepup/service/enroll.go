package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/pkg/idx"
	"github.com/stepauth/stepauth/pkg/jwtx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
	"github.com/stepauth/stepauth/pkg/slogx"
)

const registrationTypeStandard = "STANDARD"

// eligibleEnrollMethods is the method list offered to an enrolling user:
// the global allow-list, narrowed by role-scoped lists when any of the
// user's roles has one.
func eligibleEnrollMethods(user domain.User, settings domain.Settings) []domain.Method {
	var roleScoped []domain.Method
	scoped := false
	for _, role := range user.Roles {
		if methods, ok := settings.RoleAllowedMethods[role]; ok {
			scoped = true
			roleScoped = append(roleScoped, methods...)
		}
	}

	allowed := func(m domain.Method) bool {
		if !settings.MethodAllowed(m) {
			return false
		}
		if !scoped {
			return true
		}
		for _, r := range roleScoped {
			if r == m {
				return true
			}
		}
		return false
	}

	var out []domain.Method
	for _, m := range domain.AllMethods() {
		if allowed(m) {
			out = append(out, m)
		}
	}
	return out
}

// beginEnrollment opens the inline enrollment flow for a user without an
// active method. With exactly one eligible method that needs no extra
// input, selection is made on the user's behalf.
func (o *Orchestrator) beginEnrollment(
	ctx context.Context,
	user domain.User,
	rec *domain.MFARecord,
	req BeginLoginRequest,
	settings domain.Settings,
	now time.Time,
) (*LoginResult, error) {
	eligible := eligibleEnrollMethods(user, settings)
	if len(eligible) == 0 {
		if settings.AllowUnconfiguredSkip {
			return o.finalize(user, domain.Method(""), []string{jwtx.AMRPassword}, req.RedirectHint, settings)
		}
		return nil, ErrMFANotConfigured
	}

	session := domain.LoginSession{
		ID:                idx.New().String(),
		UserID:            user.ID,
		Phase:             domain.PhaseEnrollSelect,
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

	if len(eligible) == 1 {
		info, _ := eligible[0].Info()
		knownPhone := rec != nil && rec.PhoneNumber != ""
		if !info.RequiresPhone || knownPhone {
			return o.SelectEnrollMethod(ctx, session.ID, user.ID, eligible[0], "")
		}
	}

	return &LoginResult{
		Outcome:         OutcomeEnrollSelect,
		LoginID:         session.ID,
		EligibleMethods: eligible,
	}, nil
}

// SelectEnrollMethod commits the user's method choice and starts the
// provider-side registration. What "starting" means depends on the
// method family: OTP methods dispatch a code, authenticator apps fetch a
// pairing secret, out-of-band methods open an async registration, and
// KBA/hardware collect everything at confirm time.
func (o *Orchestrator) SelectEnrollMethod(
	ctx context.Context,
	loginID, actingUserID string,
	method domain.Method,
	phone string,
) (*LoginResult, error) {
	l := slogx.FromContext(ctx)

	session, err := o.guardedSession(ctx, loginID, actingUserID, domain.PhaseEnrollSelect)
	if err != nil {
		return nil, err
	}

	user, err := o.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	settings, err := o.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	info, known := method.Info()
	if !known {
		return nil, ErrMethodNotEligible
	}
	eligible := false
	for _, m := range eligibleEnrollMethods(user, settings) {
		if m == method {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, ErrMethodNotEligible
	}

	rec, err := o.loadRecord(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if phone == "" && rec != nil {
		phone = rec.PhoneNumber
	}
	if info.RequiresPhone && phone == "" {
		return nil, ErrPhoneRequired
	}

	if err := o.ensureProviderUser(ctx, user, phone); err != nil {
		return nil, err
	}

	challenge := &domain.Challenge{Method: method}
	switch info.Family {
	case domain.FamilyOTP:
		resp, err := o.Provider.Challenge(ctx, user.Username, user.Email, phone, string(method))
		if err != nil {
			return nil, err
		}
		if resp.Status != mfasdk.StatusSuccess {
			l.Error("provider refused enrollment challenge", "user_id", user.ID,
				"method", method, "status", resp.Status, "message", resp.Message)
			return nil, ErrChallengeDenied
		}
		challenge.TxID = resp.TxID

	case domain.FamilyTOTP:
		resp, err := o.Provider.GoogleAuthSecret(ctx, user.Username, string(method))
		if err != nil {
			return nil, err
		}
		if resp.Status != mfasdk.StatusSuccess {
			return nil, ErrChallengeDenied
		}
		challenge.Secret = resp.Secret
		challenge.QRCode = resp.QRCode

	case domain.FamilyOutOfBand:
		resp, err := o.Provider.Register(ctx, mfasdk.RegisterRequest{
			Username:          user.Username,
			RegistrationType:  registrationTypeStandard,
			AuthenticatorType: string(method),
		})
		if err != nil {
			return nil, err
		}
		if resp.Status != mfasdk.StatusSuccess && resp.Status != mfasdk.StatusInProgress {
			return nil, ErrChallengeDenied
		}
		challenge.TxID = resp.TxID
		challenge.QRCode = resp.QRCode

	case domain.FamilyKBA, domain.FamilyHardware:
		// Nothing to start: answers or the token code arrive at confirm.
	}

	session.Phase = domain.PhaseEnrollPending
	session.EnrollMethod = method
	session.EnrollPhone = phone
	session.Challenge = challenge
	if err := o.Store.LoginSessions().UpdateLoginSession(ctx, *session); err != nil {
		return nil, fmt.Errorf("update login session: %w", err)
	}

	return &LoginResult{
		Outcome:           OutcomeEnrollPending,
		LoginID:           session.ID,
		Method:            method,
		QRCode:            challenge.QRCode,
		Secret:            challenge.Secret,
		AttemptsRemaining: session.AttemptsRemaining,
	}, nil
}

// ConfirmEnrollment proves the user controls the chosen factor and, on
// success, activates the method and finalizes the login in one step.
func (o *Orchestrator) ConfirmEnrollment(
	ctx context.Context,
	loginID, actingUserID, code string,
	answers []mfasdk.QuestionAnswer,
) (*LoginResult, error) {
	l := slogx.FromContext(ctx)

	session, err := o.guardedSession(ctx, loginID, actingUserID, domain.PhaseEnrollPending)
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

	method := session.EnrollMethod
	info, _ := method.Info()

	var resp *mfasdk.Response
	switch info.Family {
	case domain.FamilyOTP:
		resp, err = o.Provider.Validate(ctx, user.Username, session.Challenge.TxID, code, string(method), nil)

	case domain.FamilyTOTP:
		resp, err = o.Provider.Register(ctx, mfasdk.RegisterRequest{
			Username:          user.Username,
			RegistrationType:  registrationTypeStandard,
			Secret:            session.Challenge.Secret,
			OTPToken:          code,
			AuthenticatorType: string(method),
		})

	case domain.FamilyOutOfBand:
		resp, err = o.Provider.RegistrationStatus(ctx, session.Challenge.TxID)

	case domain.FamilyKBA:
		resp, err = o.Provider.Register(ctx, mfasdk.RegisterRequest{
			Username:         user.Username,
			RegistrationType: registrationTypeStandard,
			QuestionAnswers:  answers,
		})

	case domain.FamilyHardware:
		resp, err = o.Provider.Register(ctx, mfasdk.RegisterRequest{
			Username:          user.Username,
			RegistrationType:  registrationTypeStandard,
			OTPToken:          code,
			AuthenticatorType: string(method),
		})
	}
	if err != nil {
		l.Error("provider enrollment confirm failed", "user_id", user.ID, "method", method, "error", err)
		return nil, err
	}

	switch resp.Status {
	case mfasdk.StatusSuccess:
		if err := o.activateEnrollment(ctx, user, session, method); err != nil {
			return nil, err
		}
		return o.completeChallenge(ctx, user, session)

	case mfasdk.StatusInProgress:
		return &LoginResult{Outcome: OutcomeEnrollPending, LoginID: session.ID, Method: method}, nil

	case mfasdk.StatusFailed:
		remaining, derr := o.Store.LoginSessions().DecrementLoginAttempts(ctx, session.ID)
		if derr != nil {
			return nil, fmt.Errorf("decrement attempts: %w", derr)
		}
		if remaining <= 0 {
			_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
			return nil, ErrAttemptsExhausted
		}
		return nil, &InvalidCodeError{AttemptsRemaining: remaining}

	default:
		_ = o.Store.LoginSessions().DeleteLoginSession(ctx, session.ID)
		return nil, ErrChallengeDenied
	}
}

// activateEnrollment records the newly proven method locally. The record
// is created on first enrollment; TOTP secrets are kept so the pairing
// survives a provider-side resync.
func (o *Orchestrator) activateEnrollment(ctx context.Context, user domain.User, session *domain.LoginSession, method domain.Method) error {
	now := time.Now().UTC()

	rec, err := o.loadRecord(ctx, user.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &domain.MFARecord{
			UserID:          user.ID,
			RegisteredEmail: user.Email,
			CreatedAt:       now,
		}
	}
	if session.EnrollPhone != "" {
		rec.PhoneNumber = session.EnrollPhone
	}
	rec.Activate(method)
	rec.Enabled = true
	if method.IsTOTPFamily() {
		rec.TOTPSecretBlob = session.Challenge.Secret
	}
	rec.UpdatedAt = now

	if err := o.Store.MFARecords().UpsertMFARecord(ctx, *rec); err != nil {
		return fmt.Errorf("persist mfa record: %w", err)
	}
	return nil
}

// ensureProviderUser makes sure a vendor-side user exists before any
// registration call. Hitting the plan's user cap surfaces as
// ErrUserLimitExceeded so callers can distinguish it from a flaky
// provider.
func (o *Orchestrator) ensureProviderUser(ctx context.Context, user domain.User, phone string) error {
	_, found, err := o.Provider.SearchUser(ctx, user.Username)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	if err := o.Provider.CreateUser(ctx, user.Username, user.Email, phone); err != nil {
		if errors.Is(err, mfasdk.ErrUserLimit) {
			slogx.FromContext(ctx).Error("provider user limit reached", "user_id", user.ID)
			return ErrUserLimitExceeded
		}
		return err
	}
	return nil
}
