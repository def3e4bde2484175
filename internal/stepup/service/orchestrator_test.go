package service

import (
	"context"
	"testing"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/internal/stepup/store/drivers/sqlite"
	"github.com/stepauth/stepauth/pkg/cryptox"
	"github.com/stepauth/stepauth/pkg/idx"
	"github.com/stepauth/stepauth/pkg/jwtx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts provider responses per operation and counts calls.
// Any unscripted operation answers SUCCESS.
type fakeProvider struct {
	calls map[string]int

	challengeResp          *mfasdk.Response
	validateResp           *mfasdk.Response
	registerResp           *mfasdk.Response
	registrationStatusResp *mfasdk.Response
	authStatusResp         *mfasdk.Response
	googleAuthResp         *mfasdk.Response

	createUserErr error
	searchFound   bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: make(map[string]int)}
}

func (f *fakeProvider) resp(op string, scripted *mfasdk.Response) (*mfasdk.Response, error) {
	f.calls[op]++
	if scripted != nil {
		return scripted, nil
	}
	return &mfasdk.Response{Status: mfasdk.StatusSuccess, TxID: "tx-" + op}, nil
}

func (f *fakeProvider) Challenge(ctx context.Context, username, email, phone, authType string) (*mfasdk.Response, error) {
	return f.resp("challenge", f.challengeResp)
}

func (f *fakeProvider) Validate(ctx context.Context, username, txID, token, authType string, answers map[string]string) (*mfasdk.Response, error) {
	return f.resp("validate", f.validateResp)
}

func (f *fakeProvider) Register(ctx context.Context, r mfasdk.RegisterRequest) (*mfasdk.Response, error) {
	return f.resp("register", f.registerResp)
}

func (f *fakeProvider) RegistrationStatus(ctx context.Context, txID string) (*mfasdk.Response, error) {
	return f.resp("registration_status", f.registrationStatusResp)
}

func (f *fakeProvider) AuthStatus(ctx context.Context, txID string) (*mfasdk.Response, error) {
	return f.resp("auth_status", f.authStatusResp)
}

func (f *fakeProvider) GoogleAuthSecret(ctx context.Context, username, authenticatorName string) (*mfasdk.Response, error) {
	f.calls["google_auth_secret"]++
	if f.googleAuthResp != nil {
		return f.googleAuthResp, nil
	}
	return &mfasdk.Response{Status: mfasdk.StatusSuccess, Secret: "JBSWY3DPEHPK3PXP", QRCode: "otpauth://totp/x"}, nil
}

func (f *fakeProvider) CreateUser(ctx context.Context, username, email, phone string) error {
	f.calls["create_user"]++
	return f.createUserErr
}

func (f *fakeProvider) SearchUser(ctx context.Context, username string) (*mfasdk.UserResult, bool, error) {
	f.calls["search_user"]++
	if !f.searchFound {
		return nil, false, nil
	}
	return &mfasdk.UserResult{Status: mfasdk.StatusSuccess, Username: username}, true, nil
}

func (f *fakeProvider) DeleteUser(ctx context.Context, username string) error {
	f.calls["delete_user"]++
	return nil
}

func (f *fakeProvider) EnableUser(ctx context.Context, username string) error {
	f.calls["enable_user"]++
	return nil
}

func (f *fakeProvider) DisableUser(ctx context.Context, username string) error {
	f.calls["disable_user"]++
	return nil
}

func (f *fakeProvider) FetchLicense(ctx context.Context) (*mfasdk.License, error) {
	f.calls["fetch_license"]++
	return &mfasdk.License{Status: mfasdk.StatusSuccess, Plan: "test"}, nil
}

func (f *fakeProvider) totalCalls() int {
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

const testPassword = "hunter2hunter2"

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeProvider, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	signer, err := jwtx.NewSigner()
	require.NoError(t, err)

	provider := newFakeProvider()
	orch := &Orchestrator{
		Store:    st,
		Provider: provider,
		Settings: &SettingsService{Store: st},
		Signer:   signer,
		Issuer:   "stepauth-test",
	}
	return orch, provider, st
}

func createTestUser(t *testing.T, st store.Store, username string, roles ...string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@corp.example",
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func saveSettings(t *testing.T, orch *Orchestrator, mutate func(*domain.Settings)) {
	t.Helper()
	s := domain.DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	require.NoError(t, orch.Settings.Save(context.Background(), s))
}

func configureMFA(t *testing.T, st store.Store, user domain.User, method domain.Method) domain.MFARecord {
	t.Helper()
	rec := domain.MFARecord{
		UserID:          user.ID,
		RegisteredEmail: user.Email,
		Enabled:         true,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	rec.Activate(method)
	require.NoError(t, st.MFARecords().UpsertMFARecord(context.Background(), rec))
	return rec
}

func TestBeginLoginCredentials(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	createTestUser(t, st, "alice")

	t.Run("wrong password", func(t *testing.T) {
		_, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "nobody", Password: testPassword})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	require.Zero(t, provider.totalCalls(), "failed first factor must not reach the provider")
}

func TestChallengeAndVerify(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodGoogleAuth)

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, OutcomeChallenged, res.Outcome)
	require.Equal(t, domain.MethodGoogleAuth, res.Method)
	require.NotEmpty(t, res.LoginID)
	require.Equal(t, domain.DefaultLoginAttempts, res.AttemptsRemaining)
	require.Equal(t, 1, provider.calls["challenge"])

	final, err := orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, final.Outcome)
	require.Equal(t, "/user", final.RedirectTo)

	claims, err := orch.Signer.Verify(final.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Contains(t, claims.AMR, jwtx.AMRPassword)
	require.Contains(t, claims.AMR, jwtx.AMRMFA)

	// Session is single use.
	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.ErrorIs(t, err, ErrLoginNotFound)
}

func TestVerifyWrongCodeBurnsAttempts(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodOTPOverEmail)

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	provider.validateResp = &mfasdk.Response{Status: mfasdk.StatusFailed}

	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "000000", nil)
	var invalid *InvalidCodeError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 2, invalid.AttemptsRemaining)

	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "000000", nil)
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 1, invalid.AttemptsRemaining)

	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "000000", nil)
	require.ErrorIs(t, err, ErrAttemptsExhausted)

	// Session torn down with the last attempt.
	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "000000", nil)
	require.ErrorIs(t, err, ErrLoginNotFound)
}

func TestVerifyTamperAbortsLogin(t *testing.T) {
	ctx := context.Background()
	orch, _, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodOTPOverEmail)

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	_, err = orch.VerifyChallenge(ctx, res.LoginID, "someone-else", "123456", nil)
	require.ErrorIs(t, err, ErrTamperDetected)

	// Abort is destructive: the real user cannot resume either.
	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.ErrorIs(t, err, ErrLoginNotFound)
}

func TestVerifyDenied(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodOTPOverEmail)

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	provider.validateResp = &mfasdk.Response{Status: mfasdk.StatusDenied}
	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.ErrorIs(t, err, ErrChallengeDenied)

	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.ErrorIs(t, err, ErrLoginNotFound)
}

func TestAsyncChallengePoll(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodPush)

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, OutcomeChallenged, res.Outcome)

	provider.authStatusResp = &mfasdk.Response{Status: mfasdk.StatusInProgress}
	pending, err := orch.PollChallenge(ctx, res.LoginID, user.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomePending, pending.Outcome)

	provider.authStatusResp = &mfasdk.Response{Status: mfasdk.StatusSuccess}
	final, err := orch.PollChallenge(ctx, res.LoginID, user.ID)
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, final.Outcome)
	require.Zero(t, provider.calls["validate"], "async methods never call validate")
}

func TestBackdoorSkipsProvider(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	admin := createTestUser(t, st, "root", domain.AdminRole)
	configureMFA(t, st, admin, domain.MethodGoogleAuth)
	saveSettings(t, orch, func(s *domain.Settings) {
		s.BackdoorEnabled = true
		s.BackdoorSecret = "skeleton-key"
	})

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{
		Username:       "root",
		Password:       testPassword,
		BackdoorSecret: "skeleton-key",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, res.Outcome)
	require.Zero(t, provider.totalCalls(), "backdoor must not touch the provider")

	claims, err := orch.Signer.Verify(res.Token)
	require.NoError(t, err)
	require.Contains(t, claims.AMR, jwtx.AMRBackdoor)
	require.NotContains(t, claims.AMR, jwtx.AMRMFA)

	t.Run("wrong secret falls through to challenge", func(t *testing.T) {
		res, err := orch.BeginLogin(ctx, BeginLoginRequest{
			Username:       "root",
			Password:       testPassword,
			BackdoorSecret: "wrong",
		})
		require.NoError(t, err)
		require.Equal(t, OutcomeChallenged, res.Outcome)
	})
}

func TestRememberDeviceBypass(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodOTPOverEmail)

	device := DeviceInfo{UserAgent: "test-agent", ClientIP: "203.0.113.9"}

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{
		Username:       "alice",
		Password:       testPassword,
		RememberDevice: true,
		Device:         device,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeChallenged, res.Outcome)

	final, err := orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, final.Outcome)

	provider.calls = make(map[string]int)

	// Same device skips straight past the challenge.
	res2, err := orch.BeginLogin(ctx, BeginLoginRequest{
		Username: "alice",
		Password: testPassword,
		Device:   device,
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, res2.Outcome)
	require.Zero(t, provider.totalCalls())

	claims, err := orch.Signer.Verify(res2.Token)
	require.NoError(t, err)
	require.Contains(t, claims.AMR, jwtx.AMRDevice)

	// A different device is still challenged.
	res3, err := orch.BeginLogin(ctx, BeginLoginRequest{
		Username: "alice",
		Password: testPassword,
		Device:   DeviceInfo{UserAgent: "other-agent", ClientIP: "198.51.100.7"},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeChallenged, res3.Outcome)
}

func TestUnconfiguredUserPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("fail open by default", func(t *testing.T) {
		orch, provider, st := newTestOrchestrator(t)
		createTestUser(t, st, "alice")

		res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
		require.NoError(t, err)
		require.Equal(t, OutcomeFinalized, res.Outcome)
		require.Zero(t, provider.totalCalls())

		claims, err := orch.Signer.Verify(res.Token)
		require.NoError(t, err)
		require.Equal(t, []string{jwtx.AMRPassword}, claims.AMR)
	})

	t.Run("fail closed when skip disabled", func(t *testing.T) {
		orch, _, st := newTestOrchestrator(t)
		createTestUser(t, st, "bob")
		saveSettings(t, orch, func(s *domain.Settings) { s.AllowUnconfiguredSkip = false })

		_, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "bob", Password: testPassword})
		require.ErrorIs(t, err, ErrMFANotConfigured)
	})

	t.Run("redirect hint wins over configured default", func(t *testing.T) {
		orch, _, st := newTestOrchestrator(t)
		createTestUser(t, st, "carol")

		res, err := orch.BeginLogin(ctx, BeginLoginRequest{
			Username:     "carol",
			Password:     testPassword,
			RedirectHint: "/dashboard",
		})
		require.NoError(t, err)
		require.Equal(t, "/dashboard", res.RedirectTo)
	})
}

func TestDisabledRecordSkipsChallenge(t *testing.T) {
	ctx := context.Background()
	orch, provider, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	rec := configureMFA(t, st, user, domain.MethodGoogleAuth)
	rec.Enabled = false
	require.NoError(t, st.MFARecords().UpsertMFARecord(ctx, rec))

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, OutcomeFinalized, res.Outcome)
	require.Zero(t, provider.totalCalls())
}

func TestCancelLogin(t *testing.T) {
	ctx := context.Background()
	orch, _, st := newTestOrchestrator(t)
	user := createTestUser(t, st, "alice")
	configureMFA(t, st, user, domain.MethodOTPOverEmail)

	res, err := orch.BeginLogin(ctx, BeginLoginRequest{Username: "alice", Password: testPassword})
	require.NoError(t, err)

	require.NoError(t, orch.CancelLogin(ctx, res.LoginID, user.ID))

	_, err = orch.VerifyChallenge(ctx, res.LoginID, user.ID, "123456", nil)
	require.ErrorIs(t, err, ErrLoginNotFound)

	// Cancel is idempotent.
	require.NoError(t, orch.CancelLogin(ctx, res.LoginID, user.ID))
}
