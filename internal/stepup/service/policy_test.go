package service

import (
	"testing"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stretchr/testify/require"
)

func TestIsMFARequired(t *testing.T) {
	t.Parallel()

	var policy Policy

	accountant := domain.User{
		Username: "carol",
		Email:    "carol@corp.example",
		Roles:    []string{"accountant"},
	}
	configured := &domain.MFARecord{
		Enabled:           true,
		ConfiguredMethods: []domain.Method{domain.MethodGoogleAuth},
		ActivatedMethod:   domain.MethodGoogleAuth,
	}

	t.Run("no targeting means everyone", func(t *testing.T) {
		require.True(t, policy.IsMFARequired(accountant, nil, domain.DefaultSettings()))
	})

	t.Run("disabled record always skips", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.PasswordlessOnly = true
		rec := &domain.MFARecord{Enabled: false, ConfiguredMethods: []domain.Method{domain.MethodKBA}}

		require.False(t, policy.IsMFARequired(accountant, rec, s))
	})

	t.Run("passwordless only overrides targeting", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.PasswordlessOnly = true
		s.RoleTargetingEnabled = true
		s.TargetRoles = []string{"some-other-role"}

		require.True(t, policy.IsMFARequired(accountant, nil, s))
	})

	t.Run("configured user stays targeted after role change", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.RoleTargetingEnabled = true
		s.TargetRoles = []string{"finance"}

		require.False(t, policy.IsMFARequired(accountant, nil, s))
		require.True(t, policy.IsMFARequired(accountant, configured, s))
	})

	t.Run("role targeting", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.RoleTargetingEnabled = true
		s.TargetRoles = []string{"accountant", "finance"}

		require.True(t, policy.IsMFARequired(accountant, nil, s))

		s.TargetRoles = []string{"finance"}
		require.False(t, policy.IsMFARequired(accountant, nil, s))
	})

	t.Run("domain targeting", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.DomainTargetingEnabled = true
		s.TargetDomains = []string{"corp.example"}

		require.True(t, policy.IsMFARequired(accountant, nil, s))

		s.TargetDomains = []string{"other.example"}
		require.False(t, policy.IsMFARequired(accountant, nil, s))
	})

	t.Run("combined targeting respects and rule", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.RoleTargetingEnabled = true
		s.TargetRoles = []string{"accountant"}
		s.DomainTargetingEnabled = true
		s.TargetDomains = []string{"other.example"}

		s.TargetRule = domain.TargetRuleOr
		require.True(t, policy.IsMFARequired(accountant, nil, s))

		s.TargetRule = domain.TargetRuleAnd
		require.False(t, policy.IsMFARequired(accountant, nil, s))

		s.TargetDomains = []string{"corp.example"}
		require.True(t, policy.IsMFARequired(accountant, nil, s))
	})
}

func TestDeviceBypassAllowed(t *testing.T) {
	t.Parallel()

	var policy Policy
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := &domain.MFARecord{
		Enabled:           true,
		ActivatedMethod:   domain.MethodOTPOverSMS,
		RememberedDevices: map[string]time.Time{"fp-1": now.Add(time.Hour)},
	}

	t.Run("trusted fingerprint bypasses", func(t *testing.T) {
		require.True(t, policy.DeviceBypassAllowed(rec, "fp-1", domain.DefaultSettings(), now))
	})

	t.Run("feature off blocks bypass", func(t *testing.T) {
		s := domain.DefaultSettings()
		s.RememberDevices = false
		require.False(t, policy.DeviceBypassAllowed(rec, "fp-1", s, now))
	})

	t.Run("unknown or empty fingerprint", func(t *testing.T) {
		require.False(t, policy.DeviceBypassAllowed(rec, "fp-2", domain.DefaultSettings(), now))
		require.False(t, policy.DeviceBypassAllowed(rec, "", domain.DefaultSettings(), now))
	})

	t.Run("expired trust", func(t *testing.T) {
		require.False(t, policy.DeviceBypassAllowed(rec, "fp-1", domain.DefaultSettings(), now.Add(2*time.Hour)))
	})

	t.Run("nil record", func(t *testing.T) {
		require.False(t, policy.DeviceBypassAllowed(nil, "fp-1", domain.DefaultSettings(), now))
	})
}

func TestBackdoorAllowed(t *testing.T) {
	t.Parallel()

	var policy Policy

	admin := domain.User{Username: "root", Roles: []string{domain.AdminRole}}
	regular := domain.User{Username: "bob", Roles: []string{"editor"}}

	enabled := domain.DefaultSettings()
	enabled.BackdoorEnabled = true
	enabled.BackdoorSecret = "let-me-in"

	t.Run("admin with correct secret", func(t *testing.T) {
		require.True(t, policy.BackdoorAllowed(admin, "let-me-in", enabled))
	})

	t.Run("wrong secret", func(t *testing.T) {
		require.False(t, policy.BackdoorAllowed(admin, "guess", enabled))
		require.False(t, policy.BackdoorAllowed(admin, "", enabled))
	})

	t.Run("non admin rejected even with secret", func(t *testing.T) {
		require.False(t, policy.BackdoorAllowed(regular, "let-me-in", enabled))
	})

	t.Run("flag off rejects everyone", func(t *testing.T) {
		s := enabled
		s.BackdoorEnabled = false
		require.False(t, policy.BackdoorAllowed(admin, "let-me-in", s))
	})

	t.Run("empty configured secret never matches", func(t *testing.T) {
		s := enabled
		s.BackdoorSecret = ""
		require.False(t, policy.BackdoorAllowed(admin, "", s))
	})
}
