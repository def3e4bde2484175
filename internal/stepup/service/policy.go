package service

import (
	"crypto/subtle"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/domain"
)

// Policy is the pure decision logic for whether a login needs a second
// factor and whether a remembered device may bypass it. It holds no state
// and touches no I/O.
type Policy struct{}

// IsMFARequired decides whether this login must run a second factor.
// rec is nil for users who never configured a method.
//
// Decision order:
//  1. A user whose record is explicitly disabled is never challenged
//     (the admin/user opt-out path).
//  2. Passwordless-only mode requires MFA for everyone, overriding the
//     targeting rules.
//  3. A user with a configured method is always subject to MFA, even if
//     their current role/domain would no longer independently target
//     them.
//  4. With no targeting enabled, MFA applies to everyone.
//  5. Otherwise role and domain targeting apply, combined with the
//     configured AND/OR rule only when both are enabled.
func (Policy) IsMFARequired(user domain.User, rec *domain.MFARecord, s domain.Settings) bool {
	if rec != nil && !rec.Enabled {
		return false
	}
	if s.PasswordlessOnly {
		return true
	}
	if rec != nil && len(rec.ConfiguredMethods) > 0 {
		return true
	}

	switch {
	case s.RoleTargetingEnabled && s.DomainTargetingEnabled:
		inRoles := user.HasAnyRole(s.TargetRoles)
		inDomain := s.DomainTargeted(user.EmailDomain())
		if s.TargetRule == domain.TargetRuleAnd {
			return inRoles && inDomain
		}
		return inRoles || inDomain
	case s.RoleTargetingEnabled:
		return user.HasAnyRole(s.TargetRoles)
	case s.DomainTargetingEnabled:
		return s.DomainTargeted(user.EmailDomain())
	default:
		return true
	}
}

// DeviceBypassAllowed reports whether the remembered-device policy lets
// this fingerprint skip the challenge.
func (Policy) DeviceBypassAllowed(rec *domain.MFARecord, fingerprint string, s domain.Settings, now time.Time) bool {
	if !s.RememberDevices || rec == nil || fingerprint == "" {
		return false
	}
	return rec.DeviceTrusted(fingerprint, now)
}

// BackdoorAllowed reports whether the administrative backdoor applies:
// the flag must be on, the shared secret must match, and the user must
// hold the administrator role. All three, always.
func (Policy) BackdoorAllowed(user domain.User, secret string, s domain.Settings) bool {
	if !s.BackdoorEnabled || s.BackdoorSecret == "" || secret == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.BackdoorSecret)) != 1 {
		return false
	}
	return user.HasRole(domain.AdminRole)
}
