package domain

import "time"

// TargetRule combines role and domain targeting when both are enabled.
type TargetRule string

const (
	TargetRuleAnd TargetRule = "AND"
	TargetRuleOr  TargetRule = "OR"
)

// Settings is the module-wide behavioural configuration. Read on every
// login; written only through the admin settings API.
type Settings struct {
	// PasswordlessOnly forces a second factor for every login regardless
	// of targeting rules ("use only second factor").
	PasswordlessOnly bool `json:"passwordless_only"`

	// Role/domain targeting. When neither is enabled, everyone is subject
	// to MFA. When both are enabled, TargetRule combines them.
	RoleTargetingEnabled   bool       `json:"role_targeting_enabled"`
	TargetRoles            []string   `json:"target_roles"`
	DomainTargetingEnabled bool       `json:"domain_targeting_enabled"`
	TargetDomains          []string   `json:"target_domains"`
	TargetRule             TargetRule `json:"target_rule"`

	// InlineEnrollment forces first-time users through method enrollment
	// at login.
	InlineEnrollment bool `json:"inline_enrollment"`

	// AllowUnconfiguredSkip lets users with no MFA record log in without a
	// second factor when inline enrollment is off. This fail-open default
	// mirrors the behaviour of the system this one replaces; set it false
	// to fail closed.
	AllowUnconfiguredSkip bool `json:"allow_unconfigured_skip"`

	// AllowedMethods is the global method allow-list. RoleAllowedMethods
	// narrows it per role when role targeting is enabled.
	AllowedMethods     []Method            `json:"allowed_methods"`
	RoleAllowedMethods map[string][]Method `json:"role_allowed_methods,omitempty"`

	// Remembered-device policy.
	RememberDevices      bool          `json:"remember_devices"`
	RememberDuration     time.Duration `json:"remember_duration"`
	MaxRememberedDevices int           `json:"max_remembered_devices"`

	// Backdoor lets administrators holding the shared secret skip MFA
	// entirely. A documented trapdoor, disabled by default.
	BackdoorEnabled bool   `json:"backdoor_enabled"`
	BackdoorSecret  string `json:"backdoor_secret,omitempty"`

	// PostLoginRedirect is the default destination after a finalized
	// login; a destination cookie presented at login wins over it.
	PostLoginRedirect string `json:"post_login_redirect"`
}

// DefaultSettings returns the out-of-the-box configuration: MFA for
// everyone who has it configured, fail-open for unconfigured users, all
// methods allowed, devices remembered for 30 days.
func DefaultSettings() Settings {
	return Settings{
		TargetRule:            TargetRuleOr,
		InlineEnrollment:      false,
		AllowUnconfiguredSkip: true,
		AllowedMethods:        AllMethods(),
		RememberDevices:       true,
		RememberDuration:      30 * 24 * time.Hour,
		MaxRememberedDevices:  5,
		PostLoginRedirect:     "/user",
	}
}

// MethodAllowed reports whether m is in the global allow-list.
func (s Settings) MethodAllowed(m Method) bool {
	for _, a := range s.AllowedMethods {
		if a == m {
			return true
		}
	}
	return false
}

// DomainTargeted reports whether the email domain is in the configured
// domain list.
func (s Settings) DomainTargeted(domain string) bool {
	for _, d := range s.TargetDomains {
		if d == domain {
			return true
		}
	}
	return false
}
