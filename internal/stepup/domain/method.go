package domain

// Method is a closed enum of second-factor method codes. The string values
// are the provider's wire codes; Go code never branches on raw strings,
// only through the registry below.
type Method string

const (
	MethodOTPOverSMS    Method = "OTP OVER SMS"
	MethodOTPOverEmail  Method = "OTP OVER EMAIL"
	MethodPhoneCall     Method = "PHONE VERIFICATION"
	MethodGoogleAuth    Method = "GOOGLE AUTHENTICATOR"
	MethodMicrosoftAuth Method = "MICROSOFT AUTHENTICATOR"
	MethodSoftToken     Method = "SOFT TOKEN"
	MethodPush          Method = "PUSH NOTIFICATIONS"
	MethodMobileQR      Method = "MOBILE AUTHENTICATION"
	MethodKBA           Method = "KBA"
	MethodHardwareToken Method = "HARDWARE TOKEN"
	MethodEmailLink     Method = "EMAIL VERIFICATION"
)

// Family groups methods by how their challenge round-trip works.
type Family string

const (
	// FamilyOTP: provider dispatches a one-time code out of band (SMS,
	// email, voice call); the user types it back.
	FamilyOTP Family = "otp"
	// FamilyTOTP: authenticator-app codes; registration pairs a secret,
	// login validates a current code.
	FamilyTOTP Family = "totp"
	// FamilyOutOfBand: push/QR/email-link approvals; the gateway polls the
	// provider until the user acts on their device.
	FamilyOutOfBand Family = "oob"
	// FamilyKBA: knowledge-based answers.
	FamilyKBA Family = "kba"
	// FamilyHardware: hardware token codes.
	FamilyHardware Family = "hardware"
)

// MethodInfo describes how the orchestrator must drive a method. It is
// consulted once per decision point instead of re-deriving behaviour from
// the method code at every call site.
type MethodInfo struct {
	Family        Family
	RequiresPhone bool // user must have a phone number on file
	RequiresQR    bool // registration produces a QR payload to display
	Asynchronous  bool // verified by polling auth-status, not by submitting a code
}

var registry = map[Method]MethodInfo{
	MethodOTPOverSMS:    {Family: FamilyOTP, RequiresPhone: true},
	MethodOTPOverEmail:  {Family: FamilyOTP},
	MethodPhoneCall:     {Family: FamilyOTP, RequiresPhone: true},
	MethodGoogleAuth:    {Family: FamilyTOTP, RequiresQR: true},
	MethodMicrosoftAuth: {Family: FamilyTOTP, RequiresQR: true},
	MethodSoftToken:     {Family: FamilyTOTP},
	MethodPush:          {Family: FamilyOutOfBand, Asynchronous: true},
	MethodMobileQR:      {Family: FamilyOutOfBand, RequiresQR: true, Asynchronous: true},
	MethodKBA:           {Family: FamilyKBA},
	MethodHardwareToken: {Family: FamilyHardware},
	MethodEmailLink:     {Family: FamilyOutOfBand, Asynchronous: true},
}

// Info returns the registry entry for m. ok is false for unknown codes.
func (m Method) Info() (MethodInfo, bool) {
	info, ok := registry[m]
	return info, ok
}

// Known reports whether m is a registered method code.
func (m Method) Known() bool {
	_, ok := registry[m]
	return ok
}

// IsTOTPFamily reports whether m is an authenticator-app method. Only one
// TOTP-family method may be active per user at a time.
func (m Method) IsTOTPFamily() bool {
	info, ok := registry[m]
	return ok && info.Family == FamilyTOTP
}

// AllMethods returns every registered method code. Order is unspecified.
func AllMethods() []Method {
	out := make([]Method, 0, len(registry))
	for m := range registry {
		out = append(out, m)
	}
	return out
}
