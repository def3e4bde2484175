package domain

import "time"

// MFARecord holds a user's second-factor configuration. It is created on
// the first successful method registration and deleted on account reset.
type MFARecord struct {
	UserID          string
	RegisteredEmail string
	PhoneNumber     string

	// ConfiguredMethods is every method the user has successfully
	// registered; ActivatedMethod is the single one used at login.
	ConfiguredMethods []Method
	ActivatedMethod   Method

	Enabled bool

	// TOTPSecretBlob is the opaque QR/secret payload the provider returned
	// for the active TOTP-family method. Never interpreted locally.
	TOTPSecretBlob string

	// RememberedDevices maps device fingerprint to trust expiry.
	RememberedDevices map[string]time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasConfigured reports whether m is among the configured methods.
func (r *MFARecord) HasConfigured(m Method) bool {
	for _, c := range r.ConfiguredMethods {
		if c == m {
			return true
		}
	}
	return false
}

// Activate sets m as the active method and adds it to the configured set.
// Activating a TOTP-family method evicts every other TOTP-family code from
// the configured set: only one authenticator app can be paired at a time.
func (r *MFARecord) Activate(m Method) {
	if m.IsTOTPFamily() {
		kept := r.ConfiguredMethods[:0]
		for _, c := range r.ConfiguredMethods {
			if !c.IsTOTPFamily() || c == m {
				kept = append(kept, c)
			}
		}
		r.ConfiguredMethods = kept
	}
	if !r.HasConfigured(m) {
		r.ConfiguredMethods = append(r.ConfiguredMethods, m)
	}
	r.ActivatedMethod = m
}

// DeviceTrusted reports whether the fingerprint is remembered and
// unexpired at the given time.
func (r *MFARecord) DeviceTrusted(fingerprint string, now time.Time) bool {
	expiry, ok := r.RememberedDevices[fingerprint]
	return ok && now.Before(expiry)
}

// PurgeExpiredDevices drops remembered devices whose trust has lapsed and
// returns how many were removed. Called lazily on lookup and by the
// housekeeping loop.
func (r *MFARecord) PurgeExpiredDevices(now time.Time) int {
	purged := 0
	for fp, expiry := range r.RememberedDevices {
		if !now.Before(expiry) {
			delete(r.RememberedDevices, fp)
			purged++
		}
	}
	return purged
}

// RememberDevice records the fingerprint as trusted until now+duration.
// Returns false without recording when the device quota is exhausted and
// the fingerprint is not already present.
func (r *MFARecord) RememberDevice(fingerprint string, duration time.Duration, maxDevices int, now time.Time) bool {
	if r.RememberedDevices == nil {
		r.RememberedDevices = make(map[string]time.Time)
	}
	r.PurgeExpiredDevices(now)

	_, exists := r.RememberedDevices[fingerprint]
	if !exists && maxDevices > 0 && len(r.RememberedDevices) >= maxDevices {
		return false
	}
	r.RememberedDevices[fingerprint] = now.Add(duration)
	return true
}
