package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/pkg/mfasdk"
	"github.com/stepauth/stepauth/pkg/slogx"
)

// Admin exposes the operator surface: inspect and reset a user's MFA
// state, flip enrollment on and off, and read the provider license.
// Provider-side state is kept in step with local state where the vendor
// has a matching operation.
type Admin struct {
	Store    store.Store
	Provider Provider
}

// MFAStatus is the operator's view of one user's second-factor state.
type MFAStatus struct {
	UserID            string          `json:"user_id"`
	Username          string          `json:"username"`
	Enabled           bool            `json:"enabled"`
	ActivatedMethod   domain.Method   `json:"activated_method,omitempty"`
	ConfiguredMethods []domain.Method `json:"configured_methods,omitempty"`
	RememberedDevices int             `json:"remembered_devices"`
}

// GetMFAStatus returns the user's second-factor state; ErrNotFound when
// the user does not exist. A user without a record reports as simply not
// enrolled.
func (a *Admin) GetMFAStatus(ctx context.Context, userID string) (*MFAStatus, error) {
	user, err := a.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &MFAStatus{UserID: user.ID, Username: user.Username}

	rec, err := a.Store.MFARecords().GetMFARecord(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return status, nil
		}
		return nil, err
	}

	status.Enabled = rec.Enabled
	status.ActivatedMethod = rec.ActivatedMethod
	status.ConfiguredMethods = rec.ConfiguredMethods
	status.RememberedDevices = len(rec.RememberedDevices)
	return status, nil
}

// ResetMFA wipes the user's second-factor state on both sides. The user
// re-enrolls from scratch on their next login. The provider delete is
// attempted first so a vendor outage does not leave a ghost vendor user
// behind a missing local record.
func (a *Admin) ResetMFA(ctx context.Context, userID string) error {
	l := slogx.FromContext(ctx)

	user, err := a.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := a.Provider.DeleteUser(ctx, user.Username); err != nil {
		// A vendor 404 just means there was nothing to delete.
		var pe *mfasdk.ProviderError
		if !errors.As(err, &pe) || pe.HTTPStatus != 404 {
			return fmt.Errorf("delete provider user: %w", err)
		}
	}

	if err := a.Store.MFARecords().DeleteMFARecord(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	l.Info("mfa reset", "user_id", userID, "username", user.Username)
	return nil
}

// SetMFAEnabled flips a user's enrollment without discarding it. The
// vendor-side toggle mirrors the local one; disabled users pass straight
// through login until re-enabled.
func (a *Admin) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	l := slogx.FromContext(ctx)

	user, err := a.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := a.Store.MFARecords().GetMFARecord(ctx, userID); err != nil {
		return err
	}

	if enabled {
		err = a.Provider.EnableUser(ctx, user.Username)
	} else {
		err = a.Provider.DisableUser(ctx, user.Username)
	}
	if err != nil {
		return fmt.Errorf("toggle provider user: %w", err)
	}

	if err := a.Store.MFARecords().SetMFAEnabled(ctx, userID, enabled); err != nil {
		return err
	}

	l.Info("mfa toggled", "user_id", userID, "enabled", enabled)
	return nil
}

// License reads the provider's plan and user-capacity counters.
func (a *Admin) License(ctx context.Context) (*mfasdk.License, error) {
	return a.Provider.FetchLicense(ctx)
}
