package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stepauth/stepauth/internal/stepup/domain"
	"github.com/stepauth/stepauth/internal/stepup/store"
)

// SettingsService reads and writes the module-wide settings. Reads fall
// back to defaults until an admin saves anything.
type SettingsService struct {
	Store store.Store
}

// Get returns the stored settings, or the defaults when nothing has been
// saved yet.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	settings, err := s.Store.Settings().GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// ErrInvalidSettings wraps every validation failure out of Save so
// callers can map the whole class to a bad-request response.
var ErrInvalidSettings = errors.New("invalid_settings")

// Save validates and persists the settings.
func (s *SettingsService) Save(ctx context.Context, settings domain.Settings) error {
	if settings.TargetRule != domain.TargetRuleAnd && settings.TargetRule != domain.TargetRuleOr {
		return fmt.Errorf("%w: invalid target rule %q", ErrInvalidSettings, settings.TargetRule)
	}
	for _, m := range settings.AllowedMethods {
		if !m.Known() {
			return fmt.Errorf("%w: unknown method %q in allow-list", ErrInvalidSettings, m)
		}
	}
	for role, methods := range settings.RoleAllowedMethods {
		for _, m := range methods {
			if !m.Known() {
				return fmt.Errorf("%w: unknown method %q for role %q", ErrInvalidSettings, m, role)
			}
		}
	}
	if settings.RememberDevices && settings.RememberDuration <= 0 {
		return fmt.Errorf("%w: remember duration must be positive", ErrInvalidSettings)
	}
	if settings.BackdoorEnabled && settings.BackdoorSecret == "" {
		return fmt.Errorf("%w: backdoor requires a shared secret", ErrInvalidSettings)
	}
	if settings.PostLoginRedirect == "" {
		settings.PostLoginRedirect = domain.DefaultSettings().PostLoginRedirect
	}

	return s.Store.Settings().SaveSettings(ctx, settings)
}
