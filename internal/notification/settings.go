package notification

import (
	"context"
	"fmt"
)

// DefaultExpirationCycle is applied when a user first gets settings rows.
const DefaultExpirationCycle = CycleThreeDays

// SettingsService mutates per-user notification preferences. The store's
// unique (user, type) index keeps the one-row-per-pair invariant.
type SettingsService struct {
	store Store
}

func NewSettingsService(store Store) *SettingsService {
	return &SettingsService{store: store}
}

// SetEnabled flips the push switch for one notification type, preserving the
// configured cycle.
func (s *SettingsService) SetEnabled(ctx context.Context, userID int, code TypeCode, enabled bool) error {
	if !code.Valid() {
		return fmt.Errorf("unknown notification type: %s", code)
	}

	setting, err := s.store.FindSettingForUser(ctx, userID, code)
	if err != nil {
		return err
	}
	if setting == nil {
		setting = &NotificationSetting{UserID: userID, TypeCode: code}
		if code == TypeExpiryDate {
			setting.ExpirationCycle = DefaultExpirationCycle
		}
	}
	setting.IsEnabled = enabled
	return s.store.UpsertSetting(ctx, setting)
}

// SetExpirationCycle changes the expiry lead time. Only meaningful for the
// EXPIRY_DATE type, and only values from the closed cycle set are accepted.
func (s *SettingsService) SetExpirationCycle(ctx context.Context, userID int, days int) error {
	cycle, err := ParseExpirationCycle(days)
	if err != nil {
		return err
	}

	setting, err := s.store.FindSettingForUser(ctx, userID, TypeExpiryDate)
	if err != nil {
		return err
	}
	if setting == nil {
		setting = &NotificationSetting{UserID: userID, TypeCode: TypeExpiryDate, IsEnabled: true}
	}
	setting.ExpirationCycle = cycle
	return s.store.UpsertSetting(ctx, setting)
}

// BootstrapDefaults creates the full set of enabled settings for a new user.
func (s *SettingsService) BootstrapDefaults(ctx context.Context, userID int) error {
	for code := range displayNames {
		setting := &NotificationSetting{UserID: userID, TypeCode: code, IsEnabled: true}
		if code == TypeExpiryDate {
			setting.ExpirationCycle = DefaultExpirationCycle
		}
		if err := s.store.UpsertSetting(ctx, setting); err != nil {
			return fmt.Errorf("failed to bootstrap setting %s for user %d: %w", code, userID, err)
		}
	}
	return nil
}
