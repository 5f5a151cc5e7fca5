package notification

import (
	"context"
	"time"
)

// Store is the data-access boundary of the notification core. Reads cover
// the external entities the core consumes (gifticons, participants, device
// tokens); writes go through a Tx so post-commit hooks can be attached.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// ForEachGifticonExpiringOn streams every eligible gifticon whose expiry
	// date is in dates: not used, not deleted, not amount-depleted. One
	// bounded query; rows are walked, not buffered.
	ForEachGifticonExpiringOn(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error

	FindGifticon(ctx context.Context, id int) (*Gifticon, error)
	FindParticipantUserIDs(ctx context.Context, groupID int) ([]int, error)
	FindSettingsForUsers(ctx context.Context, userIDs []int, code TypeCode) ([]NotificationSetting, error)
	FindSettingForUser(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error)
	FindDeviceTokens(ctx context.Context, userID int) ([]DeviceToken, error)
	FindProximityTokens(ctx context.Context, values []string) ([]ProximityToken, error)

	UpsertSetting(ctx context.Context, s *NotificationSetting) error
}

// Tx is a unit of work. AfterCommit hooks run only after Commit succeeds and
// never when the transaction rolls back.
type Tx interface {
	SaveNotification(ctx context.Context, n *Notification) error
	TransferGifticonOwner(ctx context.Context, gifticonID, toUserID int) error
	SaveOwnerHistory(ctx context.Context, h *OwnerHistory) error

	AfterCommit(fn func())
	Commit() error
	Rollback() error
}
