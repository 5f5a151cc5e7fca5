package notification

import (
	"time"
)

// Notification is the durable per-user record. Immutable after creation
// except IsRead.
type Notification struct {
	ID                  string    `json:"id"`
	UserID              int       `json:"user_id"`
	Title               string    `json:"title"`
	Content             string    `json:"content"`
	TypeCode            TypeCode  `json:"notification_type_code"`
	ReferenceEntityType string    `json:"reference_entity_type,omitempty"`
	ReferenceEntityID   int       `json:"reference_entity_id,omitempty"`
	IsRead              bool      `json:"is_read"`
	CreatedAt           time.Time `json:"created_at"`
}

// NotificationSetting holds one user's preference for one notification type.
// At most one row exists per (user, type). ExpirationCycle is only meaningful
// for the EXPIRY_DATE type.
type NotificationSetting struct {
	ID              int             `json:"id"`
	UserID          int             `json:"user_id"`
	TypeCode        TypeCode        `json:"notification_type_code"`
	IsEnabled       bool            `json:"is_enabled"`
	ExpirationCycle ExpirationCycle `json:"expiration_cycle,omitempty"`
}

// Event is the transient wire payload handed to the broker. Enum codes are
// serialized by name so producer and consumer can deploy independently.
type Event struct {
	FCMToken            string   `json:"fcmToken"`
	Title               string   `json:"title"`
	Body                string   `json:"body"`
	UserID              int      `json:"userId,omitempty"`
	TypeCode            TypeCode `json:"notificationTypeCode"`
	ReferenceEntityType string   `json:"referenceEntityType,omitempty"`
	ReferenceEntityID   int      `json:"referenceEntityId,omitempty"`
}

// GifticonKind distinguishes amount-based vouchers (partial redemption) from
// product-based ones (single use).
type GifticonKind string

const (
	KindAmount  GifticonKind = "AMOUNT"
	KindProduct GifticonKind = "PRODUCT"
)

// Gifticon is a read-only view of the wallet entity. The notification core
// never mutates it except for the give-away ownership transfer.
type Gifticon struct {
	ID              int
	Name            string
	Kind            GifticonKind
	ExpiryDate      time.Time
	OwnerUserID     int
	GroupID         int // share-box id; 0 when not shared
	RemainingAmount int
	IsUsed          bool
	IsDeleted       bool
}

// Shared reports whether the gifticon sits in a share box.
func (g *Gifticon) Shared() bool {
	return g.GroupID != 0
}

// DeviceToken is one of a user's registered push targets. A user may hold
// zero or more; fan-out pushes to each separately.
type DeviceToken struct {
	UserID int
	Value  string
}

// ProximityToken is a BLE advertising token currently registered by a nearby
// user, resolvable to that user.
type ProximityToken struct {
	Value  string
	UserID int
}

// TransferType records how a gifticon changed hands.
type TransferType string

const (
	TransferGiveAway TransferType = "GIVE_AWAY"
	TransferPresent  TransferType = "PRESENT"
)

// OwnerHistory is the audit row written whenever ownership moves.
type OwnerHistory struct {
	GifticonID   int
	FromUserID   int
	ToUserID     int
	TransferType TransferType
}
