package notification

import (
	"context"
	"fmt"

	"github.com/giftree/giftree/pkg/observability"
)

// Service is what domain code calls after a business mutation: it records
// the durable Notification row inside the caller's unit of work and arranges
// the push events to go out once that unit of work commits. If the caller
// rolls back, nothing is emitted.
type Service struct {
	store   Store
	emitter *Emitter
	logger  *observability.Logger
}

func NewService(store Store, emitter *Emitter, logger *observability.Logger) *Service {
	return &Service{store: store, emitter: emitter, logger: logger}
}

// Notify persists a notification for userID and schedules one push per
// registered device token. The row is written regardless of the user's
// setting; the push is gated on it. A user with no setting row for the type
// is treated as enabled.
func (s *Service) Notify(ctx context.Context, tx Tx, userID int, code TypeCode, body, refType string, refID int) error {
	if !code.Valid() {
		return fmt.Errorf("unknown notification type: %s", code)
	}

	title := code.DisplayName()
	err := tx.SaveNotification(ctx, &Notification{
		UserID:              userID,
		Title:               title,
		Content:             body,
		TypeCode:            code,
		ReferenceEntityType: refType,
		ReferenceEntityID:   refID,
	})
	if err != nil {
		return err
	}
	tx.AfterCommit(func() { NotificationsPersisted.WithLabelValues(string(code)).Inc() })

	setting, err := s.store.FindSettingForUser(ctx, userID, code)
	if err != nil {
		return err
	}
	if setting != nil && !setting.IsEnabled {
		return nil
	}

	tokens, err := s.store.FindDeviceTokens(ctx, userID)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		ev := Event{
			FCMToken:            t.Value,
			Title:               title,
			Body:                body,
			UserID:              userID,
			TypeCode:            code,
			ReferenceEntityType: refType,
			ReferenceEntityID:   refID,
		}
		tx.AfterCommit(func() { s.emitter.Emit(ev) })
	}
	return nil
}
