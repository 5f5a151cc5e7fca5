package notification

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/giftree/giftree/pkg/observability"
)

// ErrNoNearbyRecipients means none of the advertised BLE tokens resolved to
// a registered user; the caller should tell the giver nobody is around, not
// treat it as an internal failure.
var ErrNoNearbyRecipients = errors.New("no recipients nearby")

// GiveAwayService hands a gifticon to a random nearby user. The ownership
// transfer, the history row and the RECEIVE_GIFTICON notification share one
// unit of work; the push goes out only after it commits.
type GiveAwayService struct {
	store    Store
	notifier *Service
	logger   *observability.Logger

	// pick selects an index in [0,n); uniform by default, swappable in tests.
	pick func(n int) int
}

func NewGiveAwayService(store Store, notifier *Service, logger *observability.Logger) *GiveAwayService {
	return &GiveAwayService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		pick:     rand.IntN,
	}
}

// GiveAway transfers gifticonID from ownerUserID to one recipient selected
// uniformly at random among candidateTokens that are currently registered.
// Returns the recipient's user id.
func (s *GiveAwayService) GiveAway(ctx context.Context, ownerUserID, gifticonID int, candidateTokens []string) (int, error) {
	g, err := s.store.FindGifticon(ctx, gifticonID)
	if err != nil {
		return 0, err
	}
	if g == nil {
		return 0, fmt.Errorf("gifticon %d not found", gifticonID)
	}
	if err := validateForGiveAway(ownerUserID, g); err != nil {
		return 0, err
	}

	tokens, err := s.store.FindProximityTokens(ctx, candidateTokens)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, ErrNoNearbyRecipients
	}

	recipient := tokens[s.pick(len(tokens))]

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.transfer(ctx, tx, g, ownerUserID, recipient.UserID); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.Info("gifticon given away",
		"gifticon_id", g.ID, "from_user_id", ownerUserID, "to_user_id", recipient.UserID)
	return recipient.UserID, nil
}

func (s *GiveAwayService) transfer(ctx context.Context, tx Tx, g *Gifticon, fromUserID, toUserID int) error {
	if err := tx.TransferGifticonOwner(ctx, g.ID, toUserID); err != nil {
		return err
	}
	err := tx.SaveOwnerHistory(ctx, &OwnerHistory{
		GifticonID:   g.ID,
		FromUserID:   fromUserID,
		ToUserID:     toUserID,
		TransferType: TransferGiveAway,
	})
	if err != nil {
		return err
	}

	body := fmt.Sprintf("A give-away surprise! %s has arrived.", g.Name)
	return s.notifier.Notify(ctx, tx, toUserID, TypeReceiveGifticon, body, "gifticon", g.ID)
}

func validateForGiveAway(ownerUserID int, g *Gifticon) error {
	switch {
	case g.OwnerUserID != ownerUserID:
		return fmt.Errorf("gifticon %d is not owned by user %d", g.ID, ownerUserID)
	case g.IsDeleted:
		return fmt.Errorf("gifticon %d is deleted", g.ID)
	case g.IsUsed:
		return fmt.Errorf("gifticon %d is already used", g.ID)
	case g.Shared():
		return fmt.Errorf("gifticon %d is in a share box and cannot be given away", g.ID)
	}
	return nil
}
