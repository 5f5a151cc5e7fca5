package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/giftree/giftree/pkg/observability"
)

type giveAwayFixture struct {
	store   *MockStore
	pub     *capturingPublisher
	emitter *Emitter
	svc     *GiveAwayService
	tx      *MockTx
}

func newGiveAwayFixture(t *testing.T, g *Gifticon) *giveAwayFixture {
	t.Helper()
	f := &giveAwayFixture{store: &MockStore{}, pub: &capturingPublisher{}, tx: &MockTx{}}
	f.emitter = NewEmitter(f.pub, observability.NewLogger("test"), 2, 16)
	notifier := NewService(f.store, f.emitter, observability.NewLogger("test"))
	f.svc = NewGiveAwayService(f.store, notifier, observability.NewLogger("test"))

	f.store.FindGifticonFunc = func(ctx context.Context, id int) (*Gifticon, error) {
		if g != nil && id == g.ID {
			return g, nil
		}
		return nil, nil
	}
	f.store.BeginFunc = func(ctx context.Context) (Tx, error) { return f.tx, nil }
	f.store.FindSettingForUserFunc = func(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
		return nil, nil
	}
	f.store.FindDeviceTokensFunc = func(ctx context.Context, userID int) ([]DeviceToken, error) {
		return []DeviceToken{{UserID: userID, Value: "tok"}}, nil
	}
	return f
}

func TestGiveAway_TransfersToRandomRecipient(t *testing.T) {
	g := &Gifticon{ID: 7, Name: "Americano", Kind: KindProduct, OwnerUserID: 1}
	f := newGiveAwayFixture(t, g)
	f.store.FindProximityTokensFunc = func(ctx context.Context, values []string) ([]ProximityToken, error) {
		return []ProximityToken{
			{Value: "ble-a", UserID: 10},
			{Value: "ble-b", UserID: 11},
			{Value: "ble-c", UserID: 12},
		}, nil
	}
	f.svc.pick = func(n int) int { return 1 }

	recipient, err := f.svc.GiveAway(context.Background(), 1, 7, []string{"ble-a", "ble-b", "ble-c"})
	if err != nil {
		t.Fatalf("give-away failed: %v", err)
	}
	f.emitter.Close()

	if recipient != 11 {
		t.Errorf("expected recipient 11, got %d", recipient)
	}
	if len(f.tx.Transfers) != 1 || f.tx.Transfers[0] != [2]int{7, 11} {
		t.Errorf("unexpected transfers %v", f.tx.Transfers)
	}
	if len(f.tx.Histories) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(f.tx.Histories))
	}
	h := f.tx.Histories[0]
	if h.GifticonID != 7 || h.FromUserID != 1 || h.ToUserID != 11 || h.TransferType != TransferGiveAway {
		t.Errorf("unexpected history %+v", h)
	}
	if len(f.tx.Saved) != 1 || f.tx.Saved[0].TypeCode != TypeReceiveGifticon || f.tx.Saved[0].UserID != 11 {
		t.Errorf("unexpected notification %+v", f.tx.Saved)
	}
	if !f.tx.Committed {
		t.Error("transaction was not committed")
	}
	if got := f.pub.events(); len(got) != 1 || got[0].UserID != 11 || got[0].TypeCode != TypeReceiveGifticon {
		t.Errorf("expected one RECEIVE_GIFTICON event for the recipient, got %+v", got)
	}
}

func TestGiveAway_NoNearbyRecipients(t *testing.T) {
	g := &Gifticon{ID: 7, Name: "Americano", Kind: KindProduct, OwnerUserID: 1}
	f := newGiveAwayFixture(t, g)
	defer f.emitter.Close()
	f.store.FindProximityTokensFunc = func(ctx context.Context, values []string) ([]ProximityToken, error) {
		return nil, nil
	}

	_, err := f.svc.GiveAway(context.Background(), 1, 7, []string{"ble-a"})
	if !errors.Is(err, ErrNoNearbyRecipients) {
		t.Fatalf("expected ErrNoNearbyRecipients, got %v", err)
	}
	if len(f.tx.Transfers) != 0 || len(f.tx.Saved) != 0 {
		t.Error("nothing should be written when nobody is nearby")
	}
}

func TestGiveAway_ValidationRejections(t *testing.T) {
	tests := []struct {
		name     string
		gifticon Gifticon
	}{
		{"not owned by caller", Gifticon{ID: 7, OwnerUserID: 2}},
		{"deleted", Gifticon{ID: 7, OwnerUserID: 1, IsDeleted: true}},
		{"already used", Gifticon{ID: 7, OwnerUserID: 1, IsUsed: true}},
		{"in a share box", Gifticon{ID: 7, OwnerUserID: 1, GroupID: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.gifticon
			f := newGiveAwayFixture(t, &g)
			defer f.emitter.Close()
			f.store.FindProximityTokensFunc = func(ctx context.Context, values []string) ([]ProximityToken, error) {
				t.Error("proximity lookup must not run for an invalid gifticon")
				return nil, nil
			}

			if _, err := f.svc.GiveAway(context.Background(), 1, 7, []string{"ble-a"}); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestGiveAway_UnknownGifticon(t *testing.T) {
	f := newGiveAwayFixture(t, nil)
	defer f.emitter.Close()

	if _, err := f.svc.GiveAway(context.Background(), 1, 99, []string{"ble-a"}); err == nil {
		t.Fatal("expected an error for a missing gifticon")
	}
}

func TestGiveAway_WriteFailureRollsBack(t *testing.T) {
	g := &Gifticon{ID: 7, Name: "Americano", Kind: KindProduct, OwnerUserID: 1}
	f := newGiveAwayFixture(t, g)
	f.store.FindProximityTokensFunc = func(ctx context.Context, values []string) ([]ProximityToken, error) {
		return []ProximityToken{{Value: "ble-a", UserID: 10}}, nil
	}
	f.tx.SaveOwnerHistoryFunc = func(ctx context.Context, h *OwnerHistory) error {
		return errors.New("insert failed")
	}

	_, err := f.svc.GiveAway(context.Background(), 1, 7, []string{"ble-a"})
	if err == nil {
		t.Fatal("expected the write failure to surface")
	}
	f.emitter.Close()

	if !f.tx.RolledBack {
		t.Error("transaction was not rolled back")
	}
	if got := f.pub.events(); len(got) != 0 {
		t.Errorf("expected no events after rollback, got %d", len(got))
	}
}
