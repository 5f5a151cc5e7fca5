package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/giftree/giftree/pkg/observability"
)

// scanFixture wires a Scanner against mocks and captures every committed tx
// and every published event.
type scanFixture struct {
	store   *MockStore
	emitter *Emitter
	scanner *Scanner

	mu        sync.Mutex
	published []Event
	txs       []*MockTx
}

func newScanFixture(t *testing.T, guard DayGuard) *scanFixture {
	t.Helper()
	f := &scanFixture{store: &MockStore{}}

	pub := &MockPublisher{
		PublishFunc: func(ctx context.Context, ev Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, ev)
			return nil
		},
	}
	f.emitter = NewEmitter(pub, observability.NewLogger("test"), 2, 16)

	f.store.BeginFunc = func(ctx context.Context) (Tx, error) {
		tx := &MockTx{}
		f.mu.Lock()
		f.txs = append(f.txs, tx)
		f.mu.Unlock()
		return tx, nil
	}

	f.scanner = NewScanner(f.store, f.emitter, guard, observability.NewLogger("test"))
	return f
}

// run executes the scan and drains the emitter so assertions see every event.
func (f *scanFixture) run(t *testing.T) error {
	t.Helper()
	err := f.scanner.Run(context.Background())
	f.emitter.Close()
	return err
}

func (f *scanFixture) savedNotifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []Notification
	for _, tx := range f.txs {
		if tx.Committed {
			all = append(all, tx.Saved...)
		}
	}
	return all
}

func singleGifticon(g *Gifticon) func(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error {
	return func(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error {
		return fn(g)
	}
}

func TestScanner_SharedFanOut(t *testing.T) {
	today := date(2025, 5, 10)

	// Three participants: cycles 1, 30, 30; gifticon expires in 30 days.
	// Only the two cycle-30 participants fire.
	g := &Gifticon{ID: 7, Name: "Americano", Kind: KindProduct, ExpiryDate: today.AddDate(0, 0, 30), OwnerUserID: 1, GroupID: 5}

	f := newScanFixture(t, nil)
	f.scanner.now = func() time.Time { return today }
	f.store.ForEachGifticonExpiringOnFunc = singleGifticon(g)
	f.store.FindParticipantUserIDsFunc = func(ctx context.Context, groupID int) ([]int, error) {
		if groupID != 5 {
			t.Errorf("expected group 5, got %d", groupID)
		}
		return []int{1, 2, 3}, nil
	}
	f.store.FindSettingsForUsersFunc = func(ctx context.Context, userIDs []int, code TypeCode) ([]NotificationSetting, error) {
		return []NotificationSetting{
			{UserID: 1, TypeCode: TypeExpiryDate, IsEnabled: true, ExpirationCycle: CycleOneDay},
			{UserID: 2, TypeCode: TypeExpiryDate, IsEnabled: true, ExpirationCycle: CycleOneMonth},
			{UserID: 3, TypeCode: TypeExpiryDate, IsEnabled: true, ExpirationCycle: CycleOneMonth},
		}, nil
	}
	f.store.FindDeviceTokensFunc = func(ctx context.Context, userID int) ([]DeviceToken, error) {
		return []DeviceToken{{UserID: userID, Value: "tok"}}, nil
	}

	if err := f.run(t); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	saved := f.savedNotifications()
	if len(saved) != 2 {
		t.Fatalf("expected 2 persisted notifications, got %d", len(saved))
	}
	for _, n := range saved {
		if n.UserID != 2 && n.UserID != 3 {
			t.Errorf("unexpected recipient %d", n.UserID)
		}
		if n.TypeCode != TypeExpiryDate {
			t.Errorf("expected EXPIRY_DATE, got %s", n.TypeCode)
		}
	}
	if len(f.published) != 2 {
		t.Errorf("expected 2 push events, got %d", len(f.published))
	}
}

func TestScanner_DisabledSettingPersistsWithoutPush(t *testing.T) {
	today := date(2025, 5, 10)
	g := &Gifticon{ID: 9, Name: "Latte", Kind: KindProduct, ExpiryDate: today.AddDate(0, 0, 7), OwnerUserID: 4}

	f := newScanFixture(t, nil)
	f.scanner.now = func() time.Time { return today }
	f.store.ForEachGifticonExpiringOnFunc = singleGifticon(g)
	f.store.FindSettingForUserFunc = func(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
		return &NotificationSetting{UserID: 4, TypeCode: TypeExpiryDate, IsEnabled: false, ExpirationCycle: CycleOneWeek}, nil
	}
	f.store.FindDeviceTokensFunc = func(ctx context.Context, userID int) ([]DeviceToken, error) {
		t.Error("device tokens must not be loaded for a disabled setting")
		return nil, nil
	}

	if err := f.run(t); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if saved := f.savedNotifications(); len(saved) != 1 {
		t.Fatalf("expected 1 persisted notification, got %d", len(saved))
	}
	if len(f.published) != 0 {
		t.Errorf("expected no push events, got %d", len(f.published))
	}
}

func TestScanner_NoMatchNoRow(t *testing.T) {
	today := date(2025, 5, 10)
	// Expires in 30 days but the owner wants a 7-day warning: nothing today.
	g := &Gifticon{ID: 11, Name: "Cake", Kind: KindProduct, ExpiryDate: today.AddDate(0, 0, 30), OwnerUserID: 4}

	f := newScanFixture(t, nil)
	f.scanner.now = func() time.Time { return today }
	f.store.ForEachGifticonExpiringOnFunc = singleGifticon(g)
	f.store.FindSettingForUserFunc = func(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
		return &NotificationSetting{UserID: 4, TypeCode: TypeExpiryDate, IsEnabled: true, ExpirationCycle: CycleOneWeek}, nil
	}

	if err := f.run(t); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if saved := f.savedNotifications(); len(saved) != 0 {
		t.Errorf("expected no rows, got %d", len(saved))
	}
}

func TestScanner_DayGuardBlocksSecondRun(t *testing.T) {
	today := date(2025, 5, 10)
	g := &Gifticon{ID: 3, Name: "Tea", Kind: KindProduct, ExpiryDate: today.AddDate(0, 0, 1), OwnerUserID: 8}

	marked := map[string]bool{}
	guard := &MockDayGuard{TryMarkFunc: func(ctx context.Context, day string) (bool, error) {
		if marked[day] {
			return false, nil
		}
		marked[day] = true
		return true, nil
	}}

	f := newScanFixture(t, guard)
	f.scanner.now = func() time.Time { return today }
	f.store.ForEachGifticonExpiringOnFunc = singleGifticon(g)
	f.store.FindSettingForUserFunc = func(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
		return &NotificationSetting{UserID: 8, TypeCode: TypeExpiryDate, IsEnabled: true, ExpirationCycle: CycleOneDay}, nil
	}
	f.store.FindDeviceTokensFunc = func(ctx context.Context, userID int) ([]DeviceToken, error) {
		return nil, nil
	}

	if err := f.scanner.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := f.scanner.Run(context.Background()); !errors.Is(err, ErrScanAlreadyRan) {
		t.Fatalf("expected ErrScanAlreadyRan, got %v", err)
	}
	f.emitter.Close()

	if saved := f.savedNotifications(); len(saved) != 1 {
		t.Errorf("expected exactly 1 row after duplicate run, got %d", len(saved))
	}
}

func TestScanner_PartialFailureIsolation(t *testing.T) {
	today := date(2025, 5, 10)
	bad := &Gifticon{ID: 1, Name: "Bad", Kind: KindProduct, ExpiryDate: today.AddDate(0, 0, 1), OwnerUserID: 1}
	good := &Gifticon{ID: 2, Name: "Good", Kind: KindProduct, ExpiryDate: today.AddDate(0, 0, 1), OwnerUserID: 2}

	f := newScanFixture(t, nil)
	f.scanner.now = func() time.Time { return today }
	f.store.ForEachGifticonExpiringOnFunc = func(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error {
		if err := fn(bad); err != nil {
			return err
		}
		return fn(good)
	}
	f.store.FindSettingForUserFunc = func(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
		if userID == 1 {
			return nil, errors.New("settings table hiccup")
		}
		return &NotificationSetting{UserID: 2, TypeCode: TypeExpiryDate, IsEnabled: true, ExpirationCycle: CycleOneDay}, nil
	}
	f.store.FindDeviceTokensFunc = func(ctx context.Context, userID int) ([]DeviceToken, error) {
		return []DeviceToken{{UserID: userID, Value: "tok"}}, nil
	}

	if err := f.run(t); err != nil {
		t.Fatalf("scan must survive a single bad entry: %v", err)
	}

	saved := f.savedNotifications()
	if len(saved) != 1 || saved[0].UserID != 2 {
		t.Fatalf("expected the good entry to be processed, got %+v", saved)
	}
}

func TestScanner_OverlappingRunRejected(t *testing.T) {
	f := newScanFixture(t, nil)
	f.scanner.running.Store(true)

	if err := f.scanner.Run(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
}

func TestScanner_QueryFailureAborts(t *testing.T) {
	f := newScanFixture(t, nil)
	f.store.ForEachGifticonExpiringOnFunc = func(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error {
		return errors.New("connection refused")
	}

	if err := f.scanner.Run(context.Background()); err == nil {
		t.Fatal("expected the scan to report the query failure")
	}
}
