package notification

import (
	"context"
	"time"
)

type MockStore struct {
	BeginFunc                     func(ctx context.Context) (Tx, error)
	ForEachGifticonExpiringOnFunc func(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error
	FindGifticonFunc              func(ctx context.Context, id int) (*Gifticon, error)
	FindParticipantUserIDsFunc    func(ctx context.Context, groupID int) ([]int, error)
	FindSettingsForUsersFunc      func(ctx context.Context, userIDs []int, code TypeCode) ([]NotificationSetting, error)
	FindSettingForUserFunc        func(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error)
	FindDeviceTokensFunc          func(ctx context.Context, userID int) ([]DeviceToken, error)
	FindProximityTokensFunc       func(ctx context.Context, values []string) ([]ProximityToken, error)
	UpsertSettingFunc             func(ctx context.Context, s *NotificationSetting) error
}

func (m *MockStore) Begin(ctx context.Context) (Tx, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTx{}, nil
}

func (m *MockStore) ForEachGifticonExpiringOn(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error {
	return m.ForEachGifticonExpiringOnFunc(ctx, dates, fn)
}

func (m *MockStore) FindGifticon(ctx context.Context, id int) (*Gifticon, error) {
	return m.FindGifticonFunc(ctx, id)
}

func (m *MockStore) FindParticipantUserIDs(ctx context.Context, groupID int) ([]int, error) {
	return m.FindParticipantUserIDsFunc(ctx, groupID)
}

func (m *MockStore) FindSettingsForUsers(ctx context.Context, userIDs []int, code TypeCode) ([]NotificationSetting, error) {
	return m.FindSettingsForUsersFunc(ctx, userIDs, code)
}

func (m *MockStore) FindSettingForUser(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
	return m.FindSettingForUserFunc(ctx, userID, code)
}

func (m *MockStore) FindDeviceTokens(ctx context.Context, userID int) ([]DeviceToken, error) {
	return m.FindDeviceTokensFunc(ctx, userID)
}

func (m *MockStore) FindProximityTokens(ctx context.Context, values []string) ([]ProximityToken, error) {
	return m.FindProximityTokensFunc(ctx, values)
}

func (m *MockStore) UpsertSetting(ctx context.Context, s *NotificationSetting) error {
	return m.UpsertSettingFunc(ctx, s)
}

// MockTx implements the after-commit contract for real: hooks accumulate and
// fire only when Commit succeeds; Rollback discards them. Write funcs are
// optional and default to success.
type MockTx struct {
	SaveNotificationFunc     func(ctx context.Context, n *Notification) error
	TransferGifticonOwnerFunc func(ctx context.Context, gifticonID, toUserID int) error
	SaveOwnerHistoryFunc     func(ctx context.Context, h *OwnerHistory) error
	CommitFunc               func() error

	Saved        []Notification
	Transfers    [][2]int
	Histories    []OwnerHistory
	Committed    bool
	RolledBack   bool

	hooks []func()
}

func (m *MockTx) SaveNotification(ctx context.Context, n *Notification) error {
	if m.SaveNotificationFunc != nil {
		if err := m.SaveNotificationFunc(ctx, n); err != nil {
			return err
		}
	}
	m.Saved = append(m.Saved, *n)
	return nil
}

func (m *MockTx) TransferGifticonOwner(ctx context.Context, gifticonID, toUserID int) error {
	if m.TransferGifticonOwnerFunc != nil {
		if err := m.TransferGifticonOwnerFunc(ctx, gifticonID, toUserID); err != nil {
			return err
		}
	}
	m.Transfers = append(m.Transfers, [2]int{gifticonID, toUserID})
	return nil
}

func (m *MockTx) SaveOwnerHistory(ctx context.Context, h *OwnerHistory) error {
	if m.SaveOwnerHistoryFunc != nil {
		if err := m.SaveOwnerHistoryFunc(ctx, h); err != nil {
			return err
		}
	}
	m.Histories = append(m.Histories, *h)
	return nil
}

func (m *MockTx) AfterCommit(fn func()) {
	m.hooks = append(m.hooks, fn)
}

func (m *MockTx) Commit() error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(); err != nil {
			return err
		}
	}
	m.Committed = true
	for _, fn := range m.hooks {
		fn()
	}
	m.hooks = nil
	return nil
}

func (m *MockTx) Rollback() error {
	m.RolledBack = true
	m.hooks = nil
	return nil
}

type MockPublisher struct {
	PublishFunc func(ctx context.Context, ev Event) error
}

func (m *MockPublisher) Publish(ctx context.Context, ev Event) error {
	return m.PublishFunc(ctx, ev)
}

type MockDayGuard struct {
	TryMarkFunc func(ctx context.Context, day string) (bool, error)
}

func (m *MockDayGuard) TryMark(ctx context.Context, day string) (bool, error) {
	return m.TryMarkFunc(ctx, day)
}

// MockGateway satisfies push.Gateway.
type MockGateway struct {
	SendFunc func(ctx context.Context, token, title, body string, data map[string]string) (string, error)
}

func (m *MockGateway) Send(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	return m.SendFunc(ctx, token, title, body, data)
}
