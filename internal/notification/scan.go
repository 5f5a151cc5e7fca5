package notification

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giftree/giftree/pkg/observability"
)

var (
	// ErrScanInProgress means another run holds the in-process single-flight
	// guard.
	ErrScanInProgress = errors.New("expiry scan already in progress")
	// ErrScanAlreadyRan means the day marker is set: a scan already completed
	// (or started) for today, possibly in another process.
	ErrScanAlreadyRan = errors.New("expiry scan already ran today")
)

// DayGuard marks a calendar day as scanned. TryMark returns false when the
// day was already marked.
type DayGuard interface {
	TryMark(ctx context.Context, day string) (bool, error)
}

// RedisDayGuard is the shared day marker. SETNX with a short TTL: the key
// only needs to outlive the day it protects.
type RedisDayGuard struct {
	client *redis.Client
	prefix string
}

func NewRedisDayGuard(client *redis.Client) *RedisDayGuard {
	return &RedisDayGuard{client: client, prefix: "notify:scan:"}
}

func (g *RedisDayGuard) TryMark(ctx context.Context, day string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+day, "1", 48*time.Hour).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark scan day: %w", err)
	}
	return ok, nil
}

// Scanner is the daily expiry scan. One bounded query finds every gifticon
// whose expiry date falls on today+cycle for any configurable cycle, then
// fans out across owners or share-box participants. A failure on one entry
// never aborts the rest of the batch.
type Scanner struct {
	store   Store
	emitter *Emitter
	guard   DayGuard
	logger  *observability.Logger

	now     func() time.Time
	running atomic.Bool
}

func NewScanner(store Store, emitter *Emitter, guard DayGuard, logger *observability.Logger) *Scanner {
	return &Scanner{
		store:   store,
		emitter: emitter,
		guard:   guard,
		logger:  logger,
		now:     time.Now,
	}
}

// Run executes one scan pass for the current day. Duplicate triggers are
// rejected twice over: an in-process flag stops overlapping runs, and the
// shared day marker stops a second pass for the same day (which would
// recompute the same candidates and duplicate every Notification row).
func (s *Scanner) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrScanInProgress
	}
	defer s.running.Store(false)

	today := DateOnly(s.now())
	day := today.Format("2006-01-02")

	if s.guard != nil {
		ok, err := s.guard.TryMark(ctx, day)
		if err != nil {
			ScanRuns.WithLabelValues("failed").Inc()
			return err
		}
		if !ok {
			ScanRuns.WithLabelValues("skipped").Inc()
			s.logger.Info("expiry scan skipped, already ran", "day", day)
			return ErrScanAlreadyRan
		}
	}

	var processed, failed int
	err := s.store.ForEachGifticonExpiringOn(ctx, CandidateDates(today), func(g *Gifticon) error {
		if err := s.processGifticon(ctx, g, today); err != nil {
			failed++
			ScanEntryFailures.Inc()
			s.logger.Error("expiry scan entry failed", "gifticon_id", g.ID, "error", err)
			return nil // isolate: a malformed row must not block the rest
		}
		processed++
		return nil
	})
	if err != nil {
		ScanRuns.WithLabelValues("failed").Inc()
		return fmt.Errorf("expiry scan aborted: %w", err)
	}

	ScanRuns.WithLabelValues("completed").Inc()
	s.logger.Info("expiry scan completed", "day", day, "gifticons", processed, "failed", failed)
	return nil
}

func (s *Scanner) processGifticon(ctx context.Context, g *Gifticon, today time.Time) error {
	if g.Shared() {
		userIDs, err := s.store.FindParticipantUserIDs(ctx, g.GroupID)
		if err != nil {
			return err
		}
		settings, err := s.store.FindSettingsForUsers(ctx, userIDs, TypeExpiryDate)
		if err != nil {
			return err
		}
		for i := range settings {
			// Participants fail independently of each other too.
			if err := s.notifyRecipient(ctx, g, &settings[i], today); err != nil {
				ScanEntryFailures.Inc()
				s.logger.Error("expiry scan participant failed",
					"gifticon_id", g.ID, "user_id", settings[i].UserID, "error", err)
			}
		}
		return nil
	}

	setting, err := s.store.FindSettingForUser(ctx, g.OwnerUserID, TypeExpiryDate)
	if err != nil {
		return err
	}
	if setting == nil {
		return nil
	}
	return s.notifyRecipient(ctx, g, setting, today)
}

// notifyRecipient applies the eligibility rule for one (gifticon, user) pair.
// On a match the Notification row is always persisted; the push event is
// emitted per registered device token only when the setting is enabled, and
// only after the row's transaction commits.
func (s *Scanner) notifyRecipient(ctx context.Context, g *Gifticon, setting *NotificationSetting, today time.Time) error {
	if !ShouldNotify(setting, today, g.ExpiryDate) {
		return nil
	}

	title := TypeExpiryDate.DisplayName()
	content := expiryContent(g.Name, setting.ExpirationCycle.Days())

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}

	err = tx.SaveNotification(ctx, &Notification{
		UserID:              setting.UserID,
		Title:               title,
		Content:             content,
		TypeCode:            TypeExpiryDate,
		ReferenceEntityType: "gifticon",
		ReferenceEntityID:   g.ID,
	})
	if err != nil {
		tx.Rollback()
		return err
	}

	if setting.IsEnabled {
		tokens, err := s.store.FindDeviceTokens(ctx, setting.UserID)
		if err != nil {
			tx.Rollback()
			return err
		}
		for _, t := range tokens {
			ev := Event{
				FCMToken:            t.Value,
				Title:               title,
				Body:                content,
				UserID:              setting.UserID,
				TypeCode:            TypeExpiryDate,
				ReferenceEntityType: "gifticon",
				ReferenceEntityID:   g.ID,
			}
			tx.AfterCommit(func() { s.emitter.Emit(ev) })
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	NotificationsPersisted.WithLabelValues(string(TypeExpiryDate)).Inc()
	return nil
}

func expiryContent(name string, days int) string {
	if days == 1 {
		return fmt.Sprintf("%s expires in 1 day.", name)
	}
	return fmt.Sprintf("%s expires in %d days.", name, days)
}
