package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &unitOfWork{tx: tx}, nil
}

const gifticonColumns = `id, name, kind, expiry_date, owner_user_id, COALESCE(group_id, 0), remaining_amount, is_used, is_deleted`

func scanGifticon(row interface{ Scan(...any) error }) (*Gifticon, error) {
	var g Gifticon
	err := row.Scan(&g.ID, &g.Name, &g.Kind, &g.ExpiryDate, &g.OwnerUserID,
		&g.GroupID, &g.RemainingAmount, &g.IsUsed, &g.IsDeleted)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ForEachGifticonExpiringOn walks every live gifticon expiring on one of the
// candidate dates. Amount-based gifticons with nothing left are excluded.
func (r *Repository) ForEachGifticonExpiringOn(ctx context.Context, dates []time.Time, fn func(*Gifticon) error) error {
	query := `
		SELECT ` + gifticonColumns + `
		FROM gifticons
		WHERE expiry_date = ANY($1)
		AND is_used = false
		AND is_deleted = false
		AND (kind <> 'AMOUNT' OR remaining_amount > 0)
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(dates))
	if err != nil {
		return fmt.Errorf("failed to query expiring gifticons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGifticon(rows)
		if err != nil {
			return fmt.Errorf("failed to scan gifticon: %w", err)
		}
		if err := fn(g); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *Repository) FindGifticon(ctx context.Context, id int) (*Gifticon, error) {
	query := `SELECT ` + gifticonColumns + ` FROM gifticons WHERE id = $1`
	g, err := scanGifticon(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gifticon %d: %w", id, err)
	}
	return g, nil
}

func (r *Repository) FindParticipantUserIDs(ctx context.Context, groupID int) ([]int, error) {
	query := `SELECT user_id FROM share_box_participants WHERE group_id = $1`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants of group %d: %w", groupID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const settingColumns = `id, user_id, notification_type_code, is_enabled, COALESCE(expiration_cycle, 0)`

func (r *Repository) FindSettingsForUsers(ctx context.Context, userIDs []int, code TypeCode) ([]NotificationSetting, error) {
	query := `
		SELECT ` + settingColumns + `
		FROM notification_settings
		WHERE user_id = ANY($1) AND notification_type_code = $2
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs), code)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var settings []NotificationSetting
	for rows.Next() {
		var s NotificationSetting
		if err := rows.Scan(&s.ID, &s.UserID, &s.TypeCode, &s.IsEnabled, &s.ExpirationCycle); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

func (r *Repository) FindSettingForUser(ctx context.Context, userID int, code TypeCode) (*NotificationSetting, error) {
	query := `
		SELECT ` + settingColumns + `
		FROM notification_settings
		WHERE user_id = $1 AND notification_type_code = $2
	`
	var s NotificationSetting
	err := r.db.QueryRowContext(ctx, query, userID, code).
		Scan(&s.ID, &s.UserID, &s.TypeCode, &s.IsEnabled, &s.ExpirationCycle)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load setting for user %d: %w", userID, err)
	}
	return &s, nil
}

func (r *Repository) FindDeviceTokens(ctx context.Context, userID int) ([]DeviceToken, error) {
	query := `SELECT user_id, value FROM device_tokens WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []DeviceToken
	for rows.Next() {
		var t DeviceToken
		if err := rows.Scan(&t.UserID, &t.Value); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *Repository) FindProximityTokens(ctx context.Context, values []string) ([]ProximityToken, error) {
	query := `SELECT value, user_id FROM proximity_tokens WHERE value = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("failed to query proximity tokens: %w", err)
	}
	defer rows.Close()

	var tokens []ProximityToken
	for rows.Next() {
		var t ProximityToken
		if err := rows.Scan(&t.Value, &t.UserID); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// UpsertSetting creates or replaces the user's setting for one type. The
// unique (user_id, notification_type_code) index keeps at most one row per
// pair regardless of write races.
func (r *Repository) UpsertSetting(ctx context.Context, s *NotificationSetting) error {
	var cycle any
	if s.ExpirationCycle != 0 {
		cycle = int(s.ExpirationCycle)
	}
	query := `
		INSERT INTO notification_settings (user_id, notification_type_code, is_enabled, expiration_cycle)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, notification_type_code)
		DO UPDATE SET is_enabled = EXCLUDED.is_enabled, expiration_cycle = EXCLUDED.expiration_cycle
	`
	if _, err := r.db.ExecContext(ctx, query, s.UserID, s.TypeCode, s.IsEnabled, cycle); err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

// unitOfWork wraps a sql transaction and a list of hooks that fire only
// after a successful commit.
type unitOfWork struct {
	tx          *sql.Tx
	afterCommit []func()
}

func (u *unitOfWork) SaveNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO notifications (id, user_id, title, content, notification_type_code, reference_entity_type, reference_entity_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := u.tx.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Content, n.TypeCode,
		n.ReferenceEntityType, n.ReferenceEntityID, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (u *unitOfWork) TransferGifticonOwner(ctx context.Context, gifticonID, toUserID int) error {
	// Receiving a gifticon resets created_at: for the recipient, arrival is
	// the creation moment.
	query := `UPDATE gifticons SET owner_user_id = $1, created_at = now() WHERE id = $2`
	res, err := u.tx.ExecContext(ctx, query, toUserID, gifticonID)
	if err != nil {
		return fmt.Errorf("failed to transfer gifticon %d: %w", gifticonID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("gifticon %d not found", gifticonID)
	}
	return nil
}

func (u *unitOfWork) SaveOwnerHistory(ctx context.Context, h *OwnerHistory) error {
	query := `
		INSERT INTO gifticon_owner_histories (gifticon_id, from_user_id, to_user_id, transfer_type, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	if _, err := u.tx.ExecContext(ctx, query, h.GifticonID, h.FromUserID, h.ToUserID, h.TransferType); err != nil {
		return fmt.Errorf("failed to insert owner history: %w", err)
	}
	return nil
}

func (u *unitOfWork) AfterCommit(fn func()) {
	u.afterCommit = append(u.afterCommit, fn)
}

func (u *unitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return err
	}
	for _, fn := range u.afterCommit {
		fn()
	}
	u.afterCommit = nil
	return nil
}

func (u *unitOfWork) Rollback() error {
	u.afterCommit = nil
	return u.tx.Rollback()
}
