package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"club_billing_portal/internal/domain/notification"

	"github.com/lib/pq"
)

// Custom errors specific to notification persistence
var ErrNotificationNotFound = fmt.Errorf("notification not found")

const notificationColumns = `id, recipient_id, notification_type, title, message, priority,
	channels, delivery, is_read, read_at, related_kind, related_id, action_url, action_text,
	created_at, updated_at`

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	channels := make([]string, len(n.Channels))
	for i, c := range n.Channels {
		channels[i] = string(c)
	}
	delivery, err := json.Marshal(n.Delivery)
	if err != nil {
		return fmt.Errorf("error encoding delivery outcomes: %w", err)
	}
	var relatedKind sql.NullString
	var relatedID sql.NullInt64
	if n.RelatedEntity != nil {
		relatedKind = sql.NullString{String: n.RelatedEntity.Kind, Valid: true}
		relatedID = sql.NullInt64{Int64: n.RelatedEntity.ID, Valid: true}
	}

	query := `INSERT INTO notifications (recipient_id, notification_type, title, message, priority,
			channels, delivery, related_kind, related_id, action_url, action_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query, n.RecipientID, n.Type, n.Title, n.Message, n.Priority,
		pq.Array(channels), delivery, relatedKind, relatedID, n.ActionURL, n.ActionText,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func scanNotification(row interface{ Scan(...any) error }) (*notification.Notification, error) {
	n := &notification.Notification{}
	var channels pq.StringArray
	var delivery []byte
	var relatedKind sql.NullString
	var relatedID sql.NullInt64
	err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &n.Priority,
		&channels, &delivery, &n.IsRead, &n.ReadAt, &relatedKind, &relatedID,
		&n.ActionURL, &n.ActionText, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.Channels = make([]notification.Channel, len(channels))
	for i, c := range channels {
		n.Channels[i] = notification.Channel(c)
	}
	n.Delivery = make(map[notification.Channel]notification.DeliveryOutcome)
	if len(delivery) > 0 {
		if err := json.Unmarshal(delivery, &n.Delivery); err != nil {
			return nil, fmt.Errorf("error decoding delivery outcomes: %w", err)
		}
	}
	if relatedKind.Valid {
		n.RelatedEntity = &notification.RelatedEntity{Kind: relatedKind.String, ID: relatedID.Int64}
	}
	return n, nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id int64) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) List(ctx context.Context, f notification.ListFilter) ([]*notification.Notification, int, error) {
	where := ` WHERE recipient_id = $1`
	args := []any{f.RecipientID}
	if f.OnlyUnread {
		where += " AND is_read = FALSE"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications` + where + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, (page-1)*f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("error scanning notification row: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, total, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`,
		recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}
	return count, nil
}

// UpdateDelivery merges one channel's outcome into the delivery document.
func (r *PostgresNotificationRepository) UpdateDelivery(ctx context.Context, id int64, ch notification.Channel, out notification.DeliveryOutcome) error {
	encoded, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("error encoding delivery outcome: %w", err)
	}
	query := `UPDATE notifications
		SET delivery = jsonb_set(delivery, ARRAY[$2::text], $3::jsonb), updated_at = NOW()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(ch), encoded)
	if err != nil {
		return fmt.Errorf("error updating delivery outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, recipientID int64, at time.Time) error {
	query := `UPDATE notifications
		SET is_read = TRUE, read_at = $3, updated_at = NOW()
		WHERE id = $1 AND recipient_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, recipientID, at)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID int64, at time.Time) (int, error) {
	query := `UPDATE notifications
		SET is_read = TRUE, read_at = $2, updated_at = NOW()
		WHERE recipient_id = $1 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, recipientID, at)
	if err != nil {
		return 0, fmt.Errorf("error marking all notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, id, recipientID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("error deleting notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) DeleteRead(ctx context.Context, recipientID int64) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE recipient_id = $1 AND is_read = TRUE`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("error deleting read notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PostgresNotificationRepository) DeleteOldRead(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
