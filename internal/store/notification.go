package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/types"
)

// NotificationRepository handles persistence for per-user notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateMany inserts notifications in one transaction.
func (r *NotificationRepository) CreateMany(ctx context.Context, notifications []types.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		const query = `
			INSERT INTO notifications (id, user_id, kind, subject, message, resource_id, read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for _, n := range notifications {
			if n.ID == "" {
				n.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, query, n.ID, n.UserID, n.Kind, n.Subject, n.Message, n.ResourceID, n.Read, n.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int) ([]types.Notification, error) {
	const query = `
		SELECT id, user_id, kind, subject, message, resource_id, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]types.Notification, 0)
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Subject, &n.Message, &n.ResourceID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flags one of userID's notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	return execAffected(ctx, r.db, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
}
