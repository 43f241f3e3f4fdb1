package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hall-reservation/internal/model"
)

// NotificationRepo persists notification rows.  Rows are written only as
// side effects of reservation transitions and feedback submissions and
// are never mutated afterwards except for the read flag.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo returns a NotificationRepo bound to the given database.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

// CreateTx inserts one notification row inside the caller's transaction,
// keeping the row atomic with the status change that produced it.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, message string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message) VALUES (?, ?)`, userID, message)
	return err
}

// ListByUser returns all notifications for the user, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	const q = `SELECT id, user_id, message, is_read, created_at
	           FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a single notification as read when it belongs to the
// user.  Returns sql.ErrNoRows when the notification is missing or owned
// by someone else.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, userID uint64) (*model.Notification, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Distinguish "already read" from "not yours": re-check existence.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = ? AND user_id = ?)`,
			notificationID, userID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, sql.ErrNoRows
		}
	}
	var out model.Notification
	err = r.db.QueryRowContext(ctx,
		`SELECT id, user_id, message, is_read, created_at FROM notifications WHERE id = ?`,
		notificationID).Scan(&out.ID, &out.UserID, &out.Message, &out.IsRead, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkAllRead flags every unread notification of the user as read and
// returns how many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountUnread returns the number of unread notifications for the user.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	return n, err
}
