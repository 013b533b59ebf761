package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

type NotificationRepo struct {
	db sqlx.ExtContext
}

func NewNotificationRepo(db sqlx.ExtContext) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// EnsureTable creates the notifications table if it does not already exist.
func (r *NotificationRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS notifications (
  id VARCHAR(32) PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id),
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  kind VARCHAR(32) NOT NULL,
  post_id BIGINT,
  is_read BOOLEAN NOT NULL DEFAULT false,
  created_at {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

func (r *NotificationRepo) Insert(ctx context.Context, n *entity.Notification) error {
	q := `INSERT INTO notifications (id, user_id, title, message, kind, post_id, is_read, created_at)
		VALUES (:id, :user_id, :title, :message, :kind, :post_id, :is_read, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, n)
	return err
}

// ListForUser returns the user's notifications newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*entity.Notification
	q := r.db.Rebind(`SELECT id, user_id, title, message, kind, post_id, is_read, created_at
		FROM notifications WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// CountForUser counts notifications of a kind addressed to the user.
func (r *NotificationRepo) CountForUser(ctx context.Context, userID int64, kind string) (int, error) {
	var n int
	q := r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE user_id=? AND kind=?`)
	if err := sqlx.GetContext(ctx, r.db, &n, q, userID, kind); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkRead marks one of the user's notifications as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID int64, id string) (bool, error) {
	q := r.db.Rebind(`UPDATE notifications SET is_read=? WHERE id=? AND user_id=?`)
	res, err := r.db.ExecContext(ctx, q, true, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
