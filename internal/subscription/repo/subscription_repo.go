package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

// SubscriptionRepo works on user_subscriptions. Every state change is a
// conditional update keyed on the current state so concurrent callers
// converge; the bool results report whether this caller's update applied.
type SubscriptionRepo struct {
	db sqlx.ExtContext
}

func NewSubscriptionRepo(db sqlx.ExtContext) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS user_subscriptions (
  id BIGINT PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id),
  plan_id BIGINT NOT NULL REFERENCES subscription_plans(id),
  state VARCHAR(16) NOT NULL DEFAULT 'pending',
  starts_at {{timestamp}},
  ends_at {{timestamp}},
  payment_reference TEXT,
  payment_notified_at {{timestamp}},
  reviewed_by BIGINT,
  reviewed_at {{timestamp}},
  rejection_reason TEXT,
  cancellation_reason TEXT,
  cancelled_at {{timestamp}},
  cancelled_by TEXT,
  created_at {{timestamp}} NOT NULL,
  updated_at {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_subscriptions_user ON user_subscriptions (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_user_subscriptions_state ON user_subscriptions (state, ends_at);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

const subscriptionColumns = `id, user_id, plan_id, state, starts_at, ends_at, payment_reference, payment_notified_at,
	reviewed_by, reviewed_at, rejection_reason, cancellation_reason, cancelled_at, cancelled_by, created_at, updated_at`

func (r *SubscriptionRepo) Create(ctx context.Context, s *entity.UserSubscription) error {
	q := `INSERT INTO user_subscriptions (` + subscriptionColumns + `)
		VALUES (:id, :user_id, :plan_id, :state, :starts_at, :ends_at, :payment_reference, :payment_notified_at,
			:reviewed_by, :reviewed_at, :rejection_reason, :cancellation_reason, :cancelled_at, :cancelled_by, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, s)
	return err
}

// GetByID returns a subscription or sql.ErrNoRows.
func (r *SubscriptionRepo) GetByID(ctx context.Context, id int64) (*entity.UserSubscription, error) {
	var s entity.UserSubscription
	q := r.db.Rebind(`SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE id=?`)
	if err := sqlx.GetContext(ctx, r.db, &s, q, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListForUser returns the user's whole history, newest first.
func (r *SubscriptionRepo) ListForUser(ctx context.Context, userID int64) ([]*entity.UserSubscription, error) {
	var out []*entity.UserSubscription
	q := r.db.Rebind(`SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id=? ORDER BY created_at DESC, id DESC`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByState returns subscriptions in state, oldest first.
func (r *SubscriptionRepo) ListByState(ctx context.Context, state string, limit, offset int) ([]*entity.UserSubscription, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*entity.UserSubscription
	q := r.db.Rebind(`SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE state=? ORDER BY created_at, id LIMIT ? OFFSET ?`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, state, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// NotifyPayment records the payment reference of a pending subscription.
func (r *SubscriptionRepo) NotifyPayment(ctx context.Context, id int64, reference string, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE user_subscriptions SET payment_reference=?, payment_notified_at=?, updated_at=?
		WHERE id=? AND state=?`)
	return r.execOne(ctx, q, reference, at, at, id, entity.StatePending)
}

// Approve activates a pending subscription for [startsAt, endsAt).
func (r *SubscriptionRepo) Approve(ctx context.Context, id, adminID int64, startsAt, endsAt, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE user_subscriptions SET state=?, starts_at=?, ends_at=?, reviewed_by=?, reviewed_at=?, updated_at=?
		WHERE id=? AND state=?`)
	return r.execOne(ctx, q, entity.StateActive, startsAt, endsAt, adminID, at, at, id, entity.StatePending)
}

// Reject closes a pending subscription with a reason.
func (r *SubscriptionRepo) Reject(ctx context.Context, id, adminID int64, reason *string, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE user_subscriptions SET state=?, rejection_reason=?, reviewed_by=?, reviewed_at=?, updated_at=?
		WHERE id=? AND state=?`)
	return r.execOne(ctx, q, entity.StateRejected, reason, adminID, at, at, id, entity.StatePending)
}

// Cancel cancels a pending or active subscription. ends_at is left as is.
func (r *SubscriptionRepo) Cancel(ctx context.Context, id int64, actor, reason string, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE user_subscriptions SET state=?, cancellation_reason=?, cancelled_at=?, cancelled_by=?, updated_at=?
		WHERE id=? AND state IN (?, ?)`)
	return r.execOne(ctx, q, entity.StateCancelled, reason, at, actor, at, id, entity.StatePending, entity.StateActive)
}

// CancelStalePending cancels the user's pending rows created strictly
// before cutoff and returns how many changed.
func (r *SubscriptionRepo) CancelStalePending(ctx context.Context, userID int64, cutoff time.Time, actor, reason string, at time.Time) (int64, error) {
	q := r.db.Rebind(`UPDATE user_subscriptions SET state=?, cancellation_reason=?, cancelled_at=?, cancelled_by=?, updated_at=?
		WHERE user_id=? AND state=? AND created_at < ?`)
	res, err := r.db.ExecContext(ctx, q, entity.StateCancelled, reason, at, actor, at, userID, entity.StatePending, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireDue expires every active subscription with ends_at <= now.
func (r *SubscriptionRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	q := r.db.Rebind(`UPDATE user_subscriptions SET state=?, updated_at=? WHERE state=? AND ends_at IS NOT NULL AND ends_at <= ?`)
	res, err := r.db.ExecContext(ctx, q, entity.StateExpired, now, entity.StateActive, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByState counts subscriptions per state.
func (r *SubscriptionRepo) CountByState(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT state, COUNT(*) FROM user_subscriptions GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

func (r *SubscriptionRepo) execOne(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
