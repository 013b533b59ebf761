package entity

import "time"

const (
	StatePending   = "pending"
	StateActive    = "active"
	StateExpired   = "expired"
	StateCancelled = "cancelled"
	StateRejected  = "rejected"
)

// StateNone is the effective state of a user with no entitlement.
const StateNone = "none"

// ActorSystem is recorded in cancelled_by for automatic cancellations.
const ActorSystem = "system"

// SupersededReason is the cancellation reason of stale pending requests.
const SupersededReason = "superseded by a newer reviewed subscription"

// UserSubscription is one entry of a user's subscription history. Rows are
// never deleted, only moved through their states.
type UserSubscription struct {
	ID                 int64      `db:"id" json:"id"`
	UserID             int64      `db:"user_id" json:"user_id"`
	PlanID             int64      `db:"plan_id" json:"plan_id"`
	State              string     `db:"state" json:"state"`
	StartsAt           *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt             *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	PaymentReference   *string    `db:"payment_reference" json:"payment_reference,omitempty"`
	PaymentNotifiedAt  *time.Time `db:"payment_notified_at" json:"payment_notified_at,omitempty"`
	ReviewedBy         *int64     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason    *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *string    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Reviewed reports whether the row carries an admin decision.
func (s *UserSubscription) Reviewed() bool {
	if s.ReviewedAt == nil {
		return false
	}
	switch s.State {
	case StateActive, StateExpired, StateRejected:
		return true
	}
	return false
}

// ExpiredAt reports whether the validity window has closed at now.
func (s *UserSubscription) ExpiredAt(now time.Time) bool {
	return s.EndsAt != nil && !s.EndsAt.After(now)
}
