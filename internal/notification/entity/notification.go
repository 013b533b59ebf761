package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

const (
	KindPostFlagged          = "post_flagged"
	KindPostConfirmedFake    = "post_confirmed_fake"
	KindAccountSuspended     = "account_suspended"
	KindReportsDiscarded     = "reports_discarded"
	KindSubscriptionApproved = "subscription_approved"
	KindSubscriptionRejected = "subscription_rejected"
)

type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Kind      string    `db:"kind" json:"kind"`
	PostID    *int64    `db:"post_id" json:"post_id,omitempty"`
	Read      bool      `db:"is_read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// New builds an unread notification with a fresh KSUID.
func New(userID int64, title, message, kind string, postID *int64, at time.Time) *Notification {
	return &Notification{
		ID:        utilities.NewKSUID(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		PostID:    postID,
		CreatedAt: at,
	}
}
