package entity

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account row in the `users` table.
// Suspension fields are only written by the moderation engine.
type User struct {
	ID               int64      `db:"id" json:"id"`
	Username         string     `db:"username" json:"username"`
	Email            *string    `db:"email" json:"email,omitempty"`
	PasswordHash     *string    `db:"password_hash" json:"-"`
	PasswordAlgo     *string    `db:"password_algo" json:"-"`
	Role             string     `db:"role" json:"role"`
	Active           bool       `db:"active" json:"active"`
	Suspended        bool       `db:"suspended" json:"suspended"`
	SuspensionReason *string    `db:"suspension_reason" json:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time `db:"suspended_at" json:"suspended_at,omitempty"`
	SuspendedBy      *int64     `db:"suspended_by" json:"suspended_by,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// MinimalAuthView is the minimal projection required for token claim hydration.
type MinimalAuthView struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Role      string `db:"role" json:"role"`
	Suspended bool   `db:"suspended" json:"suspended"`
}
