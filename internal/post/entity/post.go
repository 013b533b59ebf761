package entity

import "time"

// Moderation-relevant post states. Pending/under-review states live upstream
// in the publishing pipeline; the integrity engine starts at published.
const (
	StatePublished = "published"
	StateFlagged   = "flagged"
	StateFake      = "fake"
	StateRejected  = "rejected"
)

// Interaction kinds counted by the revenue engine.
const (
	KindView  = "view"
	KindClick = "click"
	KindOther = "other"
)

type Post struct {
	ID                int64      `db:"id" json:"id"`
	AuthorID          int64      `db:"author_id" json:"author_id"`
	ContentType       string     `db:"content_type" json:"content_type"`
	Title             string     `db:"title" json:"title"`
	Body              string     `db:"body" json:"body"`
	State             string     `db:"state" json:"state"`
	TotalReports      int        `db:"total_reports" json:"total_reports"`
	FlaggedAt         *time.Time `db:"flagged_at" json:"flagged_at,omitempty"`
	VerifiedFake      bool       `db:"verified_fake" json:"verified_fake"`
	VerifiedFakeAt    *time.Time `db:"verified_fake_at" json:"verified_fake_at,omitempty"`
	ReviewedBy        *int64     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason   *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Views             int64      `db:"views" json:"views"`
	Clicks            int64      `db:"clicks" json:"clicks"`
	OtherInteractions int64      `db:"other_interactions" json:"other_interactions"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Counters is the interaction counter triple returned after an increment.
type Counters struct {
	Views  int64 `db:"views"`
	Clicks int64 `db:"clicks"`
	Other  int64 `db:"other_interactions"`
}

func (c Counters) Total() int64 { return c.Views + c.Clicks + c.Other }

// AuthorStats aggregates an author's posts and their counters.
type AuthorStats struct {
	Posts  int64 `db:"posts" json:"posts"`
	Views  int64 `db:"views" json:"views"`
	Clicks int64 `db:"clicks" json:"clicks"`
}
