package entity

import (
	"strings"
	"time"
)

const (
	StatePending  = "pending"
	StateReviewed = "reviewed"
	StateResolved = "resolved"
)

// Report reasons accepted from reporters.
const (
	ReasonSpam             = "spam"
	ReasonFalseInformation = "false_information"
	ReasonHateSpeech       = "hate_speech"
	ReasonViolence         = "violence"
	ReasonHarassment       = "harassment"
	ReasonInappropriate    = "inappropriate"
	ReasonOther            = "other"
)

var validReasons = map[string]struct{}{
	ReasonSpam:             {},
	ReasonFalseInformation: {},
	ReasonHateSpeech:       {},
	ReasonViolence:         {},
	ReasonHarassment:       {},
	ReasonInappropriate:    {},
	ReasonOther:            {},
}

// NormalizeReason lower-cases and trims r and reports whether it is known.
func NormalizeReason(r string) (string, bool) {
	r = strings.ToLower(strings.TrimSpace(r))
	_, ok := validReasons[r]
	return r, ok
}

type Report struct {
	ID         int64      `db:"id" json:"id"`
	PostID     int64      `db:"post_id" json:"post_id"`
	ReporterID int64      `db:"reporter_id" json:"reporter_id"`
	Reason     string     `db:"reason" json:"reason"`
	Comment    string     `db:"comment" json:"comment,omitempty"`
	State      string     `db:"state" json:"state"`
	ReviewedBy *int64     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
