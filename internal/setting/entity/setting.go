package entity

import "time"

// Well-known setting keys.
const (
	KeyReportThreshold = "report_threshold"
)

// DefaultReportThreshold applies when report_threshold is unset or unparsable.
const DefaultReportThreshold = 10

// Setting is a flat key/value configuration record.
type Setting struct {
	Key         string    `db:"name" json:"key"`
	Value       string    `db:"value" json:"value"`
	Category    string    `db:"category" json:"category,omitempty"`
	Description string    `db:"description" json:"description,omitempty"`
	UpdatedBy   *int64    `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// NewSetting creates a new Setting.
func NewSetting(key, value, category, description string) *Setting {
	return &Setting{Key: key, Value: value, Category: category, Description: description}
}
