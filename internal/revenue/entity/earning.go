package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeAdmin   = "admin"
	TypeCreator = "creator"
)

// Earning is an append-only ledger row. Amounts are stored at full precision.
type Earning struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	PostID    *int64          `db:"post_id" json:"post_id,omitempty"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Type      string          `db:"type" json:"type"`
	Concept   string          `db:"concept" json:"concept"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Totals holds ledger sums. Rows is the number of rows summed.
type Totals struct {
	Admin   decimal.Decimal `json:"admin"`
	Creator decimal.Decimal `json:"creator"`
	Rows    int64           `json:"rows"`
}

func (t Totals) Total() decimal.Decimal { return t.Admin.Add(t.Creator) }
