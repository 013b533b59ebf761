package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

// EarningRepo appends to and reads the earnings ledger. There is no update
// or delete.
type EarningRepo struct {
	db sqlx.ExtContext
}

func NewEarningRepo(db sqlx.ExtContext) *EarningRepo { return &EarningRepo{db: db} }

func (r *EarningRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS earnings (
  id BIGINT PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id),
  post_id BIGINT REFERENCES posts(id),
  amount {{money}} NOT NULL,
  type VARCHAR(16) NOT NULL,
  concept TEXT NOT NULL DEFAULT '',
  created_at {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_earnings_user ON earnings (user_id, type);
CREATE INDEX IF NOT EXISTS idx_earnings_post ON earnings (post_id);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

func (r *EarningRepo) Insert(ctx context.Context, e *entity.Earning) error {
	q := `INSERT INTO earnings (id, user_id, post_id, amount, type, concept, created_at)
		VALUES (:id, :user_id, :post_id, :amount, :type, :concept, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, e)
	return err
}

// ListForUser returns the user's ledger rows newest first.
func (r *EarningRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]*entity.Earning, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*entity.Earning
	q := r.db.Rebind(`SELECT id, user_id, post_id, amount, type, concept, created_at
		FROM earnings WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// Totals sums the ledger by type. A non-nil userID restricts the sum to
// that beneficiary. Summing happens here rather than in SQL so sqlite, which
// stores amounts as text, gets the same exact result as Postgres NUMERIC.
func (r *EarningRepo) Totals(ctx context.Context, userID *int64) (*entity.Totals, error) {
	query := `SELECT type, amount FROM earnings`
	var args []any
	if userID != nil {
		query += ` WHERE user_id=?`
		args = append(args, *userID)
	}
	rows, err := r.db.QueryxContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &entity.Totals{Admin: decimal.Zero, Creator: decimal.Zero}
	for rows.Next() {
		var (
			typ    string
			amount decimal.Decimal
		)
		if err := rows.Scan(&typ, &amount); err != nil {
			return nil, err
		}
		switch typ {
		case entity.TypeAdmin:
			t.Admin = t.Admin.Add(amount)
		case entity.TypeCreator:
			t.Creator = t.Creator.Add(amount)
		default:
			return nil, fmt.Errorf("earning with unknown type %q", typ)
		}
		t.Rows++
	}
	return t, rows.Err()
}
