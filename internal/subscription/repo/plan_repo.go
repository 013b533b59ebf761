package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

type PlanRepo struct {
	db sqlx.ExtContext
}

func NewPlanRepo(db sqlx.ExtContext) *PlanRepo { return &PlanRepo{db: db} }

func (r *PlanRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS subscription_plans (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  price {{money}} NOT NULL,
  period_name VARCHAR(16) NOT NULL,
  period_unit VARCHAR(8) NOT NULL,
  period_count INT NOT NULL,
  benefits TEXT NOT NULL DEFAULT '[]',
  active BOOLEAN NOT NULL DEFAULT true,
  created_at {{timestamp}} NOT NULL,
  updated_at {{timestamp}} NOT NULL
);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

const planColumns = `id, name, price, period_name, period_unit, period_count, benefits, active, created_at, updated_at`

func (r *PlanRepo) Create(ctx context.Context, p *entity.Plan) error {
	q := `INSERT INTO subscription_plans (` + planColumns + `)
		VALUES (:id, :name, :price, :period_name, :period_unit, :period_count, :benefits, :active, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, p)
	return err
}

// GetByID returns a plan or sql.ErrNoRows.
func (r *PlanRepo) GetByID(ctx context.Context, id int64) (*entity.Plan, error) {
	var p entity.Plan
	q := r.db.Rebind(`SELECT ` + planColumns + ` FROM subscription_plans WHERE id=?`)
	if err := sqlx.GetContext(ctx, r.db, &p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns plans ordered by name, optionally only active ones.
func (r *PlanRepo) List(ctx context.Context, activeOnly bool) ([]*entity.Plan, error) {
	var out []*entity.Plan
	if !activeOnly {
		err := sqlx.SelectContext(ctx, r.db, &out, `SELECT `+planColumns+` FROM subscription_plans ORDER BY name`)
		return out, err
	}
	q := r.db.Rebind(`SELECT ` + planColumns + ` FROM subscription_plans WHERE active=? ORDER BY name`)
	err := sqlx.SelectContext(ctx, r.db, &out, q, true)
	return out, err
}

// SetActive toggles whether new requests may reference the plan.
func (r *PlanRepo) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	q := r.db.Rebind(`UPDATE subscription_plans SET active=? WHERE id=?`)
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
