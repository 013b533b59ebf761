package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

// Repo is the repository implementation for system settings.
type Repo struct {
	db sqlx.ExtContext
}

// NewRepo constructs a new Repo on a pool or transaction.
func NewRepo(db sqlx.ExtContext) *Repo {
	return &Repo{db: db}
}

// EnsureTable ensures the settings table and its index exist.
// Fields:
// - name varchar(64) PRIMARY KEY
// - value text
// - category varchar(32) (indexed)
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
  name VARCHAR(64) PRIMARY KEY,
  value TEXT NOT NULL DEFAULT '',
  category VARCHAR(32) NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  updated_by BIGINT,
  updated_at {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settings_category ON settings (category);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

// GetByKey returns a setting by name or sql.ErrNoRows.
func (r *Repo) GetByKey(ctx context.Context, key string) (*entity.Setting, error) {
	var s entity.Setting
	q := r.db.Rebind(`SELECT name, value, category, description, updated_by, updated_at FROM settings WHERE name=?`)
	if err := sqlx.GetContext(ctx, r.db, &s, q, key); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns settings, optionally filtered by category.
func (r *Repo) List(ctx context.Context, category string) ([]*entity.Setting, error) {
	var out []*entity.Setting
	if category == "" {
		err := sqlx.SelectContext(ctx, r.db, &out, `SELECT name, value, category, description, updated_by, updated_at FROM settings ORDER BY name`)
		return out, err
	}
	q := r.db.Rebind(`SELECT name, value, category, description, updated_by, updated_at FROM settings WHERE category=? ORDER BY name`)
	err := sqlx.SelectContext(ctx, r.db, &out, q, category)
	return out, err
}

// Upsert inserts or replaces a setting by key.
func (r *Repo) Upsert(ctx context.Context, s *entity.Setting) error {
	q := `INSERT INTO settings (name, value, category, description, updated_by, updated_at)
		VALUES (:name, :value, :category, :description, :updated_by, :updated_at)
		ON CONFLICT (name) DO UPDATE SET value=excluded.value, category=excluded.category,
			description=excluded.description, updated_by=excluded.updated_by, updated_at=excluded.updated_at`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, s)
	return err
}
