package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

// UserRepo provides data access for users table using sqlx. It works on the
// pool or on a transaction, whichever it was built with.
type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT UNIQUE,
  password_hash TEXT,
  password_algo TEXT,
  role TEXT NOT NULL DEFAULT 'user',
  active BOOLEAN NOT NULL DEFAULT true,
  suspended BOOLEAN NOT NULL DEFAULT false,
  suspension_reason TEXT,
  suspended_at {{timestamp}},
  suspended_by BIGINT,
  created_at {{timestamp}} NOT NULL,
  updated_at {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

const userColumns = `id, username, email, password_hash, password_algo, role, active,
	suspended, suspension_reason, suspended_at, suspended_by, created_at, updated_at`

// Create inserts a new user row. The caller assigns the id.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	q := `INSERT INTO users (id, username, email, password_hash, password_algo, role, active, suspended, created_at, updated_at)
		  VALUES (:id, :username, :email, :password_hash, :password_algo, :role, :active, :suspended, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, u)
	return err
}

// GetByID returns a user or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var row entity.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id=?`)
	if err := sqlx.GetContext(ctx, r.db, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByUsername fetches by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	var row entity.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username=?`)
	if err := sqlx.GetContext(ctx, r.db, &row, q, username); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByEmail fetches by (lower-cased) email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	var row entity.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email=?`)
	if err := sqlx.GetContext(ctx, r.db, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetMinimalAuthView returns only the fields needed for token claim hydration.
func (r *UserRepo) GetMinimalAuthView(ctx context.Context, id int64) (*entity.MinimalAuthView, error) {
	var v entity.MinimalAuthView
	q := r.db.Rebind(`SELECT id, username, role, suspended FROM users WHERE id=?`)
	if err := sqlx.GetContext(ctx, r.db, &v, q, id); err != nil {
		return nil, err
	}
	return &v, nil
}

// Suspend flags the account as suspended. It returns false when the user
// does not exist.
func (r *UserRepo) Suspend(ctx context.Context, id int64, reason string, by int64, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE users SET suspended=?, suspension_reason=?, suspended_at=?, suspended_by=?, updated_at=? WHERE id=?`)
	res, err := r.db.ExecContext(ctx, q, true, reason, at, by, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
