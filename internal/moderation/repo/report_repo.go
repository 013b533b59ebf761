package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

type ReportRepo struct {
	db sqlx.ExtContext
}

func NewReportRepo(db sqlx.ExtContext) *ReportRepo { return &ReportRepo{db: db} }

// EnsureTable creates the reports table. The unique index on
// (post_id, reporter_id) backs the one-report-per-user-per-post rule.
func (r *ReportRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS reports (
  id BIGINT PRIMARY KEY,
  post_id BIGINT NOT NULL REFERENCES posts(id),
  reporter_id BIGINT NOT NULL REFERENCES users(id),
  reason VARCHAR(32) NOT NULL,
  comment TEXT NOT NULL DEFAULT '',
  state VARCHAR(16) NOT NULL DEFAULT 'pending',
  reviewed_by BIGINT,
  reviewed_at {{timestamp}},
  created_at {{timestamp}} NOT NULL,
  updated_at {{timestamp}} NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_post_reporter ON reports (post_id, reporter_id);
CREATE INDEX IF NOT EXISTS idx_reports_state ON reports (state);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

const reportColumns = `id, post_id, reporter_id, reason, comment, state, reviewed_by, reviewed_at, created_at, updated_at`

func (r *ReportRepo) Create(ctx context.Context, rep *entity.Report) error {
	q := `INSERT INTO reports (id, post_id, reporter_id, reason, comment, state, created_at, updated_at)
		VALUES (:id, :post_id, :reporter_id, :reason, :comment, :state, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, rep)
	return err
}

// Exists reports whether reporterID already reported postID.
func (r *ReportRepo) Exists(ctx context.Context, postID, reporterID int64) (bool, error) {
	var n int
	q := r.db.Rebind(`SELECT COUNT(*) FROM reports WHERE post_id=? AND reporter_id=?`)
	if err := sqlx.GetContext(ctx, r.db, &n, q, postID, reporterID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListForPost returns the post's reports oldest first.
func (r *ReportRepo) ListForPost(ctx context.Context, postID int64) ([]*entity.Report, error) {
	var out []*entity.Report
	q := r.db.Rebind(`SELECT ` + reportColumns + ` FROM reports WHERE post_id=? ORDER BY created_at, id`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, postID); err != nil {
		return nil, err
	}
	return out, nil
}

// CountForPost counts all report rows referencing postID.
func (r *ReportRepo) CountForPost(ctx context.Context, postID int64) (int, error) {
	var n int
	q := r.db.Rebind(`SELECT COUNT(*) FROM reports WHERE post_id=?`)
	if err := sqlx.GetContext(ctx, r.db, &n, q, postID); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkAllForPost moves every report on postID that is not already in state
// to state, stamping the reviewer. Returns the number of rows changed.
func (r *ReportRepo) MarkAllForPost(ctx context.Context, postID int64, state string, adminID int64, at time.Time) (int64, error) {
	q := r.db.Rebind(`UPDATE reports SET state=?, reviewed_by=?, reviewed_at=?, updated_at=? WHERE post_id=? AND state<>?`)
	res, err := r.db.ExecContext(ctx, q, state, adminID, at, at, postID, state)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count counts reports, optionally restricted to a state.
func (r *ReportRepo) Count(ctx context.Context, state string) (int64, error) {
	var n int64
	if state == "" {
		err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM reports`)
		return n, err
	}
	q := r.db.Rebind(`SELECT COUNT(*) FROM reports WHERE state=?`)
	err := sqlx.GetContext(ctx, r.db, &n, q, state)
	return n, err
}
