package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
)

type PostRepo struct {
	db sqlx.ExtContext
}

func NewPostRepo(db sqlx.ExtContext) *PostRepo { return &PostRepo{db: db} }

// EnsureTable creates the posts table if it does not already exist.
func (r *PostRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS posts (
  id BIGINT PRIMARY KEY,
  author_id BIGINT NOT NULL REFERENCES users(id),
  content_type TEXT NOT NULL DEFAULT 'article',
  title TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT 'published',
  total_reports INT NOT NULL DEFAULT 0,
  flagged_at {{timestamp}},
  verified_fake BOOLEAN NOT NULL DEFAULT false,
  verified_fake_at {{timestamp}},
  reviewed_by BIGINT,
  reviewed_at {{timestamp}},
  rejection_reason TEXT,
  views BIGINT NOT NULL DEFAULT 0,
  clicks BIGINT NOT NULL DEFAULT 0,
  other_interactions BIGINT NOT NULL DEFAULT 0,
  created_at {{timestamp}} NOT NULL,
  updated_at {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
CREATE INDEX IF NOT EXISTS idx_posts_state ON posts(state);
`
	_, err := r.db.ExecContext(ctx, database.ExpandDDL(r.db.DriverName(), ddl))
	return err
}

const postColumns = `id, author_id, content_type, title, body, state, total_reports, flagged_at,
	verified_fake, verified_fake_at, reviewed_by, reviewed_at, rejection_reason,
	views, clicks, other_interactions, created_at, updated_at`

func (r *PostRepo) Create(ctx context.Context, p *entity.Post) error {
	q := `INSERT INTO posts (id, author_id, content_type, title, body, state, total_reports, verified_fake, views, clicks, other_interactions, created_at, updated_at)
		  VALUES (:id, :author_id, :content_type, :title, :body, :state, :total_reports, :verified_fake, :views, :clicks, :other_interactions, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, p)
	return err
}

// GetByID returns a post or sql.ErrNoRows.
func (r *PostRepo) GetByID(ctx context.Context, id int64) (*entity.Post, error) {
	var p entity.Post
	q := r.db.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE id=?`)
	if err := sqlx.GetContext(ctx, r.db, &p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByState returns posts in a state, most recently updated first.
func (r *PostRepo) ListByState(ctx context.Context, state string, limit, offset int) ([]*entity.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*entity.Post
	q := r.db.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE state=? ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`)
	if err := sqlx.SelectContext(ctx, r.db, &out, q, state, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByState counts posts currently in state.
func (r *PostRepo) CountByState(ctx context.Context, state string) (int64, error) {
	var n int64
	q := r.db.Rebind(`SELECT COUNT(*) FROM posts WHERE state=?`)
	if err := sqlx.GetContext(ctx, r.db, &n, q, state); err != nil {
		return 0, err
	}
	return n, nil
}

// IncrementReports increments the report counter atomically and returns the new value.
func (r *PostRepo) IncrementReports(ctx context.Context, id int64, at time.Time) (int, error) {
	q := r.db.Rebind(`UPDATE posts SET total_reports = total_reports + 1, updated_at=? WHERE id=? RETURNING total_reports`)
	var v int
	if err := sqlx.GetContext(ctx, r.db, &v, q, at, id); err != nil {
		return 0, err
	}
	return v, nil
}

// FlagIfThreshold moves a published post to flagged when its counter has
// reached threshold. Only the caller whose update matched gets true, which
// makes the threshold crossing single-fire under concurrent reports.
func (r *PostRepo) FlagIfThreshold(ctx context.Context, id int64, threshold int, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE posts SET state=?, flagged_at=?, updated_at=?
		WHERE id=? AND state=? AND total_reports >= ?`)
	return r.execOne(ctx, q, entity.StateFlagged, at, at, id, entity.StatePublished, threshold)
}

// MarkFake confirms a flagged post as fake.
func (r *PostRepo) MarkFake(ctx context.Context, id, adminID int64, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE posts SET state=?, verified_fake=?, verified_fake_at=?, reviewed_by=?, reviewed_at=?, updated_at=?
		WHERE id=? AND state=?`)
	return r.execOne(ctx, q, entity.StateFake, true, at, adminID, at, at, id, entity.StateFlagged)
}

// RestorePublished clears reports on a flagged or published post and puts it
// back to published.
func (r *PostRepo) RestorePublished(ctx context.Context, id, adminID int64, at time.Time) (bool, error) {
	q := r.db.Rebind(`UPDATE posts SET state=?, total_reports=0, flagged_at=NULL, reviewed_by=?, reviewed_at=?, updated_at=?
		WHERE id=? AND state IN (?, ?)`)
	return r.execOne(ctx, q, entity.StatePublished, adminID, at, at, id, entity.StateFlagged, entity.StatePublished)
}

var counterColumns = map[string]string{
	entity.KindView:  "views",
	entity.KindClick: "clicks",
	entity.KindOther: "other_interactions",
}

// IncrementInteraction bumps the counter matching kind and returns all three counters.
func (r *PostRepo) IncrementInteraction(ctx context.Context, id int64, kind string, at time.Time) (*entity.Counters, error) {
	col, ok := counterColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown interaction kind %q", kind)
	}
	q := r.db.Rebind(`UPDATE posts SET ` + col + ` = ` + col + ` + 1, updated_at=? WHERE id=?
		RETURNING views, clicks, other_interactions`)
	var c entity.Counters
	if err := sqlx.GetContext(ctx, r.db, &c, q, at, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// StatsForAuthor sums the author's post count and view/click counters.
func (r *PostRepo) StatsForAuthor(ctx context.Context, authorID int64) (*entity.AuthorStats, error) {
	var s entity.AuthorStats
	q := r.db.Rebind(`SELECT COUNT(*) AS posts, COALESCE(SUM(views),0) AS views, COALESCE(SUM(clicks),0) AS clicks
		FROM posts WHERE author_id=?`)
	if err := sqlx.GetContext(ctx, r.db, &s, q, authorID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostRepo) execOne(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
