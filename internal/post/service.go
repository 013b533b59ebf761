package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	postrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// Service creates and reads posts. State transitions belong to the
// moderation engine and counters to the revenue engine.
type Service struct {
	store *store.Store
	clock clockwork.Clock
}

func NewService(st *store.Store, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: st, clock: clock}
}

// Create stores a post that has already cleared the publishing pipeline,
// so it starts out published.
func (s *Service) Create(ctx context.Context, authorID int64, contentType, title, body string) (*entity.Post, error) {
	if contentType == "" {
		contentType = "article"
	}
	now := utilities.Now(s.clock)
	p := &entity.Post{
		ID:          utilities.NextID(),
		AuthorID:    authorID,
		ContentType: contentType,
		Title:       title,
		Body:        body,
		State:       entity.StatePublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		author, err := userrepo.NewUserRepo(tx).GetByID(ctx, authorID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: author %d", apperr.ErrNotFound, authorID)
			}
			return err
		}
		if author.Suspended {
			return fmt.Errorf("%w: author %d is suspended", apperr.ErrForbidden, authorID)
		}
		return postrepo.NewPostRepo(tx).Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a post by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Post, error) {
	p, err := postrepo.NewPostRepo(s.store.DB()).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: post %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}
