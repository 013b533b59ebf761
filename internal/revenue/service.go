// Package revenue turns post interactions into split earnings. Every
// interaction bumps one counter on the post and appends one admin row and
// one creator row to the ledger; nothing in the ledger is ever rewritten.
package revenue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	pentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	postrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// MaxSimulate caps a single Simulate call.
const MaxSimulate = 10000

// Config carries the split parameters. AdminUserID names the platform
// account credited with the admin share; zero means none is configured.
type Config struct {
	AdminUserID int64
	UnitAmount  decimal.Decimal
	AdminShare  decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		UnitAmount: decimal.RequireFromString("0.01"),
		AdminShare: decimal.RequireFromString("0.70"),
	}
}

type Service struct {
	store  *store.Store
	cfg    Config
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewService(st *store.Store, cfg Config, clock clockwork.Clock, logger *zap.SugaredLogger) (*Service, error) {
	if !cfg.UnitAmount.IsPositive() {
		return nil, fmt.Errorf("%w: unit amount must be positive", apperr.ErrInvalidArgument)
	}
	if cfg.AdminShare.IsNegative() || cfg.AdminShare.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: admin share must be within [0, 1]", apperr.ErrInvalidArgument)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: st, cfg: cfg, clock: clock, logger: logger}, nil
}

type InteractionResult struct {
	PostID            int64           `json:"post_id"`
	Kind              string          `json:"kind"`
	AmountTotal       decimal.Decimal `json:"amount_total"`
	AmountAdmin       decimal.Decimal `json:"amount_admin"`
	AmountCreator     decimal.Decimal `json:"amount_creator"`
	TotalInteractions int64           `json:"total_interactions"`
	AdminCredited     bool            `json:"admin_credited"`
}

// Split divides the unit amount. The creator gets the remainder so the two
// parts always add up to the unit exactly.
func (c Config) Split() (admin, creator decimal.Decimal) {
	admin = c.UnitAmount.Mul(c.AdminShare)
	return admin, c.UnitAmount.Sub(admin)
}

// RecordInteraction counts one interaction of kind on postID and appends the
// earnings it produces.
func (s *Service) RecordInteraction(ctx context.Context, postID int64, kind string) (*InteractionResult, error) {
	if kind != pentity.KindView && kind != pentity.KindClick && kind != pentity.KindOther {
		return nil, fmt.Errorf("%w: unknown interaction kind %q", apperr.ErrInvalidArgument, kind)
	}
	now := utilities.Now(s.clock)
	adminAmount, creatorAmount := s.cfg.Split()
	res := InteractionResult{
		PostID:        postID,
		Kind:          kind,
		AmountTotal:   s.cfg.UnitAmount,
		AmountAdmin:   adminAmount,
		AmountCreator: creatorAmount,
	}
	var skipErr error
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		posts := postrepo.NewPostRepo(tx)
		p, err := posts.GetByID(ctx, postID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: post %d", apperr.ErrNotFound, postID)
			}
			return err
		}
		counters, err := posts.IncrementInteraction(ctx, postID, kind, now)
		if err != nil {
			return err
		}
		res.TotalInteractions = counters.Total()

		ledger := repo.NewEarningRepo(tx)
		concept := fmt.Sprintf("%s on post %d", kind, postID)
		adminID, err := s.adminBeneficiary(ctx, tx)
		switch {
		case errors.Is(err, apperr.ErrConflict):
			skipErr = err
		case err != nil:
			return err
		default:
			if err := ledger.Insert(ctx, &entity.Earning{
				ID: utilities.NextID(), UserID: adminID, PostID: &p.ID, Amount: adminAmount,
				Type: entity.TypeAdmin, Concept: "platform share: " + concept, CreatedAt: now,
			}); err != nil {
				return err
			}
			res.AdminCredited = true
		}
		return ledger.Insert(ctx, &entity.Earning{
			ID: utilities.NextID(), UserID: p.AuthorID, PostID: &p.ID, Amount: creatorAmount,
			Type: entity.TypeCreator, Concept: "creator share: " + concept, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	interactionsRecorded.WithLabelValues(kind).Inc()
	earningsAppended.WithLabelValues(entity.TypeCreator).Inc()
	if res.AdminCredited {
		earningsAppended.WithLabelValues(entity.TypeAdmin).Inc()
	} else {
		adminShareSkipped.Inc()
		s.logger.Warnw("admin share skipped", "post_id", postID, "err", skipErr)
	}
	return &res, nil
}

// adminBeneficiary resolves the configured admin account. A missing or
// non-admin account yields ErrConflict.
func (s *Service) adminBeneficiary(ctx context.Context, q sqlx.ExtContext) (int64, error) {
	if s.cfg.AdminUserID == 0 {
		return 0, fmt.Errorf("%w: no platform admin account configured", apperr.ErrConflict)
	}
	u, err := userrepo.NewUserRepo(q).GetByID(ctx, s.cfg.AdminUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: platform admin %d does not exist", apperr.ErrConflict, s.cfg.AdminUserID)
		}
		return 0, err
	}
	if !u.IsAdmin() {
		return 0, fmt.Errorf("%w: platform admin %d does not hold the admin role", apperr.ErrConflict, s.cfg.AdminUserID)
	}
	return u.ID, nil
}

// Dashboard returns ledger totals across all beneficiaries.
func (s *Service) Dashboard(ctx context.Context) (*entity.Totals, error) {
	return repo.NewEarningRepo(s.store.DB()).Totals(ctx, nil)
}

type UserTotals struct {
	UserID          int64           `json:"user_id"`
	CreatorEarnings decimal.Decimal `json:"creator_earnings"`
	Posts           int64           `json:"posts"`
	Views           int64           `json:"views"`
	Clicks          int64           `json:"clicks"`
}

// UserTotals reports a creator's earnings alongside the counters of their posts.
func (s *Service) UserTotals(ctx context.Context, userID int64) (*UserTotals, error) {
	db := s.store.DB()
	if _, err := userrepo.NewUserRepo(db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
		}
		return nil, err
	}
	out := UserTotals{UserID: userID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := repo.NewEarningRepo(db).Totals(gctx, &userID)
		if err != nil {
			return err
		}
		out.CreatorEarnings = t.Creator
		return nil
	})
	g.Go(func() error {
		st, err := postrepo.NewPostRepo(db).StatsForAuthor(gctx, userID)
		if err != nil {
			return err
		}
		out.Posts, out.Views, out.Clicks = st.Posts, st.Views, st.Clicks
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Earnings lists a user's ledger rows.
func (s *Service) Earnings(ctx context.Context, userID int64, limit int) ([]*entity.Earning, error) {
	return repo.NewEarningRepo(s.store.DB()).ListForUser(ctx, userID, limit)
}

type SimulationResult struct {
	Interactions int                `json:"interactions"`
	AmountTotal  decimal.Decimal    `json:"amount_total"`
	Last         *InteractionResult `json:"last,omitempty"`
}

// Simulate calls RecordInteraction n times. It is meant for fixtures and
// demos; each call is its own transaction.
func (s *Service) Simulate(ctx context.Context, postID int64, kind string, n int) (*SimulationResult, error) {
	if n < 1 || n > MaxSimulate {
		return nil, fmt.Errorf("%w: n must be within [1, %d]", apperr.ErrInvalidArgument, MaxSimulate)
	}
	out := SimulationResult{AmountTotal: decimal.Zero}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return &out, err
		}
		r, err := s.RecordInteraction(ctx, postID, kind)
		if err != nil {
			return &out, err
		}
		out.Interactions++
		out.AmountTotal = out.AmountTotal.Add(r.AmountTotal)
		out.Last = r
	}
	return &out, nil
}
