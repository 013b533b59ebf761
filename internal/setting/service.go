package setting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// Service encapsulates business logic for settings and depends on a repo.
type Service struct {
	store *store.Store
	clock clockwork.Clock
}

// NewService constructs a Service over the store.
func NewService(st *store.Store, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: st, clock: clock}
}

// List returns settings by category (optional).
func (s *Service) List(ctx context.Context, category string) ([]*entity.Setting, error) {
	return repo.NewRepo(s.store.DB()).List(ctx, category)
}

// Get returns a setting by key.
func (s *Service) Get(ctx context.Context, key string) (*entity.Setting, error) {
	st, err := repo.NewRepo(s.store.DB()).GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: setting %q", apperr.ErrNotFound, key)
		}
		return nil, err
	}
	return st, nil
}

// Set writes a setting on behalf of an admin.
func (s *Service) Set(ctx context.Context, key, value, category string, adminID int64) (*entity.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", apperr.ErrInvalidArgument)
	}
	st := entity.NewSetting(key, value, category, "")
	st.UpdatedBy = &adminID
	st.UpdatedAt = utilities.Now(s.clock)
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := user.RequireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		return repo.NewRepo(tx).Upsert(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// SetReportThreshold validates and stores the report threshold.
func (s *Service) SetReportThreshold(ctx context.Context, threshold int, adminID int64) (*entity.Setting, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1", apperr.ErrInvalidArgument)
	}
	return s.Set(ctx, entity.KeyReportThreshold, strconv.Itoa(threshold), "moderation", adminID)
}

// ReportThreshold returns the configured report threshold.
func (s *Service) ReportThreshold(ctx context.Context) (int, error) {
	return ReadReportThreshold(ctx, s.store.DB())
}

// ReadReportThreshold reads the threshold through q so the moderation engine
// can consult it inside its own transaction. Missing or non-positive values
// fall back to DefaultReportThreshold.
func ReadReportThreshold(ctx context.Context, q sqlx.ExtContext) (int, error) {
	st, err := repo.NewRepo(q).GetByKey(ctx, entity.KeyReportThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.DefaultReportThreshold, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(st.Value))
	if err != nil || n < 1 {
		return entity.DefaultReportThreshold, nil
	}
	return n, nil
}
