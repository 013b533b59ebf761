package notification

import (
	"context"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
)

// Service is the user's inbox view over stored notifications.
type Service struct {
	store *store.Store
}

func NewService(st *store.Store) *Service { return &Service{store: st} }

func (s *Service) List(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	return repo.NewNotificationRepo(s.store.DB()).ListForUser(ctx, userID, limit)
}

func (s *Service) MarkRead(ctx context.Context, userID int64, id string) error {
	ok, err := repo.NewNotificationRepo(s.store.DB()).MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification %s", apperr.ErrNotFound, id)
	}
	return nil
}
