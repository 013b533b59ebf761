package store

import (
	"context"
	"fmt"

	moderationrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation/repo"
	notificationrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/repo"
	postrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/repo"
	revenuerepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue/repo"
	settingrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting/repo"
	subscriptionrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
)

type tableEnsurer interface {
	EnsureTable(ctx context.Context) error
}

// EnsureSchema creates every table the engines use, parents first.
// Prefer migrations in production.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tables := []struct {
		name string
		repo tableEnsurer
	}{
		{"users", userrepo.NewUserRepo(s.db)},
		{"posts", postrepo.NewPostRepo(s.db)},
		{"reports", moderationrepo.NewReportRepo(s.db)},
		{"earnings", revenuerepo.NewEarningRepo(s.db)},
		{"subscription_plans", subscriptionrepo.NewPlanRepo(s.db)},
		{"user_subscriptions", subscriptionrepo.NewSubscriptionRepo(s.db)},
		{"settings", settingrepo.NewRepo(s.db)},
		{"notifications", notificationrepo.NewNotificationRepo(s.db)},
	}
	for _, t := range tables {
		if err := t.repo.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", t.name, err)
		}
	}
	return nil
}
