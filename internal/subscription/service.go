// Package subscription resolves a user's subscription history to one
// effective entitlement and drives the request, payment review, cancel and
// expiry transitions of individual subscriptions.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	nentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	nrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

type Service struct {
	store      *store.Store
	dispatcher *notification.Dispatcher
	clock      clockwork.Clock
	logger     *zap.SugaredLogger
}

func NewService(st *store.Store, dispatcher *notification.Dispatcher, clock clockwork.Clock, logger *zap.SugaredLogger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: st, dispatcher: dispatcher, clock: clock, logger: logger}
}

// Now is the service clock in UTC.
func (s *Service) Now() time.Time { return utilities.Now(s.clock) }

// Status is a user's effective entitlement. Subscription is the deciding row
// for active and expired and nil for none; Pending is a request still
// awaiting review.
type Status struct {
	UserID         int64                    `json:"user_id"`
	State          string                   `json:"state"`
	Subscription   *entity.UserSubscription `json:"subscription"`
	Pending        *entity.UserSubscription `json:"pending,omitempty"`
	StaleCancelled int64                    `json:"stale_cancelled"`
}

// EffectiveStatus resolves userID's entitlement at now and cancels pending
// requests that a newer reviewed decision superseded.
func (s *Service) EffectiveStatus(ctx context.Context, userID int64, now time.Time) (*Status, error) {
	if now.IsZero() {
		now = s.Now()
	}
	now = now.UTC()
	out := Status{UserID: userID, State: entity.StateNone}
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := userrepo.NewUserRepo(tx).GetByID(ctx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
			}
			return err
		}
		subs := repo.NewSubscriptionRepo(tx)
		history, err := subs.ListForUser(ctx, userID)
		if err != nil {
			return err
		}
		res := Resolve(history, now)
		out.State = res.State
		out.Pending = res.Pending
		if res.State != entity.StateNone {
			out.Subscription = res.Reference
		}
		if len(res.Stale) == 0 {
			return nil
		}
		n, err := subs.CancelStalePending(ctx, userID, res.Reference.CreatedAt, entity.ActorSystem, entity.SupersededReason, now)
		if err != nil {
			return err
		}
		out.StaleCancelled = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.StaleCancelled > 0 {
		staleCancelled.Add(float64(out.StaleCancelled))
		s.logger.Infow("stale pending subscriptions cancelled", "user_id", userID, "count", out.StaleCancelled)
	}
	return &out, nil
}

// SweepExpirations expires every active subscription whose window closed at
// or before now. Running it again changes nothing.
func (s *Service) SweepExpirations(ctx context.Context, now time.Time) (int64, error) {
	if now.IsZero() {
		now = s.Now()
	}
	n, err := repo.NewSubscriptionRepo(s.store.DB()).ExpireDue(ctx, now.UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		subscriptionsExpired.Add(float64(n))
		s.logger.Infow("subscriptions expired", "count", n)
	}
	return n, nil
}

// Request opens a pending subscription of userID to planID.
func (s *Service) Request(ctx context.Context, userID, planID int64) (*entity.UserSubscription, error) {
	now := s.Now()
	var sub *entity.UserSubscription
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := userrepo.NewUserRepo(tx).GetByID(ctx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
			}
			return err
		}
		plan, err := loadPlan(ctx, repo.NewPlanRepo(tx), planID)
		if err != nil {
			return err
		}
		if !plan.Active {
			return fmt.Errorf("%w: plan %d is not offered", apperr.ErrInvalidState, planID)
		}
		sub = &entity.UserSubscription{
			ID:        utilities.NextID(),
			UserID:    userID,
			PlanID:    planID,
			State:     entity.StatePending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return repo.NewSubscriptionRepo(tx).Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns a single subscription.
func (s *Service) Get(ctx context.Context, id int64) (*entity.UserSubscription, error) {
	return loadSubscription(ctx, repo.NewSubscriptionRepo(s.store.DB()), id)
}

// History lists every subscription of a user, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]*entity.UserSubscription, error) {
	return repo.NewSubscriptionRepo(s.store.DB()).ListForUser(ctx, userID)
}

// PendingReviews is the admin payment review queue.
func (s *Service) PendingReviews(ctx context.Context, limit, offset int) ([]*entity.UserSubscription, error) {
	return repo.NewSubscriptionRepo(s.store.DB()).ListByState(ctx, entity.StatePending, limit, offset)
}

// RegisterPaymentNotice records that the user reports having paid. An empty
// reference gets a generated one.
func (s *Service) RegisterPaymentNotice(ctx context.Context, subscriptionID int64, reference string) (*entity.UserSubscription, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = "PAY-" + utilities.NewKSUID()
	}
	now := s.Now()
	var sub *entity.UserSubscription
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		subs := repo.NewSubscriptionRepo(tx)
		ok, err := subs.NotifyPayment(ctx, subscriptionID, reference, now)
		if err != nil {
			return err
		}
		if !ok {
			return stateError(ctx, subs, subscriptionID, "payment notice")
		}
		sub, err = subs.GetByID(ctx, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ReviewPayment approves or rejects a pending subscription. Approval opens
// the validity window [now, now + plan period).
func (s *Service) ReviewPayment(ctx context.Context, subscriptionID, adminID int64, approve bool, rejectReason string) (*entity.UserSubscription, error) {
	now := s.Now()
	var (
		sub   *entity.UserSubscription
		notes []*nentity.Notification
	)
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		subs := repo.NewSubscriptionRepo(tx)
		current, err := loadSubscription(ctx, subs, subscriptionID)
		if err != nil {
			return err
		}
		if current.State != entity.StatePending {
			return fmt.Errorf("%w: subscription %d is %s, only pending subscriptions can be reviewed", apperr.ErrInvalidState, subscriptionID, current.State)
		}
		if _, err := user.RequireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		plan, err := loadPlan(ctx, repo.NewPlanRepo(tx), current.PlanID)
		if err != nil {
			return err
		}
		var n *nentity.Notification
		if approve {
			ends := plan.Period().AddTo(now)
			ok, err := subs.Approve(ctx, subscriptionID, adminID, now, ends, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: subscription %d was reviewed concurrently", apperr.ErrInvalidState, subscriptionID)
			}
			n = nentity.New(current.UserID, "Subscription approved",
				fmt.Sprintf("Your %s subscription is active until %s.", plan.Name, ends.Format("2006-01-02")),
				nentity.KindSubscriptionApproved, nil, now)
		} else {
			var reason *string
			if r := strings.TrimSpace(rejectReason); r != "" {
				reason = &r
			}
			ok, err := subs.Reject(ctx, subscriptionID, adminID, reason, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: subscription %d was reviewed concurrently", apperr.ErrInvalidState, subscriptionID)
			}
			msg := fmt.Sprintf("Your payment for the %s subscription was rejected.", plan.Name)
			if reason != nil {
				msg += " Reason: " + *reason
			}
			n = nentity.New(current.UserID, "Subscription rejected", msg, nentity.KindSubscriptionRejected, nil, now)
		}
		if err := nrepo.NewNotificationRepo(tx).Insert(ctx, n); err != nil {
			return err
		}
		notes = append(notes, n)
		sub, err = subs.GetByID(ctx, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	decision := entity.StateRejected
	if approve {
		decision = entity.StateActive
	}
	paymentsReviewed.WithLabelValues(decision).Inc()
	s.logger.Infow("subscription reviewed", "subscription_id", subscriptionID, "admin_id", adminID, "state", decision)
	s.dispatcher.Deliver(ctx, notes...)
	return sub, nil
}

// Cancel cancels a pending or active subscription on behalf of actorID.
func (s *Service) Cancel(ctx context.Context, subscriptionID, actorID int64, reason string) (*entity.UserSubscription, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled by request"
	}
	now := s.Now()
	var sub *entity.UserSubscription
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		subs := repo.NewSubscriptionRepo(tx)
		ok, err := subs.Cancel(ctx, subscriptionID, strconv.FormatInt(actorID, 10), reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return stateError(ctx, subs, subscriptionID, "cancel")
		}
		sub, err = subs.GetByID(ctx, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	subscriptionsCancelled.Inc()
	return sub, nil
}

type PlanInput struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Period      string   `json:"period"`
	PeriodUnit  string   `json:"period_unit"`
	PeriodCount int      `json:"period_count"`
	Benefits    []string `json:"benefits"`
}

// CreatePlan defines a new plan. Period is either a named period or
// "custom" together with PeriodUnit and PeriodCount.
func (s *Service) CreatePlan(ctx context.Context, adminID int64, in PlanInput) (*entity.Plan, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: plan name required", apperr.ErrInvalidArgument)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("%w: invalid price %q", apperr.ErrInvalidArgument, in.Price)
	}
	var period entity.Period
	if in.Period == "" || strings.EqualFold(in.Period, entity.PeriodCustom) {
		period, err = entity.CustomPeriod(in.PeriodUnit, in.PeriodCount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
		}
	} else {
		var ok bool
		if period, ok = entity.NamedPeriod(in.Period); !ok {
			return nil, fmt.Errorf("%w: unknown period %q", apperr.ErrInvalidArgument, in.Period)
		}
	}
	now := s.Now()
	plan := &entity.Plan{
		ID:        utilities.NextID(),
		Name:      name,
		Price:     price,
		Benefits:  entity.Benefits(in.Benefits),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	plan.SetPeriod(period)
	err = s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := user.RequireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		if err := repo.NewPlanRepo(tx).Create(ctx, plan); err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: plan %q already exists", apperr.ErrDuplicate, name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListPlans lists plans, by default only those open for requests.
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]*entity.Plan, error) {
	return repo.NewPlanRepo(s.store.DB()).List(ctx, activeOnly)
}

// SetPlanActive opens or closes a plan for new requests.
func (s *Service) SetPlanActive(ctx context.Context, adminID, planID int64, active bool) error {
	return s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := user.RequireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		ok, err := repo.NewPlanRepo(tx).SetActive(ctx, planID, active)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: plan %d", apperr.ErrNotFound, planID)
		}
		return nil
	})
}

// Counts reports how many subscriptions sit in each state.
func (s *Service) Counts(ctx context.Context) (map[string]int64, error) {
	return repo.NewSubscriptionRepo(s.store.DB()).CountByState(ctx)
}

func loadPlan(ctx context.Context, plans *repo.PlanRepo, id int64) (*entity.Plan, error) {
	p, err := plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: plan %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func loadSubscription(ctx context.Context, subs *repo.SubscriptionRepo, id int64) (*entity.UserSubscription, error) {
	sub, err := subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: subscription %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return sub, nil
}

// stateError explains why a guarded update on id matched no row.
func stateError(ctx context.Context, subs *repo.SubscriptionRepo, id int64, op string) error {
	sub, err := loadSubscription(ctx, subs, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s not allowed on a %s subscription", apperr.ErrInvalidState, op, sub.State)
}
