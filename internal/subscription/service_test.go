package subscription

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	nentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/testutil"
	uentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
)

type kindSink struct {
	mu    sync.Mutex
	kinds map[int64][]string
}

func (s *kindSink) Notify(ctx context.Context, userID int64, title, message, kind string, postID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kinds == nil {
		s.kinds = map[int64][]string{}
	}
	s.kinds[userID] = append(s.kinds[userID], kind)
	return nil
}

func (s *kindSink) of(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kinds[userID]
}

type env struct {
	st    *store.Store
	clock *clockwork.FakeClock
	sink  *kindSink
	svc   *Service
	admin *uentity.User
	user  *uentity.User
	plan  *entity.Plan
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := testutil.NewStore(t)
	clock := testutil.NewClock()
	sink := &kindSink{}
	e := &env{
		st:    st,
		clock: clock,
		sink:  sink,
		svc:   NewService(st, notification.NewDispatcher(sink, nil), clock, nil),
		admin: testutil.CreateUser(t, st, uentity.RoleAdmin),
		user:  testutil.CreateUser(t, st, uentity.RoleUser),
	}
	plan, err := e.svc.CreatePlan(context.Background(), e.admin.ID, PlanInput{
		Name: "Premium", Price: "9.99", Period: "monthly", Benefits: []string{"no ads"},
	})
	require.NoError(t, err)
	e.plan = plan
	return e
}

func (e *env) approved(t *testing.T) *entity.UserSubscription {
	t.Helper()
	ctx := context.Background()
	sub, err := e.svc.Request(ctx, e.user.ID, e.plan.ID)
	require.NoError(t, err)
	sub, err = e.svc.ReviewPayment(ctx, sub.ID, e.admin.ID, true, "")
	require.NoError(t, err)
	return sub
}

func TestRequestAndApprove(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	sub, err := e.svc.Request(ctx, e.user.ID, e.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatePending, sub.State)

	sub, err = e.svc.RegisterPaymentNotice(ctx, sub.ID, "  ")
	require.NoError(t, err)
	require.NotNil(t, sub.PaymentReference)
	assert.True(t, strings.HasPrefix(*sub.PaymentReference, "PAY-"))
	require.NotNil(t, sub.PaymentNotifiedAt)

	status, err := e.svc.EffectiveStatus(ctx, e.user.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, entity.StateNone, status.State)
	require.NotNil(t, status.Pending)
	assert.Equal(t, sub.ID, status.Pending.ID)

	e.clock.Advance(time.Hour)
	sub, err = e.svc.ReviewPayment(ctx, sub.ID, e.admin.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, sub.State)
	start := testutil.Epoch.Add(time.Hour)
	require.NotNil(t, sub.StartsAt)
	require.NotNil(t, sub.EndsAt)
	assert.True(t, start.Equal(*sub.StartsAt))
	assert.True(t, start.AddDate(0, 1, 0).Equal(*sub.EndsAt))
	require.NotNil(t, sub.ReviewedBy)
	assert.Equal(t, e.admin.ID, *sub.ReviewedBy)
	assert.Equal(t, []string{nentity.KindSubscriptionApproved}, e.sink.of(e.user.ID))

	status, err = e.svc.EffectiveStatus(ctx, e.user.ID, start.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, status.State)
	assert.Equal(t, sub.ID, status.Subscription.ID)
	assert.Nil(t, status.Pending)

	_, err = e.svc.ReviewPayment(ctx, sub.ID, e.admin.ID, false, "late")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = e.svc.RegisterPaymentNotice(ctx, sub.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestNeverActivePastEnd(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sub := e.approved(t)

	status, err := e.svc.EffectiveStatus(ctx, e.user.ID, *sub.EndsAt)
	require.NoError(t, err)
	assert.Equal(t, entity.StateExpired, status.State)
	assert.Equal(t, sub.ID, status.Subscription.ID)

	stored, err := e.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, stored.State, "status reads do not expire rows")
}

func TestSweepExpirations(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sub := e.approved(t)

	n, err := e.svc.SweepExpirations(ctx, sub.EndsAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.svc.SweepExpirations(ctx, *sub.EndsAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = e.svc.SweepExpirations(ctx, sub.EndsAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := e.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateExpired, stored.State)

	status, err := e.svc.EffectiveStatus(ctx, e.user.ID, sub.EndsAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, entity.StateNone, status.State)

	counts, err := e.svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[entity.StateExpired])
}

func TestStalePendingCancelled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	stale, err := e.svc.Request(ctx, e.user.ID, e.plan.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	newer, err := e.svc.Request(ctx, e.user.ID, e.plan.ID)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	_, err = e.svc.ReviewPayment(ctx, newer.ID, e.admin.ID, true, "")
	require.NoError(t, err)

	status, err := e.svc.EffectiveStatus(ctx, e.user.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, entity.StateActive, status.State)
	assert.Equal(t, newer.ID, status.Subscription.ID)
	assert.Equal(t, int64(1), status.StaleCancelled)

	got, err := e.svc.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StateCancelled, got.State)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, entity.ActorSystem, *got.CancelledBy)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, entity.SupersededReason, *got.CancellationReason)

	status, err = e.svc.EffectiveStatus(ctx, e.user.ID, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, status.StaleCancelled)
}

func TestRejectPayment(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sub, err := e.svc.Request(ctx, e.user.ID, e.plan.ID)
	require.NoError(t, err)

	_, err = e.svc.ReviewPayment(ctx, sub.ID, e.user.ID, false, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = e.svc.ReviewPayment(ctx, 999, e.admin.ID, true, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	sub, err = e.svc.ReviewPayment(ctx, sub.ID, e.admin.ID, false, "payment not received")
	require.NoError(t, err)
	assert.Equal(t, entity.StateRejected, sub.State)
	require.NotNil(t, sub.RejectionReason)
	assert.Equal(t, "payment not received", *sub.RejectionReason)
	assert.Nil(t, sub.EndsAt)
	assert.Equal(t, []string{nentity.KindSubscriptionRejected}, e.sink.of(e.user.ID))

	status, err := e.svc.EffectiveStatus(ctx, e.user.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, entity.StateNone, status.State)
	assert.Nil(t, status.Subscription)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sub := e.approved(t)

	got, err := e.svc.Cancel(ctx, sub.ID, e.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, entity.StateCancelled, got.State)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, strconv.FormatInt(e.user.ID, 10), *got.CancelledBy)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "cancelled by request", *got.CancellationReason)
	require.NotNil(t, got.EndsAt)

	_, err = e.svc.Cancel(ctx, sub.ID, e.user.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = e.svc.Cancel(ctx, 999, e.user.ID, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	status, err := e.svc.EffectiveStatus(ctx, e.user.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, entity.StateNone, status.State)
}

func TestPlans(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for name, in := range map[string]PlanInput{
		"no name":      {Price: "1"},
		"bad price":    {Name: "x", Price: "abc", Period: "monthly"},
		"negative":     {Name: "x", Price: "-1", Period: "monthly"},
		"unknown":      {Name: "x", Price: "1", Period: "fortnightly"},
		"custom unit":  {Name: "x", Price: "1", Period: "custom", PeriodUnit: "hour", PeriodCount: 3},
		"custom count": {Name: "x", Price: "1", PeriodUnit: "week", PeriodCount: 0},
	} {
		_, err := e.svc.CreatePlan(ctx, e.admin.ID, in)
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument, name)
	}

	_, err := e.svc.CreatePlan(ctx, e.admin.ID, PlanInput{Name: "Premium", Price: "1", Period: "annual"})
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
	_, err = e.svc.CreatePlan(ctx, e.user.ID, PlanInput{Name: "Mine", Price: "1", Period: "annual"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	biweekly, err := e.svc.CreatePlan(ctx, e.admin.ID, PlanInput{Name: "Biweekly", Price: "2.50", PeriodUnit: "week", PeriodCount: 2})
	require.NoError(t, err)
	assert.Equal(t, entity.Period{Name: entity.PeriodCustom, Unit: entity.UnitWeek, Count: 2}, biweekly.Period())

	sub, err := e.svc.Request(ctx, e.user.ID, biweekly.ID)
	require.NoError(t, err)
	sub, err = e.svc.ReviewPayment(ctx, sub.ID, e.admin.ID, true, "")
	require.NoError(t, err)
	assert.True(t, testutil.Epoch.AddDate(0, 0, 14).Equal(*sub.EndsAt))

	require.NoError(t, e.svc.SetPlanActive(ctx, e.admin.ID, biweekly.ID, false))
	_, err = e.svc.Request(ctx, e.user.ID, biweekly.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.ErrorIs(t, e.svc.SetPlanActive(ctx, e.admin.ID, 999, true), apperr.ErrNotFound)

	active, err := e.svc.ListPlans(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Premium", active[0].Name)
	assert.Equal(t, entity.Benefits{"no ads"}, active[0].Benefits)

	all, err := e.svc.ListPlans(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEffectiveStatusUnknownUser(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.EffectiveStatus(context.Background(), 999, time.Time{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.svc.Request(context.Background(), 999, e.plan.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
