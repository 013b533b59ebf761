package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/testutil"
	uentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
)

type flakySink struct {
	calls int
}

func (s *flakySink) Notify(ctx context.Context, userID int64, title, message, kind string, postID *int64) error {
	s.calls++
	if s.calls%2 == 1 {
		return errors.New("smtp unavailable")
	}
	return nil
}

func TestDeliverSwallowsErrors(t *testing.T) {
	sink := &flakySink{}
	d := NewDispatcher(sink, nil)
	now := testutil.Epoch
	d.Deliver(context.Background(),
		entity.New(1, "a", "a", entity.KindPostFlagged, nil, now),
		entity.New(1, "b", "b", entity.KindAccountSuspended, nil, now),
		entity.New(2, "c", "c", entity.KindSubscriptionApproved, nil, now),
	)
	assert.Equal(t, 3, sink.calls)

	var nilDispatcher *Dispatcher
	nilDispatcher.Deliver(context.Background(), entity.New(1, "x", "x", entity.KindPostFlagged, nil, now))
}

func TestInbox(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	owner := testutil.CreateUser(t, st, uentity.RoleUser)
	other := testutil.CreateUser(t, st, uentity.RoleUser)
	svc := NewService(st)

	n := entity.New(owner.ID, "hello", "world", entity.KindReportsDiscarded, nil, testutil.Epoch)
	require.NoError(t, repo.NewNotificationRepo(st.DB()).Insert(ctx, n))

	items, err := svc.List(ctx, owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, n.ID, items[0].ID)

	assert.ErrorIs(t, svc.MarkRead(ctx, other.ID, n.ID), apperr.ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, owner.ID, n.ID))
}
