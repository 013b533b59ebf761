package setting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/testutil"
	uentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
)

func TestReportThreshold(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t)
	svc := NewService(st, testutil.NewClock())
	admin := testutil.CreateUser(t, st, uentity.RoleAdmin)
	plain := testutil.CreateUser(t, st, uentity.RoleUser)

	n, err := svc.ReportThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultReportThreshold, n)

	_, err = svc.SetReportThreshold(ctx, 0, admin.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = svc.SetReportThreshold(ctx, 3, plain.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	s, err := svc.SetReportThreshold(ctx, 3, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, s.UpdatedBy)
	assert.Equal(t, admin.ID, *s.UpdatedBy)
	n, err = svc.ReportThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = svc.SetReportThreshold(ctx, 7, admin.ID)
	require.NoError(t, err)
	n, err = ReadReportThreshold(ctx, st.DB())
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = svc.Set(ctx, entity.KeyReportThreshold, "lots", "moderation", admin.ID)
	require.NoError(t, err)
	n, err = svc.ReportThreshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultReportThreshold, n)

	items, err := svc.List(ctx, "moderation")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
