package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation/entity"
	reportrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	nentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	nrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/repo"
	pentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/testutil"
	uentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
)

type sentNote struct {
	userID int64
	kind   string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sentNote
	err  error
}

func (s *recordingSink) Notify(ctx context.Context, userID int64, title, message, kind string, postID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentNote{userID: userID, kind: kind})
	return s.err
}

func (s *recordingSink) kinds(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, n := range s.sent {
		if n.userID == userID {
			out = append(out, n.kind)
		}
	}
	return out
}

type fixture struct {
	st    *store.Store
	svc   *Service
	sink  *recordingSink
	admin *uentity.User
}

func newFixture(t *testing.T, threshold int) *fixture {
	t.Helper()
	st := testutil.NewStore(t)
	clock := testutil.NewClock()
	sink := &recordingSink{}
	admin := testutil.CreateUser(t, st, uentity.RoleAdmin)
	if threshold > 0 {
		_, err := setting.NewService(st, clock).SetReportThreshold(context.Background(), threshold, admin.ID)
		require.NoError(t, err)
	}
	return &fixture{
		st:    st,
		svc:   NewService(st, notification.NewDispatcher(sink, nil), clock, nil),
		sink:  sink,
		admin: admin,
	}
}

func (f *fixture) reporters(t *testing.T, n int) []*uentity.User {
	out := make([]*uentity.User, n)
	for i := range out {
		out[i] = testutil.CreateUser(t, f.st, uentity.RoleUser)
	}
	return out
}

func (f *fixture) countNotes(t *testing.T, userID int64, kind string) int {
	n, err := nrepo.NewNotificationRepo(f.st.DB()).CountForUser(context.Background(), userID, kind)
	require.NoError(t, err)
	return n
}

func TestFileReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	reporter := testutil.CreateUser(t, f.st, uentity.RoleUser)

	res, err := f.svc.FileReport(ctx, post.ID, reporter.ID, " Spam ", "obvious bot")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalReports)
	assert.False(t, res.Flagged)
	assert.False(t, res.TriggeredFlag)

	reports, err := f.svc.ReportsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, entity.ReasonSpam, reports[0].Reason)
	assert.Equal(t, entity.StatePending, reports[0].State)
	assert.Equal(t, res.ReportID, reports[0].ID)
	assert.Equal(t, 1, testutil.GetPost(t, f.st, post.ID).TotalReports)
}

func TestFileReportRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	reporter := testutil.CreateUser(t, f.st, uentity.RoleUser)

	_, err := f.svc.FileReport(ctx, post.ID, author.ID, entity.ReasonSpam, "")
	assert.ErrorIs(t, err, apperr.ErrSelfAction)

	_, err = f.svc.FileReport(ctx, int64(999), reporter.ID, entity.ReasonSpam, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.FileReport(ctx, post.ID, reporter.ID, "boring", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.svc.FileReport(ctx, post.ID, int64(999), entity.ReasonSpam, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.FileReport(ctx, post.ID, reporter.ID, entity.ReasonSpam, "")
	require.NoError(t, err)
	_, err = f.svc.FileReport(ctx, post.ID, reporter.ID, entity.ReasonOther, "again")
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	// rejected attempts leave no trace
	p := testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, 1, p.TotalReports)
	n, err := reportrepo.NewReportRepo(f.st.DB()).CountForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, p.TotalReports, n)
}

func TestThresholdFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 3)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	rs := f.reporters(t, 4)

	var triggered int
	for i, r := range rs[:3] {
		res, err := f.svc.FileReport(ctx, post.ID, r.ID, entity.ReasonFalseInformation, "")
		require.NoError(t, err)
		assert.Equal(t, i+1, res.TotalReports)
		if res.TriggeredFlag {
			triggered++
			assert.True(t, res.Flagged)
		}
	}
	assert.Equal(t, 1, triggered)

	p := testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, pentity.StateFlagged, p.State)
	assert.NotNil(t, p.FlaggedAt)
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindPostFlagged))
	assert.Equal(t, []string{nentity.KindPostFlagged}, f.sink.kinds(author.ID))

	// a flagged post is no longer reportable
	_, err := f.svc.FileReport(ctx, post.ID, rs[3].ID, entity.ReasonSpam, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, 3, testutil.GetPost(t, f.st, post.ID).TotalReports)
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindPostFlagged))
}

func TestConcurrentReportsFlagOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	rs := f.reporters(t, 8)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		triggered int
	)
	for _, r := range rs {
		wg.Add(1)
		go func(reporterID int64) {
			defer wg.Done()
			res, err := f.svc.FileReport(ctx, post.ID, reporterID, entity.ReasonSpam, "")
			if err != nil {
				return
			}
			if res.TriggeredFlag {
				mu.Lock()
				triggered++
				mu.Unlock()
			}
		}(r.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, triggered)
	p := testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, pentity.StateFlagged, p.State)
	n, err := reportrepo.NewReportRepo(f.st.DB()).CountForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, p.TotalReports, n)
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindPostFlagged))
}

func TestTenReportsThenConfirmFake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	rs := f.reporters(t, 10)
	reasons := []string{entity.ReasonSpam, entity.ReasonFalseInformation, entity.ReasonHateSpeech, entity.ReasonOther}

	for i, r := range rs[:9] {
		_, err := f.svc.FileReport(ctx, post.ID, r.ID, reasons[i%len(reasons)], "")
		require.NoError(t, err)
	}
	p := testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, pentity.StatePublished, p.State)
	assert.Equal(t, 9, p.TotalReports)

	res, err := f.svc.FileReport(ctx, post.ID, rs[9].ID, entity.ReasonFalseInformation, "")
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalReports)
	assert.True(t, res.TriggeredFlag)
	p = testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, pentity.StateFlagged, p.State)
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindPostFlagged))

	cf, err := f.svc.ConfirmFake(ctx, post.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cf.ReportsReviewed)
	assert.Equal(t, author.ID, cf.AuthorID)

	p = testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, pentity.StateFake, p.State)
	assert.True(t, p.VerifiedFake)
	assert.NotNil(t, p.VerifiedFakeAt)
	require.NotNil(t, p.ReviewedBy)
	assert.Equal(t, f.admin.ID, *p.ReviewedBy)

	u := testutil.GetUser(t, f.st, author.ID)
	assert.True(t, u.Suspended)
	require.NotNil(t, u.SuspensionReason)
	assert.Equal(t, SuspensionReason, *u.SuspensionReason)
	require.NotNil(t, u.SuspendedBy)
	assert.Equal(t, f.admin.ID, *u.SuspendedBy)

	reports, err := f.svc.ReportsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, reports, 10)
	for _, r := range reports {
		assert.Equal(t, entity.StateReviewed, r.State)
	}
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindPostConfirmedFake))
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindAccountSuspended))

	// fake is terminal
	_, err = f.svc.ConfirmFake(ctx, post.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.svc.DiscardReports(ctx, post.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestConfirmFakeRequiresFlaggedAndAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	reporter := testutil.CreateUser(t, f.st, uentity.RoleUser)

	_, err := f.svc.ConfirmFake(ctx, post.ID, f.admin.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.svc.FileReport(ctx, post.ID, reporter.ID, entity.ReasonSpam, "")
	require.NoError(t, err)

	_, err = f.svc.ConfirmFake(ctx, post.ID, reporter.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.ConfirmFake(ctx, int64(999), f.admin.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// nothing was written by the failed attempts
	assert.Equal(t, pentity.StateFlagged, testutil.GetPost(t, f.st, post.ID).State)
	assert.False(t, testutil.GetUser(t, f.st, author.ID).Suspended)
}

func TestDiscardReports(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	rs := f.reporters(t, 3)

	for _, r := range rs[:2] {
		_, err := f.svc.FileReport(ctx, post.ID, r.ID, entity.ReasonHarassment, "")
		require.NoError(t, err)
	}
	require.Equal(t, pentity.StateFlagged, testutil.GetPost(t, f.st, post.ID).State)

	res, err := f.svc.DiscardReports(ctx, post.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.ReportsResolved)

	p := testutil.GetPost(t, f.st, post.ID)
	assert.Equal(t, pentity.StatePublished, p.State)
	assert.Equal(t, 0, p.TotalReports)
	assert.Nil(t, p.FlaggedAt)
	assert.False(t, testutil.GetUser(t, f.st, author.ID).Suspended)
	assert.Equal(t, 1, f.countNotes(t, author.ID, nentity.KindReportsDiscarded))

	reports, err := f.svc.ReportsForPost(ctx, post.ID)
	require.NoError(t, err)
	for _, r := range reports {
		assert.Equal(t, entity.StateResolved, r.State)
	}

	// the post is reportable again; earlier reporters stay deduplicated
	_, err = f.svc.FileReport(ctx, post.ID, rs[0].ID, entity.ReasonSpam, "")
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
	res2, err := f.svc.FileReport(ctx, post.ID, rs[2].ID, entity.ReasonSpam, "")
	require.NoError(t, err)
	assert.Equal(t, 1, res2.TotalReports)
}

func TestDeliveryFailureDoesNotRollBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	f.sink.err = errors.New("smtp down")
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	post := testutil.CreatePost(t, f.st, author.ID)
	reporter := testutil.CreateUser(t, f.st, uentity.RoleUser)

	res, err := f.svc.FileReport(ctx, post.ID, reporter.ID, entity.ReasonViolence, "")
	require.NoError(t, err)
	assert.True(t, res.TriggeredFlag)

	_, err = f.svc.ConfirmFake(ctx, post.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, pentity.StateFake, testutil.GetPost(t, f.st, post.ID).State)
	assert.Len(t, f.sink.kinds(author.ID), 3)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	author := testutil.CreateUser(t, f.st, uentity.RoleUser)
	flagged := testutil.CreatePost(t, f.st, author.ID)
	fake := testutil.CreatePost(t, f.st, author.ID)
	rs := f.reporters(t, 3)

	for _, r := range rs[:2] {
		_, err := f.svc.FileReport(ctx, flagged.ID, r.ID, entity.ReasonSpam, "")
		require.NoError(t, err)
		_, err = f.svc.FileReport(ctx, fake.ID, r.ID, entity.ReasonSpam, "")
		require.NoError(t, err)
	}
	_, err := f.svc.ConfirmFake(ctx, fake.ID, f.admin.ID)
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.TotalReports)
	assert.Equal(t, int64(2), st.PendingReports)
	assert.Equal(t, int64(1), st.FlaggedPosts)
	assert.Equal(t, int64(1), st.FakePosts)
	assert.Equal(t, 2, st.Threshold)

	queue, err := f.svc.FlaggedPosts(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, flagged.ID, queue[0].ID)
}

func TestDefaultThreshold(t *testing.T) {
	f := newFixture(t, 0)
	st, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, st.Threshold)
}
