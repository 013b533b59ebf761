package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation/entity"
	reportrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	nentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	nrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/repo"
	pentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	postrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// SuspensionReason is recorded on authors whose content is confirmed fake.
const SuspensionReason = "confirmed false information"

// Service is the moderation engine: report intake, threshold flagging and
// the admin decisions that close a flagged post.
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

// FileReportResult reports the post's counter after the report. Flagged is
// true once the counter has reached the threshold; TriggeredFlag only for the
// report that moved the post to flagged.
type FileReportResult struct {
	ReportID      int64 `json:"report_id"`
	TotalReports  int   `json:"total_reports"`
	Flagged       bool  `json:"flagged"`
	TriggeredFlag bool  `json:"triggered_flag"`
}

// FileReport records reporterID's report against postID and flags the post
// when the report threshold is reached.
func (s *Service) FileReport(ctx context.Context, postID, reporterID int64, reason, comment string) (*FileReportResult, error) {
	reason, ok := entity.NormalizeReason(reason)
	if !ok {
		return nil, fmt.Errorf("%w: unknown report reason %q", apperr.ErrInvalidArgument, reason)
	}
	now := utilities.Now(s.clock)
	var (
		res   FileReportResult
		notes []*nentity.Notification
	)
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		posts := postrepo.NewPostRepo(tx)
		p, err := loadPost(ctx, posts, postID)
		if err != nil {
			return err
		}
		if p.State != pentity.StatePublished {
			return fmt.Errorf("%w: only published content is reportable (post %d is %s)", apperr.ErrInvalidState, postID, p.State)
		}
		if p.AuthorID == reporterID {
			return fmt.Errorf("%w: cannot report your own post", apperr.ErrSelfAction)
		}
		if _, err := userrepo.NewUserRepo(tx).GetByID(ctx, reporterID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: reporter %d", apperr.ErrNotFound, reporterID)
			}
			return err
		}
		reports := reportrepo.NewReportRepo(tx)
		exists, err := reports.Exists(ctx, postID, reporterID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: user %d already reported post %d", apperr.ErrDuplicate, reporterID, postID)
		}
		rep := &entity.Report{
			ID:         utilities.NextID(),
			PostID:     postID,
			ReporterID: reporterID,
			Reason:     reason,
			Comment:    comment,
			State:      entity.StatePending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := reports.Create(ctx, rep); err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: user %d already reported post %d", apperr.ErrDuplicate, reporterID, postID)
			}
			return err
		}
		count, err := posts.IncrementReports(ctx, postID, now)
		if err != nil {
			return err
		}
		threshold, err := setting.ReadReportThreshold(ctx, tx)
		if err != nil {
			return err
		}
		res = FileReportResult{ReportID: rep.ID, TotalReports: count}
		if count < threshold {
			return nil
		}
		res.Flagged = true
		won, err := posts.FlagIfThreshold(ctx, postID, threshold, now)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		res.TriggeredFlag = true
		n := nentity.New(p.AuthorID, "Your content is under review",
			fmt.Sprintf("Your post %q received %d reports and has been flagged for review.", p.Title, count),
			nentity.KindPostFlagged, &p.ID, now)
		if err := nrepo.NewNotificationRepo(tx).Insert(ctx, n); err != nil {
			return err
		}
		notes = append(notes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	reportsFiled.WithLabelValues(reason).Inc()
	if res.TriggeredFlag {
		postsFlagged.Inc()
		s.logger.Infow("post flagged", "post_id", postID, "total_reports", res.TotalReports)
	}
	s.dispatcher.Deliver(ctx, notes...)
	return &res, nil
}

type ConfirmFakeResult struct {
	PostID          int64 `json:"post_id"`
	AuthorID        int64 `json:"author_id"`
	ReportsReviewed int64 `json:"reports_reviewed"`
}

// ConfirmFake closes a flagged post as fake and suspends its author. The post,
// author, reports and notification rows are written in one transaction.
// Calling it on a post that is not flagged (including one already fake)
// returns ErrInvalidState.
func (s *Service) ConfirmFake(ctx context.Context, postID, adminID int64) (*ConfirmFakeResult, error) {
	now := utilities.Now(s.clock)
	var (
		res   ConfirmFakeResult
		notes []*nentity.Notification
	)
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		posts := postrepo.NewPostRepo(tx)
		p, err := loadPost(ctx, posts, postID)
		if err != nil {
			return err
		}
		if p.State != pentity.StateFlagged {
			return fmt.Errorf("%w: post %d is %s, only flagged posts can be confirmed fake", apperr.ErrInvalidState, postID, p.State)
		}
		if _, err := user.RequireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		ok, err := posts.MarkFake(ctx, postID, adminID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: post %d is no longer flagged", apperr.ErrInvalidState, postID)
		}
		ok, err = userrepo.NewUserRepo(tx).Suspend(ctx, p.AuthorID, SuspensionReason, adminID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: author %d", apperr.ErrNotFound, p.AuthorID)
		}
		reviewed, err := reportrepo.NewReportRepo(tx).MarkAllForPost(ctx, postID, entity.StateReviewed, adminID, now)
		if err != nil {
			return err
		}
		notes = []*nentity.Notification{
			nentity.New(p.AuthorID, "Content confirmed as false information",
				fmt.Sprintf("After review, your post %q was confirmed to contain false information.", p.Title),
				nentity.KindPostConfirmedFake, &p.ID, now),
			nentity.New(p.AuthorID, "Account suspended",
				"Your account has been suspended for publishing confirmed false information.",
				nentity.KindAccountSuspended, &p.ID, now),
		}
		nr := nrepo.NewNotificationRepo(tx)
		for _, n := range notes {
			if err := nr.Insert(ctx, n); err != nil {
				return err
			}
		}
		res = ConfirmFakeResult{PostID: postID, AuthorID: p.AuthorID, ReportsReviewed: reviewed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	postsConfirmedFake.Inc()
	authorsSuspended.Inc()
	s.logger.Infow("post confirmed fake", "post_id", postID, "author_id", res.AuthorID, "admin_id", adminID)
	s.dispatcher.Deliver(ctx, notes...)
	return &res, nil
}

type DiscardResult struct {
	PostID          int64 `json:"post_id"`
	ReportsResolved int64 `json:"reports_resolved"`
}

// DiscardReports rejects the reports on a post, resetting its counter and
// returning it to published. Allowed from flagged and published.
func (s *Service) DiscardReports(ctx context.Context, postID, adminID int64) (*DiscardResult, error) {
	now := utilities.Now(s.clock)
	var (
		res   DiscardResult
		notes []*nentity.Notification
	)
	err := s.store.InTx(ctx, func(tx *sqlx.Tx) error {
		posts := postrepo.NewPostRepo(tx)
		p, err := loadPost(ctx, posts, postID)
		if err != nil {
			return err
		}
		if p.State != pentity.StateFlagged && p.State != pentity.StatePublished {
			return fmt.Errorf("%w: reports on a %s post cannot be discarded", apperr.ErrInvalidState, p.State)
		}
		if _, err := user.RequireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		ok, err := posts.RestorePublished(ctx, postID, adminID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: post %d changed state concurrently", apperr.ErrInvalidState, postID)
		}
		resolved, err := reportrepo.NewReportRepo(tx).MarkAllForPost(ctx, postID, entity.StateResolved, adminID, now)
		if err != nil {
			return err
		}
		if p.State == pentity.StateFlagged {
			n := nentity.New(p.AuthorID, "Your content has been restored",
				fmt.Sprintf("The reports on your post %q were reviewed and discarded.", p.Title),
				nentity.KindReportsDiscarded, &p.ID, now)
			if err := nrepo.NewNotificationRepo(tx).Insert(ctx, n); err != nil {
				return err
			}
			notes = append(notes, n)
		}
		res = DiscardResult{PostID: postID, ReportsResolved: resolved}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reportsDiscarded.Add(float64(res.ReportsResolved))
	s.logger.Infow("reports discarded", "post_id", postID, "admin_id", adminID, "resolved", res.ReportsResolved)
	s.dispatcher.Deliver(ctx, notes...)
	return &res, nil
}

type Stats struct {
	TotalReports   int64 `json:"total_reports"`
	PendingReports int64 `json:"pending_reports"`
	FlaggedPosts   int64 `json:"flagged_posts"`
	FakePosts      int64 `json:"fake_posts"`
	Threshold      int   `json:"threshold"`
}

// Stats aggregates moderation counters. It does not write.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	db := s.store.DB()
	reports := reportrepo.NewReportRepo(db)
	posts := postrepo.NewPostRepo(db)
	var out Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalReports, err = reports.Count(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		out.PendingReports, err = reports.Count(gctx, entity.StatePending)
		return err
	})
	g.Go(func() (err error) {
		out.FlaggedPosts, err = posts.CountByState(gctx, pentity.StateFlagged)
		return err
	})
	g.Go(func() (err error) {
		out.FakePosts, err = posts.CountByState(gctx, pentity.StateFake)
		return err
	})
	g.Go(func() (err error) {
		out.Threshold, err = setting.ReadReportThreshold(gctx, db)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportsForPost lists the reports filed against a post.
func (s *Service) ReportsForPost(ctx context.Context, postID int64) ([]*entity.Report, error) {
	db := s.store.DB()
	if _, err := loadPost(ctx, postrepo.NewPostRepo(db), postID); err != nil {
		return nil, err
	}
	return reportrepo.NewReportRepo(db).ListForPost(ctx, postID)
}

// FlaggedPosts is the admin review queue.
func (s *Service) FlaggedPosts(ctx context.Context, limit, offset int) ([]*pentity.Post, error) {
	return postrepo.NewPostRepo(s.store.DB()).ListByState(ctx, pentity.StateFlagged, limit, offset)
}

func loadPost(ctx context.Context, posts *postrepo.PostRepo, id int64) (*pentity.Post, error) {
	p, err := posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: post %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}
