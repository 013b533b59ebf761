package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/moderation"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification"
	nentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/notification/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/post"
	pentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/revenue"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/setting"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/subscription"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/testutil"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/user"
	uentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
)

type api struct {
	t *testing.T
	h http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	st := testutil.NewStore(t)
	clock := testutil.NewClock()
	logger := zap.NewNop().Sugar()

	users := user.NewUserService(st, user.BcryptHasher{Cost: bcrypt.MinCost}, clock)
	admin, err := users.Register(context.Background(), "root", "root@example.com", "rootpw", uentity.RoleAdmin)
	require.NoError(t, err)

	issuer, err := auth.NewIssuer("router-test", "pitchfork-test", 0, clock)
	require.NoError(t, err)
	dispatcher := notification.NewDispatcher(nil, logger)
	revCfg := revenue.DefaultConfig()
	revCfg.AdminUserID = admin.ID
	rev, err := revenue.NewService(st, revCfg, clock, logger)
	require.NoError(t, err)

	h := RegisterRoutes(logger, issuer, Handlers{
		User:         user.NewHandler(users, issuer, logger),
		Post:         post.NewHandler(post.NewService(st, clock), logger),
		Moderation:   moderation.NewHandler(moderation.NewService(st, dispatcher, clock, logger), logger),
		Revenue:      revenue.NewHandler(rev, logger),
		Subscription: subscription.NewHandler(subscription.NewService(st, dispatcher, clock, logger), logger),
		Setting:      setting.NewHandler(setting.NewService(st, clock), logger),
		Notification: notification.NewHandler(notification.NewService(st), logger),
	})
	return &api{t: t, h: h}
}

func (a *api) do(method, path, token string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, Prefix+path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 && rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (a *api) signup(name string) (int64, string) {
	a.t.Helper()
	var u uentity.User
	require.Equal(a.t, http.StatusCreated, a.do(http.MethodPost, "/register", "", user.RegisterRequest{Username: name, Password: name + "-pw"}, &u))
	return u.ID, a.login(name, name+"-pw")
}

func (a *api) login(identifier, password string) string {
	a.t.Helper()
	var res user.LoginResponse
	require.Equal(a.t, http.StatusOK, a.do(http.MethodPost, "/login", "", user.LoginRequest{Identifier: identifier, Password: password}, &res))
	require.NotEmpty(a.t, res.AccessToken)
	return res.AccessToken
}

func TestModerationFlow(t *testing.T) {
	a := newAPI(t)
	adminTok := a.login("root@example.com", "rootpw")
	authorID, authorTok := a.signup("author")
	_, r1 := a.signup("reader1")
	_, r2 := a.signup("reader2")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/login", "", user.LoginRequest{Identifier: "author", Password: "nope"}, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPut, "/settings/report-threshold", authorTok, setting.ThresholdBody{Threshold: 2}, nil))
	assert.Equal(t, http.StatusOK, a.do(http.MethodPut, "/settings/report-threshold", adminTok, setting.ThresholdBody{Threshold: 2}, nil))

	var p pentity.Post
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/posts", authorTok, post.CreateRequest{Title: "Moon is cheese", Body: "trust me"}, &p))
	assert.Equal(t, authorID, p.AuthorID)
	reports := fmt.Sprintf("/posts/%d/reports", p.ID)

	report := moderation.ReportRequest{Reason: "false_information"}
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, reports, "", report, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, reports, authorTok, report, nil))

	var res moderation.FileReportResult
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, reports, r1, report, &res))
	assert.False(t, res.Flagged)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, reports, r1, report, nil))
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, reports, r2, report, &res))
	assert.True(t, res.TriggeredFlag)

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, fmt.Sprintf("/posts/%d", p.ID), "", nil, &p))
	assert.Equal(t, pentity.StateFlagged, p.State)
	assert.Equal(t, 2, p.TotalReports)

	confirm := fmt.Sprintf("/posts/%d/confirm-fake", p.ID)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, confirm, r1, nil, nil))
	var cf moderation.ConfirmFakeResult
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, confirm, adminTok, nil, &cf))
	assert.Equal(t, int64(2), cf.ReportsReviewed)

	var me uentity.User
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/me", authorTok, nil, &me))
	assert.True(t, me.Suspended)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/posts", authorTok, post.CreateRequest{Title: "again"}, nil))

	var inbox []*nentity.Notification
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/notifications", authorTok, nil, &inbox))
	kinds := map[string]bool{}
	for _, n := range inbox {
		kinds[n.Kind] = true
	}
	assert.True(t, kinds[nentity.KindPostFlagged])
	assert.True(t, kinds[nentity.KindPostConfirmedFake])
	assert.True(t, kinds[nentity.KindAccountSuspended])
	require.NotEmpty(t, inbox)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/notifications/"+inbox[0].ID+"/read", authorTok, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/notifications/"+inbox[0].ID+"/read", r1, nil, nil))
}

func TestRevenueFlow(t *testing.T) {
	a := newAPI(t)
	adminTok := a.login("root", "rootpw")
	authorID, authorTok := a.signup("writer")
	_, otherTok := a.signup("stranger")

	var p pentity.Post
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/posts", authorTok, post.CreateRequest{Title: "t", Body: "b"}, &p))
	interactions := fmt.Sprintf("/posts/%d/interactions", p.ID)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, a.do(http.MethodPost, interactions, "", revenue.InteractionRequest{Kind: "view"}, nil))
	}
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, interactions, "", revenue.InteractionRequest{Kind: "like"}, nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/posts/999/interactions", "", revenue.InteractionRequest{Kind: "view"}, nil))

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/revenue/dashboard", authorTok, nil, nil))
	var dash revenue.DashboardResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/revenue/dashboard", adminTok, nil, &dash))
	assert.Equal(t, "0.03", dash.Total)
	assert.Equal(t, "0.021", dash.Admin)
	assert.Equal(t, "0.02", dash.AdminDisplay)
	assert.Equal(t, int64(6), dash.Rows)

	earnings := fmt.Sprintf("/users/%d/earnings", authorID)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, earnings, otherTok, nil, nil))
	var totals revenue.UserTotals
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, earnings, authorTok, nil, &totals))
	assert.Equal(t, int64(3), totals.Views)
	assert.Equal(t, "0.009", totals.CreatorEarnings.String())
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, earnings, adminTok, nil, nil))
}

func TestHealthAndHeaders(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, Prefix+"/health", nil)
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/me", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/me", "garbage", nil, nil))
}
