// Package testutil builds in-memory sqlite stores and fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	postentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/entity"
	postrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/internal/store"
	userentity "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-integrity-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-integrity-go/pkg/utilities"
)

// Epoch is the start time of every fake clock handed out here.
var Epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// NewStore opens a private in-memory sqlite database with the full schema.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(sqlx.NewDb(db, database.DriverSQLite))
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

// NewClock returns a fake clock set to Epoch.
func NewClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}

// CreateUser inserts a user with the given role and a random unique name.
func CreateUser(t testing.TB, st *store.Store, role string) *userentity.User {
	t.Helper()
	now := Epoch
	u := &userentity.User{
		ID:        utilities.NextID(),
		Username:  gofakeit.Username() + "_" + gofakeit.LetterN(6),
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, userrepo.NewUserRepo(st.DB()).Create(context.Background(), u))
	return u
}

// CreatePost inserts a published post by authorID.
func CreatePost(t testing.TB, st *store.Store, authorID int64) *postentity.Post {
	t.Helper()
	now := Epoch
	p := &postentity.Post{
		ID:          utilities.NextID(),
		AuthorID:    authorID,
		ContentType: "article",
		Title:       gofakeit.Sentence(5),
		Body:        gofakeit.Paragraph(1, 3, 12, " "),
		State:       postentity.StatePublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, postrepo.NewPostRepo(st.DB()).Create(context.Background(), p))
	return p
}

// GetPost reloads a post.
func GetPost(t testing.TB, st *store.Store, id int64) *postentity.Post {
	t.Helper()
	p, err := postrepo.NewPostRepo(st.DB()).GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// GetUser reloads a user.
func GetUser(t testing.TB, st *store.Store, id int64) *userentity.User {
	t.Helper()
	u, err := userrepo.NewUserRepo(st.DB()).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
