package database

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := OpenSQLite(context.Background(), ":memory:", log)
	require.NoError(t, err)
	repo := NewSQLiteRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	t.Cleanup(repo.Close)
	return repo
}

func TestSQLiteCreateAndGetUser(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, CreateUserParams{
		Name:         "Jamie Runner",
		Email:        "jamie@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.IsActive)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := repo.GetUserByEmail(ctx, "jamie@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jamie Runner", byID.Name)
}

func TestSQLiteDuplicateEmail(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, CreateUserParams{Name: "One", Email: "dup@example.com"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, CreateUserParams{Name: "Two", Email: "dup@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestSQLiteUserNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.SetUserAvatar(context.Background(), uuid.New(), "avatars/x.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSetUserAvatar(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, CreateUserParams{Name: "Avatar", Email: "avatar@example.com"})
	require.NoError(t, err)

	require.NoError(t, repo.SetUserAvatar(ctx, u.ID, "u/1.png"))
	got, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "u/1.png", got.AvatarPath)
}

func TestSQLiteOAuthStateIsSingleUse(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	require.NoError(t, repo.CreateOAuthState(ctx, OAuthState{State: "abc", Provider: "google", ExpiresAt: expires}))

	s, err := repo.ConsumeOAuthState(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "google", s.Provider)
	assert.True(t, s.ExpiresAt.Equal(expires))

	_, err = repo.ConsumeOAuthState(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLitePurgeOAuthStates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.CreateOAuthState(ctx, OAuthState{State: "old", Provider: "google", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.CreateOAuthState(ctx, OAuthState{State: "new", Provider: "google", ExpiresAt: now.Add(time.Hour)}))

	n, err := repo.PurgeOAuthStates(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.ConsumeOAuthState(ctx, "new")
	assert.NoError(t, err)
}
