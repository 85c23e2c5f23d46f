package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gaev-art/gain-grid/internal/database"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newSQLiteRepo(t *testing.T) database.Repository {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:", quietLogger())
	require.NoError(t, err)
	repo := database.NewSQLiteRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	t.Cleanup(repo.Close)
	return repo
}

func TestDisabledCache(t *testing.T) {
	cache := NewDisabledCache(quietLogger())
	ctx := context.Background()

	assert.False(t, cache.IsEnabled())
	assert.NoError(t, cache.Set(ctx, "k", "v", time.Minute))

	var out string
	assert.Error(t, cache.Get(ctx, "k", &out))

	ok, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, cache.Ping(ctx), ErrCacheDisabled)
}

func TestCachedRepositoryFallsThroughToDatabase(t *testing.T) {
	repo := NewCachedRepository(newSQLiteRepo(t), NewDisabledCache(quietLogger()), quietLogger())
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, database.CreateUserParams{Name: "Sam Lift", Email: "sam@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.True(t, created.HasPassword())

	byEmail, err := repo.GetUserByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	id := uuid.MustParse(created.ID)
	require.NoError(t, repo.SetUserAvatar(ctx, id, "x/y.png"))

	byID, err := repo.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "x/y.png", byID.AvatarPath)

	_, err = repo.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestTokenDenylistWithDisabledCache(t *testing.T) {
	denylist := NewTokenDenylist(NewDisabledCache(quietLogger()), quietLogger())
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti", time.Hour))
	revoked, err := denylist.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorageService(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("png-bytes")
	info, err := store.Upload(ctx, AvatarBucket, "user/1.png", bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)

	rc, err := store.Download(ctx, AvatarBucket, "user/1.png", minio.GetObjectOptions{})
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, AvatarBucket, "user/1.png", minio.RemoveObjectOptions{}))
	_, err = store.Download(ctx, AvatarBucket, "user/1.png", minio.GetObjectOptions{})
	assert.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), AvatarBucket, "../../etc/passwd", bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	assert.ErrorContains(t, err, "invalid object name")
}

func TestAvatarImportTask(t *testing.T) {
	task, err := NewAvatarImportTask("u-1", "https://example.com/p.png")
	require.NoError(t, err)
	assert.Equal(t, TypeAvatarImport, task.Type())

	var payload AvatarImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "u-1", payload.UserID)
	assert.Equal(t, "https://example.com/p.png", payload.PictureURL)

	assert.Equal(t, TypePurgeOAuthStates, NewPurgeOAuthStatesTask().Type())
}

type unreachableCache struct{ CacheService }

func (unreachableCache) IsEnabled() bool { return true }

func (unreachableCache) Exists(context.Context, string) (bool, error) {
	return false, errors.New("i/o timeout")
}

func TestTokenDenylistAcceptsTokensWhenCacheErrors(t *testing.T) {
	denylist := NewTokenDenylist(unreachableCache{}, quietLogger())

	revoked, err := denylist.IsRevoked(context.Background(), "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}
