package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gaev-art/gain-grid/internal/database"
	"github.com/gaev-art/gain-grid/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache key patterns
const (
	CacheKeyUserByID     = "user:id:%s"         // user:id:{uuid}
	CacheKeyUserByEmail  = "user:email:%s"      // user:email:{email}
	CacheKeyRevokedToken = "session:revoked:%s" // session:revoked:{jti}

	// Cache TTLs
	CacheTTLUser        = 30 * time.Minute
	CacheTTLUserByEmail = 15 * time.Minute
)

// CachedRepository provides caching layer for database operations
type CachedRepository struct {
	db    database.Repository
	cache CacheService
	log   logrus.FieldLogger
}

// NewCachedRepository creates a new cached repository
func NewCachedRepository(db database.Repository, cache CacheService, log logrus.FieldLogger) *CachedRepository {
	return &CachedRepository{
		db:    db,
		cache: cache,
		log:   log.WithField("component", "cached_repository"),
	}
}

// GetUserByID retrieves a user with caching
func (r *CachedRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.UserCache, error) {
	cacheKey := fmt.Sprintf(CacheKeyUserByID, userID.String())

	var cachedUser models.UserCache
	err := r.cache.Get(ctx, cacheKey, &cachedUser)
	if err == nil {
		return &cachedUser, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.log.Warnf("Cache error for user %s: %v", userID, err)
	}

	user, err := r.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	userCache := models.FromDatabaseUser(&user)
	_ = r.cache.Set(ctx, cacheKey, userCache, CacheTTLUser)

	return userCache, nil
}

// GetUserByEmail retrieves a user by email with caching. Misses are not cached,
// so a freshly registered address is visible immediately.
func (r *CachedRepository) GetUserByEmail(ctx context.Context, email string) (*models.UserCache, error) {
	cacheKey := fmt.Sprintf(CacheKeyUserByEmail, email)

	var cachedUser models.UserCache
	err := r.cache.Get(ctx, cacheKey, &cachedUser)
	if err == nil {
		return &cachedUser, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.log.Warnf("Cache error for user email %s: %v", email, err)
	}

	user, err := r.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	userCache := models.FromDatabaseUser(&user)
	_ = r.cache.Set(ctx, cacheKey, userCache, CacheTTLUserByEmail)

	return userCache, nil
}

// CreateUser writes through to the database. Nothing is cached until the first read.
func (r *CachedRepository) CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.UserCache, error) {
	user, err := r.db.CreateUser(ctx, arg)
	if err != nil {
		return nil, err
	}
	return models.FromDatabaseUser(&user), nil
}

// SetUserAvatar updates the stored avatar path and drops the cached copies.
func (r *CachedRepository) SetUserAvatar(ctx context.Context, userID uuid.UUID, avatarPath string) error {
	user, err := r.db.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.db.SetUserAvatar(ctx, userID, avatarPath); err != nil {
		return err
	}
	r.InvalidateUser(ctx, userID, user.Email)
	return nil
}

// InvalidateUser removes all user cache entries
func (r *CachedRepository) InvalidateUser(ctx context.Context, userID uuid.UUID, email string) {
	_ = r.cache.Delete(ctx, fmt.Sprintf(CacheKeyUserByID, userID.String()))
	_ = r.cache.Delete(ctx, fmt.Sprintf(CacheKeyUserByEmail, email))
}

func (r *CachedRepository) CreateOAuthState(ctx context.Context, arg database.OAuthState) error {
	return r.db.CreateOAuthState(ctx, arg)
}

func (r *CachedRepository) ConsumeOAuthState(ctx context.Context, state string) (database.OAuthState, error) {
	return r.db.ConsumeOAuthState(ctx, state)
}

// TokenDenylist records revoked session tokens until they would have expired anyway.
type TokenDenylist struct {
	cache CacheService
	log   logrus.FieldLogger
}

func NewTokenDenylist(cache CacheService, log logrus.FieldLogger) *TokenDenylist {
	return &TokenDenylist{cache: cache, log: log.WithField("component", "token_denylist")}
}

func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if !d.cache.IsEnabled() {
		d.log.Warnf("Cache disabled, token %s stays valid until it expires", tokenID)
		return nil
	}
	return d.cache.Set(ctx, fmt.Sprintf(CacheKeyRevokedToken, tokenID), true, ttl)
}

// IsRevoked treats an unreachable cache as "not revoked" so a Redis outage
// does not sign every user out.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := d.cache.Exists(ctx, fmt.Sprintf(CacheKeyRevokedToken, tokenID))
	if err != nil {
		d.log.WithError(err).WithField("jti", tokenID).Warn("Revocation check failed, accepting token")
		return false, nil
	}
	return revoked, nil
}
