package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"codetube/internal/cache"
	"codetube/internal/model"
)

const (
	userCacheKeyPrefix = "user:"
	userCacheTTL       = 5 * time.Minute
)

// UserCacheInterface defines the read-through cache used by the auth guard.
// Secret columns are never cached: entries round-trip through the User's
// JSON form, which excludes them.
type UserCacheInterface interface {
	// GetUser returns the cached user or nil on a miss.
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	StoreUser(ctx context.Context, user *model.User) error
	InvalidateUser(ctx context.Context, id uuid.UUID) error
}

// UserCache stores sanitized user records in Redis.
type UserCache struct {
	cache *cache.Client
}

// Ensure UserCache implements UserCacheInterface
var _ UserCacheInterface = (*UserCache)(nil)

// NewUserCache creates a new user cache.
func NewUserCache(cache *cache.Client) *UserCache {
	return &UserCache{cache: cache}
}

// GetUser returns the cached user, or nil when missing or redis unavailable.
func (c *UserCache) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	data, err := c.cache.Get(ctx, userCacheKeyPrefix+id.String())
	if err != nil || data == nil {
		return nil, nil
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		// treat a corrupt entry as a miss
		return nil, nil
	}
	return &user, nil
}

// StoreUser caches the user's sanitized JSON form with a short TTL.
func (c *UserCache) StoreUser(ctx context.Context, user *model.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, userCacheKeyPrefix+user.ID.String(), payload, userCacheTTL)
}

// InvalidateUser drops the cached entry after any session mutation.
func (c *UserCache) InvalidateUser(ctx context.Context, id uuid.UUID) error {
	return c.cache.Delete(ctx, userCacheKeyPrefix+id.String())
}
