package mentor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const mentorCachePrefix = "mentor:"

// CachedProvider memoises another Provider's answers in Redis for ttl.
// Redis failures fall through to the wrapped provider.
type CachedProvider struct {
	next  Provider
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedProvider wraps next with a Redis cache.
func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, redis: client, ttl: ttl}
}

func cacheKey(actorID primitive.ObjectID) string {
	return mentorCachePrefix + actorID.Hex()
}

func (p *CachedProvider) IsMentor(ctx context.Context, actorID primitive.ObjectID) (bool, error) {
	key := cacheKey(actorID)

	cached, err := p.redis.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}

	ok, err := p.next.IsMentor(ctx, actorID)
	if err != nil {
		return false, err
	}

	value := "0"
	if ok {
		value = "1"
	}
	// Best effort; a failed write only costs another registry lookup.
	_ = p.redis.Set(ctx, key, value, p.ttl).Err()
	return ok, nil
}

// Invalidate drops the cached answer for actorID, e.g. after the registry
// entry changes.
func (p *CachedProvider) Invalidate(ctx context.Context, actorID primitive.ObjectID) error {
	return p.redis.Del(ctx, cacheKey(actorID)).Err()
}
