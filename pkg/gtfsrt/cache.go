package gtfsrt

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// FeedCache keeps rendered feeds in redis for one tick so that many readers
// don't each force a snapshot of the simulator. A nil FeedCache renders every time.
type FeedCache struct {
	cache *cache.Cache[string]
}

func NewFeedCache(client *redis.Client, expiration time.Duration) *FeedCache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &FeedCache{
		cache: cache.New[string](redisStore),
	}
}

func cacheKey(feed Feed, asJSON bool) string {
	format := "pb"
	if asJSON {
		format = "json"
	}
	return fmt.Sprintf("transitlive:gtfsrt:%s:%s", feed, format)
}

func (c *FeedCache) GetOrRender(ctx context.Context, feed Feed, asJSON bool, render func() ([]byte, error)) ([]byte, error) {
	if c == nil {
		return render()
	}

	key := cacheKey(feed, asJSON)

	if cached, err := c.cache.Get(ctx, key); err == nil && cached != "" {
		return []byte(cached), nil
	}

	rendered, err := render()
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, string(rendered)); err != nil {
		log.Error().Err(err).Str("feed", string(feed)).Msg("Failed to cache GTFS-RT feed")
	}

	return rendered, nil
}
