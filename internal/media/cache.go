package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedSearcher keeps search results in redis for ttl. Cache failures fall
// through to the wrapped searcher.
type CachedSearcher struct {
	next Searcher
	rdb  *redis.Client
	ttl  time.Duration
	log  *slog.Logger
}

func NewCachedSearcher(next Searcher, rdb *redis.Client, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  slog.With("component", "media-cache"),
	}
}

func cacheKey(query string, limit int) string {
	return fmt.Sprintf("media:search:%d:%s", limit, strings.ToLower(strings.TrimSpace(query)))
}

func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	limit = ClampLimit(limit)
	key := cacheKey(query, limit)

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var items []Item
			if err := json.Unmarshal(data, &items); err == nil {
				return items, nil
			}
		case !errors.Is(err, redis.Nil):
			c.log.Warn("cache read", "error", err)
		}
	}

	items, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil && c.ttl > 0 {
		if data, err := json.Marshal(items); err == nil {
			if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.log.Warn("cache write", "error", err)
			}
		}
	}
	return items, nil
}
