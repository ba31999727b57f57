package matchsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/interfaces"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultCacheTTL = 2 * time.Minute

	cacheKeyPrefix = "watchparty:matches"
)

// CacheMetrics receives cache hit and miss counts
type CacheMetrics interface {
	RecordMatchCacheLookup(hit bool)
}

// CachedSource caches schedule lookups of another source in Redis.
// Status refreshes always reach the wrapped source. Redis failures fall through to it.
type CachedSource struct {
	inner   interfaces.MatchDataSource
	client  *redis.Client
	ttl     time.Duration
	metrics CacheMetrics
}

// NewCachedSource creates a Redis backed cache in front of inner. metrics may be nil.
func NewCachedSource(inner interfaces.MatchDataSource, client *redis.Client, ttl time.Duration, metrics CacheMetrics) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
	}
}

// NextMatchForTeam returns the next match of a team
func (c *CachedSource) NextMatchForTeam(ctx context.Context, team string) (*entities.Match, error) {
	return cachedLookup(ctx, c, cacheKey("next", "team", team), func() (*entities.Match, error) {
		return c.inner.NextMatchForTeam(ctx, team)
	})
}

// NextMatchForTournament returns the next match of a tournament
func (c *CachedSource) NextMatchForTournament(ctx context.Context, tournament string) (*entities.Match, error) {
	return cachedLookup(ctx, c, cacheKey("next", "tournament", tournament), func() (*entities.Match, error) {
		return c.inner.NextMatchForTournament(ctx, tournament)
	})
}

// UpcomingMatchesForTeam returns the upcoming matches of a team
func (c *CachedSource) UpcomingMatchesForTeam(ctx context.Context, team string) ([]*entities.Match, error) {
	return cachedLookup(ctx, c, cacheKey("upcoming", "team", team), func() ([]*entities.Match, error) {
		return c.inner.UpcomingMatchesForTeam(ctx, team)
	})
}

// UpcomingMatchesForTournament returns the upcoming matches of a tournament
func (c *CachedSource) UpcomingMatchesForTournament(ctx context.Context, tournament string) ([]*entities.Match, error) {
	return cachedLookup(ctx, c, cacheKey("upcoming", "tournament", tournament), func() ([]*entities.Match, error) {
		return c.inner.UpcomingMatchesForTournament(ctx, tournament)
	})
}

// RefreshStatus bypasses the cache
func (c *CachedSource) RefreshStatus(ctx context.Context, match *entities.Match) error {
	return c.inner.RefreshStatus(ctx, match)
}

// Invalidate drops every cached lookup
func (c *CachedSource) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan match cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear match cache: %w", err)
	}
	return nil
}

func cacheKey(lookup, kind, target string) string {
	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyPrefix, lookup, kind, strings.ToLower(strings.TrimSpace(target)))
}

// cachedLookup serves a lookup from Redis, filling the entry from fetch on a miss.
// A cached nil result is a valid hit.
func cachedLookup[T any](ctx context.Context, c *CachedSource, key string, fetch func() (T, error)) (T, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var value T
		jsonErr := json.Unmarshal(data, &value)
		if jsonErr == nil {
			c.recordLookup(true)
			return value, nil
		}
		log.WithError(jsonErr).WithField("key", key).Warn("Discarding unreadable match cache entry")
	case !errors.Is(err, redis.Nil):
		log.WithError(err).WithField("key", key).Warn("Match cache read failed")
	}
	c.recordLookup(false)

	value, err := fetch()
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("Failed to encode match cache entry")
		return value, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("Match cache write failed")
	}
	return value, nil
}

func (c *CachedSource) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordMatchCacheLookup(hit)
	}
}

var _ interfaces.MatchDataSource = (*CachedSource)(nil)
