package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gatecheck/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

const statsKeyPrefix = "stats:"

// StatsCache keeps event check-in aggregates hot between invalidations.
// Every successful check-in drops the event's entry.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatsCache(rdb *redis.Client, ttl time.Duration) StatsCache {
	return StatsCache{rdb: rdb, ttl: ttl}
}

func (c StatsCache) Get(ctx context.Context, eventID string) (entities.EventStats, bool) {
	if c.rdb == nil {
		return entities.EventStats{}, false
	}
	payload, err := c.rdb.Get(ctx, statsKeyPrefix+eventID).Bytes()
	if errors.Is(err, redis.Nil) {
		return entities.EventStats{}, false
	}
	if err != nil {
		log.FromContext(ctx).WithError(err).Warn("Stats cache read failed")
		return entities.EventStats{}, false
	}

	var stats entities.EventStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return entities.EventStats{}, false
	}
	return stats, true
}

func (c StatsCache) Set(ctx context.Context, stats entities.EventStats) {
	if c.rdb == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, statsKeyPrefix+stats.EventID, payload, c.ttl).Err(); err != nil {
		log.FromContext(ctx).WithError(err).Warn("Stats cache write failed")
	}
}

func (c StatsCache) Invalidate(ctx context.Context, eventID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, statsKeyPrefix+eventID).Err(); err != nil {
		log.FromContext(ctx).WithError(err).Warn("Stats cache invalidation failed")
	}
}
