package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

const (
	queuedKeyPrefix   = "checkin:queued:"
	doneKeyPrefix     = "checkin:done:"
	deliveryKeyPrefix = "checkin:deliveries:"
)

// Marker holds the short-TTL idempotency flags. It deduplicates
// near-simultaneous duplicate submissions only; the ticket row stays the
// system of record, so a lost marker merely costs one extra row touch.
type Marker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewMarker(rdb *redis.Client, ttl time.Duration) Marker {
	return Marker{rdb: rdb, ttl: ttl}
}

// AcquireQueued flags a ticket as queued for async processing. A second
// enqueue attempt while the flag lives gets false and must not enqueue
// again.
func (m Marker) AcquireQueued(ctx context.Context, ticketID, actorID string) (bool, error) {
	if m.rdb == nil {
		return true, nil
	}
	ok, err := m.rdb.SetNX(ctx, queuedKeyPrefix+ticketID, actorID, m.ttl).Result()
	if err != nil {
		// Advisory only: losing the marker degrades to one redundant
		// command, which the coordinator absorbs idempotently.
		log.FromContext(ctx).WithError(err).Warn("Idempotency marker write failed")
		return true, nil
	}
	return ok, nil
}

// MarkDone records a completed check-in so an immediate duplicate from the
// same actor short-circuits without re-touching the row.
func (m Marker) MarkDone(ctx context.Context, ticketID, actorID string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Set(ctx, doneKeyPrefix+ticketID, actorID, m.ttl).Err(); err != nil {
		log.FromContext(ctx).WithError(err).Warn("Idempotency marker write failed")
	}
}

// BumpDeliveries counts worker deliveries of one queued command. The count
// bounds the total retry budget across redeliveries; an error here must
// make the caller give up, not retry, or the bound is gone.
func (m Marker) BumpDeliveries(ctx context.Context, commandID string) (int, error) {
	if m.rdb == nil {
		return 0, errors.New("no marker store configured")
	}
	count, err := m.rdb.Incr(ctx, deliveryKeyPrefix+commandID).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := m.rdb.Expire(ctx, deliveryKeyPrefix+commandID, m.ttl).Err(); err != nil {
			log.FromContext(ctx).WithError(err).Warn("Delivery counter expiry failed")
		}
	}
	return int(count), nil
}

// DoneBy returns the actor recorded by MarkDone, or "" when no marker
// exists.
func (m Marker) DoneBy(ctx context.Context, ticketID string) string {
	if m.rdb == nil {
		return ""
	}
	actor, err := m.rdb.Get(ctx, doneKeyPrefix+ticketID).Result()
	if errors.Is(err, redis.Nil) {
		return ""
	}
	if err != nil {
		log.FromContext(ctx).WithError(err).Warn("Idempotency marker read failed")
		return ""
	}
	return actor
}
