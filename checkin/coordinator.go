package checkin

import (
	"context"
	"errors"
	"time"

	"gatecheck/entities"
	"gatecheck/gate"
	"gatecheck/monitoring"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

type TicketRepository interface {
	FindByID(ctx context.Context, ticketID string) (entities.Ticket, error)
	Redeem(ctx context.Context, req entities.CheckInRequest) (ticket entities.Ticket, fresh bool, err error)
}

type PermissionGate interface {
	CanManage(ctx context.Context, actorID, eventID string, capability gate.Capability) (bool, error)
}

// Coordinator owns the valid -> used transition. The row-level lock and the
// version-conditioned write live in the repository; the coordinator adds the
// permission check, the idempotency markers, and the bounded jittered retry
// around version races.
type Coordinator struct {
	tickets     TicketRepository
	gate        PermissionGate
	markers     Marker
	statsCache  StatsCache
	maxRetries  uint64
	callTimeout time.Duration
}

func NewCoordinator(
	tickets TicketRepository,
	permissionGate PermissionGate,
	markers Marker,
	statsCache StatsCache,
	maxRetries uint64,
	callTimeout time.Duration,
) Coordinator {
	if tickets == nil {
		panic("tickets repository is required")
	}
	if permissionGate == nil {
		panic("permission gate is required")
	}
	return Coordinator{
		tickets:     tickets,
		gate:        permissionGate,
		markers:     markers,
		statsCache:  statsCache,
		maxRetries:  maxRetries,
		callTimeout: callTimeout,
	}
}

// CheckIn redeems the ticket exactly once. The same actor repeating the call
// gets the same success; a different actor gets ConflictError. Transient
// version races are retried with jittered exponential backoff up to the
// configured budget, then surface as TransientError.
func (c Coordinator) CheckIn(ctx context.Context, req entities.CheckInRequest) (entities.CheckInResult, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	// Near-simultaneous duplicate from the same actor: short-circuit
	// without touching the row. The marker is only written after a
	// successful redeem, so it can never mask an unfinished one.
	if c.markers.DoneBy(ctx, req.TicketID) == req.ActorID && req.ActorID != "" {
		monitoring.TrackCheckIn("idempotent")
		return entities.CheckInResult{Success: true}, nil
	}

	// The event id comes from the row, so a forged request body cannot
	// shift the permission scope.
	ticket, err := c.tickets.FindByID(ctx, req.TicketID)
	if err != nil {
		return ResultForError(err), err
	}

	allowed, err := c.gate.CanManage(ctx, req.ActorID, ticket.EventID, gate.CapabilityScan)
	if err != nil {
		err = entities.TransientError{Err: err}
		return ResultForError(err), err
	}
	if !allowed {
		monitoring.TrackCheckIn("forbidden")
		return ResultForError(entities.ErrForbidden), entities.ErrForbidden
	}

	var fresh bool
	operation := func() error {
		var redeemErr error
		ticket, fresh, redeemErr = c.tickets.Redeem(ctx, req)
		if redeemErr != nil && entities.IsPermanent(redeemErr) {
			return backoff.Permanent(redeemErr)
		}
		return redeemErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newRetryBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}

		var conflict entities.ConflictError
		if errors.As(err, &conflict) {
			monitoring.TrackCheckIn("conflict")
			log.FromContext(ctx).WithFields(logrus.Fields{
				"ticket_id":       conflict.TicketID,
				"winner_actor":    conflict.Winner,
				"losing_actor":    conflict.Loser,
				"winner_check_in": conflict.WonAt,
			}).Warn("Concurrent check-in by a different actor")
		} else {
			monitoring.TrackCheckIn(entities.ReasonForError(err))
		}

		return ResultForError(err), err
	}

	c.markers.MarkDone(ctx, req.TicketID, req.ActorID)

	if fresh {
		c.statsCache.Invalidate(ctx, ticket.EventID)
		monitoring.TrackCheckIn("success")
		log.FromContext(ctx).WithFields(logrus.Fields{
			"ticket_id": req.TicketID,
			"actor_id":  req.ActorID,
			"gate":      req.EntryGate,
			"version":   ticket.Version,
		}).Info("Ticket checked in")
	} else {
		monitoring.TrackCheckIn("idempotent")
	}

	summary := ticket.Summary()
	return entities.CheckInResult{Success: true, Ticket: &summary}, nil
}

// ResultForError translates a taxonomy error into the wire-level result.
func ResultForError(err error) entities.CheckInResult {
	if err == nil {
		return entities.CheckInResult{Success: true}
	}
	return entities.CheckInResult{Reason: entities.ReasonForError(err)}
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	// RandomizationFactor defaults to 0.5, which is the jitter the version
	// race needs so symmetric retries don't collide again.
	return b
}
