package event

import (
	"context"
	"fmt"

	"gatecheck/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// OnCheckInFailed records an exhausted queued check-in for manual review.
// The worker already gave up; losing this record would lose the attempt
// entirely. The idempotency key doubles as primary key so redeliveries
// insert nothing new.
func (h Handler) OnCheckInFailed(ctx context.Context, event *entities.CheckInFailed_v1) error {
	log.FromContext(ctx).
		WithField("ticket_id", event.TicketID).
		WithField("reason", event.Reason).
		Warn("Queued check-in failed")

	err := h.pendingRepo.Create(ctx, entities.PendingCheckIn{
		CheckInID:         event.Header.IdempotencyKey,
		TicketID:          event.TicketID,
		EventID:           event.EventID,
		ActorID:           event.ActorID,
		EntryGate:         event.EntryGate,
		DeviceFingerprint: event.DeviceFingerprint,
		ObservedAt:        event.ObservedAt,
		SyncStatus:        entities.SyncStatusFailed,
		LastError:         event.Error,
	})
	if err != nil {
		return fmt.Errorf("failed to record failed check-in: %w", err)
	}

	return nil
}
