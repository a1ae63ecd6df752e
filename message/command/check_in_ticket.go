package command

import (
	"context"
	"fmt"

	"gatecheck/entities"
	"gatecheck/monitoring"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// maxDeliveries bounds how often a transiently failing command is
// redelivered. Together with the router's in-process retries this caps the
// total attempts for one queued check-in.
const maxDeliveries = 3

// HandleCheckInTicket runs one deferred check-in. Transient failures are
// returned for redelivery until the delivery budget is spent; after that,
// and for permanent rejections, a failure event is recorded and the message
// acked, because more retries cannot change the outcome and the attempt
// must not be dropped. Batch items additionally report their terminal
// outcome to the batch read model.
func (h Handler) HandleCheckInTicket(ctx context.Context, cmd *entities.CheckInTicket) error {
	result, err := h.coordinator.CheckIn(ctx, cmd.Request())

	if err != nil && !entities.IsPermanent(err) {
		deliveries, countErr := h.deliveries.BumpDeliveries(ctx, cmd.Header.ID)
		if countErr == nil && deliveries < maxDeliveries {
			return err
		}
		// Budget spent, or the counter is unreachable. Either way the
		// retry loop must end here; the failure record below keeps the
		// attempt from vanishing.
		log.FromContext(ctx).
			WithField("ticket_id", cmd.TicketID).
			WithField("deliveries", deliveries).
			Warn("Giving up on transiently failing check-in")
	}
	monitoring.TrackDequeued()

	if err != nil {
		failed := entities.CheckInFailed_v1{
			Header:            entities.NewEventHeaderWithIdempotencyKey(cmd.Header.IdempotencyKey),
			TicketID:          cmd.TicketID,
			EventID:           cmd.EventID,
			ActorID:           cmd.ActorID,
			EntryGate:         cmd.EntryGate,
			DeviceFingerprint: cmd.DeviceFingerprint,
			ObservedAt:        cmd.ObservedAt,
			Reason:            entities.ReasonForError(err),
			Error:             err.Error(),
		}
		if pubErr := h.eventBus.Publish(ctx, failed); pubErr != nil {
			return fmt.Errorf("failed to publish check-in failure: %w", pubErr)
		}
	}

	if cmd.BatchID != "" {
		item := entities.BatchItemProcessed_v1{
			Header:   entities.NewEventHeaderWithIdempotencyKey(cmd.Header.IdempotencyKey),
			BatchID:  cmd.BatchID,
			ItemID:   cmd.BatchItemID,
			TicketID: cmd.TicketID,
			Result:   result,
		}
		if pubErr := h.eventBus.Publish(ctx, item); pubErr != nil {
			return fmt.Errorf("failed to publish batch item outcome: %w", pubErr)
		}
	}

	return nil
}
