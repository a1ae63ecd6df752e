package event

import (
	"context"

	"gatecheck/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
)

// OnTicketCheckedIn reacts to a redeemed ticket: the cached statistics for
// the event are stale from this moment.
func (h Handler) OnTicketCheckedIn(ctx context.Context, event *entities.TicketCheckedIn_v1) error {
	log.FromContext(ctx).WithFields(logrus.Fields{
		"ticket_id": event.TicketID,
		"event_id":  event.EventID,
		"actor_id":  event.ActorID,
		"gate":      event.EntryGate,
	}).Info("Ticket checked in")

	h.statsCache.Invalidate(ctx, event.EventID)

	return nil
}
