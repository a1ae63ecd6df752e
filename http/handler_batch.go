package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gatecheck/db"
	"gatecheck/entities"
	"gatecheck/monitoring"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type batchCheckInRequest struct {
	Items []batchCheckInItem `json:"items"`
}

type batchCheckInItem struct {
	TicketID          string     `json:"ticket_id"`
	EntryGate         string     `json:"entry_gate,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	ObservedAt        *time.Time `json:"observed_at,omitempty"`
}

type batchCheckInResponse struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

// PostCheckInBatch queues every item of the batch for the worker. Items are
// independent; one rejected ticket never blocks the rest. The returned batch
// id can be polled for per-item outcomes.
func (h Handler) PostCheckInBatch(c echo.Context) error {
	var request batchCheckInRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if len(request.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "items are required")
	}

	ctx := c.Request().Context()
	actor := actorID(c)
	batchID := uuid.NewString()

	if err := h.batchReadModel.Create(ctx, batchID, len(request.Items)); err != nil {
		return fmt.Errorf("failed creating batch: %w", err)
	}

	for _, item := range request.Items {
		observedAt := time.Now().UTC()
		if item.ObservedAt != nil {
			observedAt = item.ObservedAt.UTC()
		}

		cmd := entities.CheckInTicket{
			Header:            entities.NewEventHeader(),
			TicketID:          item.TicketID,
			ActorID:           actor,
			EntryGate:         item.EntryGate,
			DeviceFingerprint: item.DeviceFingerprint,
			ObservedAt:        observedAt,
			BatchID:           batchID,
			BatchItemID:       uuid.NewString(),
		}

		if ticket, err := h.ticketRepo.FindByID(ctx, item.TicketID); err == nil {
			cmd.EventID = ticket.EventID
		}

		acquired, err := h.markers.AcquireQueued(ctx, item.TicketID, actor)
		if err != nil {
			return fmt.Errorf("failed acquiring queue marker: %w", err)
		}
		if !acquired {
			// An earlier submission already owns this ticket's queue slot.
			// The item still needs a terminal outcome here, or the batch
			// would wait forever for a command that was never sent.
			outcome := &entities.BatchItemProcessed_v1{
				Header:   entities.NewEventHeader(),
				BatchID:  batchID,
				ItemID:   cmd.BatchItemID,
				TicketID: item.TicketID,
				Result:   entities.CheckInResult{Queued: true},
			}
			if err := h.batchReadModel.OnBatchItemProcessed(ctx, outcome); err != nil {
				return fmt.Errorf("failed recording deduplicated batch item: %w", err)
			}
			continue
		}

		if err := h.cmdBus.Send(ctx, cmd); err != nil {
			return fmt.Errorf("failed to send check-in command: %w", err)
		}
		monitoring.TrackQueued()
	}

	return c.JSON(http.StatusAccepted, batchCheckInResponse{BatchID: batchID, Count: len(request.Items)})
}

func (h Handler) GetCheckInBatch(c echo.Context) error {
	batch, err := h.batchReadModel.GetByID(c.Request().Context(), c.Param("batch_id"))
	if errors.Is(err, db.ErrBatchNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	if err != nil {
		return fmt.Errorf("failed getting batch: %w", err)
	}

	return c.JSON(http.StatusOK, batch)
}
