package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gatecheck/entities"
	"gatecheck/monitoring"

	"github.com/labstack/echo/v4"
)

type checkInRequest struct {
	TicketID          string     `json:"ticket_id"`
	EntryGate         string     `json:"entry_gate,omitempty"`
	DeviceFingerprint string     `json:"device_fingerprint,omitempty"`
	ObservedAt        *time.Time `json:"observed_at,omitempty"`
	Async             bool       `json:"async,omitempty"`
}

// PostCheckIn redeems a ticket. The synchronous path answers with the final
// outcome; with async set the check-in is queued for the worker and the
// caller gets 202 immediately. Queuing the same ticket twice is refused
// up front.
func (h Handler) PostCheckIn(c echo.Context) error {
	var request checkInRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if request.TicketID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "ticket_id is required")
	}

	observedAt := time.Now().UTC()
	if request.ObservedAt != nil {
		observedAt = request.ObservedAt.UTC()
	}

	req := entities.CheckInRequest{
		TicketID:          request.TicketID,
		ActorID:           actorID(c),
		EntryGate:         request.EntryGate,
		DeviceFingerprint: request.DeviceFingerprint,
		ObservedAt:        observedAt,
	}

	if request.Async {
		return h.queueCheckIn(c, req)
	}

	result, err := h.coordinator.CheckIn(c.Request().Context(), req)
	if err != nil {
		return c.JSON(statusForReason(result.Reason), result)
	}

	return c.JSON(http.StatusOK, result)
}

func (h Handler) queueCheckIn(c echo.Context, req entities.CheckInRequest) error {
	ctx := c.Request().Context()

	// The ticket must exist before we promise to process it, and the
	// failure record needs the event id.
	ticket, err := h.ticketRepo.FindByID(ctx, req.TicketID)
	if errors.Is(err, entities.ErrTicketNotFound) {
		return c.JSON(http.StatusNotFound, entities.CheckInResult{Reason: entities.ReasonNotFound})
	}
	if err != nil {
		return fmt.Errorf("failed loading ticket: %w", err)
	}

	acquired, err := h.markers.AcquireQueued(ctx, req.TicketID, req.ActorID)
	if err != nil {
		return fmt.Errorf("failed acquiring queue marker: %w", err)
	}
	if !acquired {
		return c.JSON(http.StatusAccepted, entities.CheckInResult{Queued: true})
	}

	cmd := entities.CheckInTicket{
		Header:            entities.NewEventHeader(),
		TicketID:          req.TicketID,
		EventID:           ticket.EventID,
		ActorID:           req.ActorID,
		EntryGate:         req.EntryGate,
		DeviceFingerprint: req.DeviceFingerprint,
		ObservedAt:        req.ObservedAt,
	}
	if err := h.cmdBus.Send(ctx, cmd); err != nil {
		return fmt.Errorf("failed to send check-in command: %w", err)
	}
	monitoring.TrackQueued()

	return c.JSON(http.StatusAccepted, entities.CheckInResult{Queued: true})
}
