package http

import (
	"errors"
	"fmt"
	"net/http"

	"gatecheck/entities"
	"gatecheck/gate"

	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"
)

// GetManifest hands a signed ticket manifest to an authorized scanner for
// offline operation. The manifest comes from the server-side cache when
// fresh enough.
func (h Handler) GetManifest(c echo.Context) error {
	ctx := c.Request().Context()
	eventID := c.Param("event_id")

	allowed, err := h.permissionGate.CanManage(ctx, actorID(c), eventID, gate.CapabilityValidate)
	if err != nil {
		return fmt.Errorf("failed checking permission: %w", err)
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to fetch this manifest")
	}

	manifest, err := h.manifests.Cached(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed building manifest: %w", err)
	}

	return c.JSON(http.StatusOK, manifest)
}

// GetTicketQR renders the signed scan token of a ticket as a QR PNG.
func (h Handler) GetTicketQR(c echo.Context) error {
	ctx := c.Request().Context()
	eventID := c.Param("event_id")
	ticketID := c.Param("ticket_id")

	allowed, err := h.permissionGate.CanManage(ctx, actorID(c), eventID, gate.CapabilityValidate)
	if err != nil {
		return fmt.Errorf("failed checking permission: %w", err)
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to issue tokens for this event")
	}

	ticket, err := h.ticketRepo.FindByID(ctx, ticketID)
	if errors.Is(err, entities.ErrTicketNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
	}
	if err != nil {
		return fmt.Errorf("failed loading ticket: %w", err)
	}
	if ticket.EventID != eventID {
		return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
	}

	token, err := h.tokens.Issue(ctx, ticket)
	if err != nil {
		return fmt.Errorf("failed issuing scan token: %w", err)
	}

	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed encoding QR: %w", err)
	}

	return c.Blob(http.StatusOK, "image/png", png)
}
