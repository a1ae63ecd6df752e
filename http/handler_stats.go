package http

import (
	"fmt"
	"net/http"

	"gatecheck/gate"

	"github.com/labstack/echo/v4"
)

// GetCheckInStats returns the aggregate check-in counters for an event.
// The short-lived cache keeps dashboard polling off the tickets table.
func (h Handler) GetCheckInStats(c echo.Context) error {
	ctx := c.Request().Context()
	eventID := c.Param("event_id")

	allowed, err := h.permissionGate.CanManage(ctx, actorID(c), eventID, gate.CapabilityValidate)
	if err != nil {
		return fmt.Errorf("failed checking permission: %w", err)
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to view these stats")
	}

	if stats, ok := h.statsCache.Get(ctx, eventID); ok {
		return c.JSON(http.StatusOK, stats)
	}

	stats, err := h.ticketRepo.Stats(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed computing stats: %w", err)
	}
	h.statsCache.Set(ctx, stats)

	return c.JSON(http.StatusOK, stats)
}
