package http

import (
	"fmt"
	"net/http"

	"gatecheck/entities"

	"github.com/labstack/echo/v4"
)

type failedCheckInsResponse struct {
	CheckIns []entities.PendingCheckIn `json:"check_ins"`
}

// GetFailedCheckIns lists queued check-ins whose retry budget ran out. The
// dead-letter table is an operator surface; entries stay until resolved.
func (h Handler) GetFailedCheckIns(c echo.Context) error {
	pending, err := h.pendingRepo.ListFailed(c.Request().Context())
	if err != nil {
		return fmt.Errorf("failed listing dead-lettered check-ins: %w", err)
	}

	return c.JSON(http.StatusOK, failedCheckInsResponse{CheckIns: pending})
}

// PostResolveCheckIn marks a dead-lettered check-in as handled after an
// operator reconciled it out of band.
func (h Handler) PostResolveCheckIn(c echo.Context) error {
	checkinID := c.Param("checkin_id")
	if err := h.pendingRepo.MarkCompleted(c.Request().Context(), checkinID); err != nil {
		return fmt.Errorf("failed resolving check-in %s: %w", checkinID, err)
	}

	return c.NoContent(http.StatusNoContent)
}
