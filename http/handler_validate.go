package http

import (
	"fmt"
	"net/http"
	"time"

	"gatecheck/monitoring"

	"github.com/labstack/echo/v4"
)

type validateRequest struct {
	Token string `json:"token"`
}

// PostValidate answers whether the presented token belongs to a redeemable
// ticket. Nothing is mutated; validating twice gives the same answer.
func (h Handler) PostValidate(c echo.Context) error {
	var request validateRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if request.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}

	started := time.Now()
	result, err := h.validator.Validate(c.Request().Context(), request.Token, actorID(c))
	if err != nil {
		return fmt.Errorf("failed validating token: %w", err)
	}

	decision := result.Reason
	if result.Accepted {
		decision = "accepted"
	}
	monitoring.TrackValidation(decision, time.Since(started))

	if !result.Accepted {
		return c.JSON(statusForReason(result.Reason), result)
	}

	return c.JSON(http.StatusOK, result)
}
