package http

import (
	"net/http"

	libHttp "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func NewHttpRouter(
	cmdBus *cqrs.CommandBus,
	validator Validator,
	coordinator CheckInCoordinator,
	ticketRepo TicketRepository,
	manifests ManifestBuilder,
	permissionGate PermissionGate,
	tokens TokenIssuer,
	markers QueueMarker,
	statsCache StatsCache,
	batchReadModel BatchReadModel,
	pendingRepo PendingCheckIns,
	jwtSecret string,
) *echo.Echo {
	e := libHttp.NewEcho()

	e.Use(otelecho.Middleware("gatecheck"))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handler := Handler{
		cmdBus:         cmdBus,
		validator:      validator,
		coordinator:    coordinator,
		ticketRepo:     ticketRepo,
		manifests:      manifests,
		permissionGate: permissionGate,
		tokens:         tokens,
		markers:        markers,
		statsCache:     statsCache,
		batchReadModel: batchReadModel,
		pendingRepo:    pendingRepo,
	}

	authed := e.Group("", ActorAuth(jwtSecret))

	authed.POST("/tickets/validate", handler.PostValidate)
	authed.POST("/tickets/check-in", handler.PostCheckIn)
	authed.POST("/tickets/check-in/batch", handler.PostCheckInBatch)
	authed.GET("/tickets/check-in/batch/:batch_id", handler.GetCheckInBatch)
	authed.GET("/events/:event_id/manifest", handler.GetManifest)
	authed.GET("/events/:event_id/tickets/:ticket_id/qr", handler.GetTicketQR)
	authed.GET("/events/:event_id/check-in-stats", handler.GetCheckInStats)
	authed.GET("/check-ins/failed", handler.GetFailedCheckIns)
	authed.POST("/check-ins/:checkin_id/resolve", handler.PostResolveCheckIn)

	return e
}
