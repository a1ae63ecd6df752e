package command

import (
	"context"

	"gatecheck/entities"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
)

type CheckInCoordinator interface {
	CheckIn(ctx context.Context, req entities.CheckInRequest) (entities.CheckInResult, error)
}

// DeliveryCounter tracks how many times one command was delivered to the
// worker, so transient failures stop being redelivered once the budget is
// spent.
type DeliveryCounter interface {
	BumpDeliveries(ctx context.Context, commandID string) (int, error)
}

type Handler struct {
	coordinator CheckInCoordinator
	eventBus    *cqrs.EventBus
	deliveries  DeliveryCounter
}

func NewHandler(coordinator CheckInCoordinator, eventBus *cqrs.EventBus, deliveries DeliveryCounter) Handler {
	if coordinator == nil {
		panic("coordinator is required")
	}
	if eventBus == nil {
		panic("eventBus is required")
	}
	if deliveries == nil {
		panic("deliveries counter is required")
	}

	return Handler{
		coordinator: coordinator,
		eventBus:    eventBus,
		deliveries:  deliveries,
	}
}
