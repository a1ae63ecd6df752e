package http

import (
	"context"

	"gatecheck/entities"
	"gatecheck/gate"
	"gatecheck/validation"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
)

type Handler struct {
	cmdBus         *cqrs.CommandBus
	validator      Validator
	coordinator    CheckInCoordinator
	ticketRepo     TicketRepository
	manifests      ManifestBuilder
	permissionGate PermissionGate
	tokens         TokenIssuer
	markers        QueueMarker
	statsCache     StatsCache
	batchReadModel BatchReadModel
	pendingRepo    PendingCheckIns
}

type Validator interface {
	Validate(ctx context.Context, rawToken, actorID string) (validation.Result, error)
}

type CheckInCoordinator interface {
	CheckIn(ctx context.Context, req entities.CheckInRequest) (entities.CheckInResult, error)
}

type TicketRepository interface {
	FindByID(ctx context.Context, ticketID string) (entities.Ticket, error)
	Stats(ctx context.Context, eventID string) (entities.EventStats, error)
}

type ManifestBuilder interface {
	Cached(ctx context.Context, eventID string) (entities.Manifest, error)
}

type PermissionGate interface {
	CanManage(ctx context.Context, actorID, eventID string, capability gate.Capability) (bool, error)
}

type TokenIssuer interface {
	Issue(ctx context.Context, ticket entities.Ticket) (string, error)
}

type QueueMarker interface {
	AcquireQueued(ctx context.Context, ticketID, actorID string) (bool, error)
}

type StatsCache interface {
	Get(ctx context.Context, eventID string) (entities.EventStats, bool)
	Set(ctx context.Context, stats entities.EventStats)
}

type BatchReadModel interface {
	Create(ctx context.Context, batchID string, count int) error
	GetByID(ctx context.Context, batchID string) (entities.CheckInBatch, error)
	OnBatchItemProcessed(ctx context.Context, event *entities.BatchItemProcessed_v1) error
}

type PendingCheckIns interface {
	ListFailed(ctx context.Context) ([]entities.PendingCheckIn, error)
	MarkCompleted(ctx context.Context, checkinID string) error
}
