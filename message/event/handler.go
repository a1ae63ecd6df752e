package event

import (
	"context"

	"gatecheck/entities"
)

type PendingCheckInRepository interface {
	Create(ctx context.Context, pending entities.PendingCheckIn) error
}

type StatsCache interface {
	Invalidate(ctx context.Context, eventID string)
}

type Handler struct {
	pendingRepo PendingCheckInRepository
	statsCache  StatsCache
}

func NewHandler(pendingRepo PendingCheckInRepository, statsCache StatsCache) Handler {
	if pendingRepo == nil {
		panic("missing pendingRepo")
	}
	if statsCache == nil {
		panic("missing statsCache")
	}
	return Handler{
		pendingRepo: pendingRepo,
		statsCache:  statsCache,
	}
}
