package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatecheck/db"
	"gatecheck/entities"
)

type EventRepository interface {
	FindByID(ctx context.Context, eventID string) (db.Event, error)
}

type PermissionRepository interface {
	ActiveForActor(ctx context.Context, actorID, organizerID string) ([]entities.ScanPermission, error)
}

// Capability distinguishes read-only validation from the mutating check-in
// path. Grants carry separate flags for the two.
type Capability int

const (
	CapabilityValidate Capability = iota
	CapabilityScan
)

// Gate is the single place authorization is decided. Validation, check-in,
// manifest fetch and statistics all ask here, so the rules cannot drift
// apart per endpoint.
type Gate struct {
	events      EventRepository
	permissions PermissionRepository
}

func NewGate(events EventRepository, permissions PermissionRepository) Gate {
	if events == nil {
		panic("events repository is required")
	}
	if permissions == nil {
		panic("permissions repository is required")
	}
	return Gate{
		events:      events,
		permissions: permissions,
	}
}

// CanManage reports whether the actor may act on the event's tickets with
// the given capability. Denial is a value, not an error: false with a nil
// error means "forbidden".
func (g Gate) CanManage(ctx context.Context, actorID, eventID string, capability Capability) (bool, error) {
	event, err := g.events.FindByID(ctx, eventID)
	if errors.Is(err, db.ErrEventNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not resolve event for permission check: %w", err)
	}

	if event.OwnerID == actorID {
		return true, nil
	}

	permissions, err := g.permissions.ActiveForActor(ctx, actorID, event.OrganizerID)
	if err != nil {
		return false, fmt.Errorf("could not load scan permissions: %w", err)
	}

	now := time.Now().UTC()
	for _, permission := range permissions {
		if !permission.Covers(eventID, now) {
			continue
		}
		switch capability {
		case CapabilityScan:
			if permission.CanScan {
				return true, nil
			}
		case CapabilityValidate:
			// A scan grant implies validation.
			if permission.CanValidate || permission.CanScan {
				return true, nil
			}
		}
	}

	return false, nil
}
