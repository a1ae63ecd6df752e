package entities

import (
	"time"

	"github.com/lib/pq"
)

// ScanPermission binds an actor to an organizer's events. An empty EventIDs
// list means "all events of the organizer". The validity window is optional;
// a nil bound is open-ended on that side.
type ScanPermission struct {
	PermissionID string         `json:"permission_id" db:"permission_id"`
	ActorID      string         `json:"actor_id" db:"actor_id"`
	OrganizerID  string         `json:"organizer_id" db:"organizer_id"`
	EventIDs     pq.StringArray `json:"event_ids" db:"event_ids"`
	CanScan      bool           `json:"can_scan" db:"can_scan"`
	CanValidate  bool           `json:"can_validate" db:"can_validate"`
	ValidFrom    *time.Time     `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil   *time.Time     `json:"valid_until,omitempty" db:"valid_until"`
	RevokedAt    *time.Time     `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Covers reports whether the grant applies to the given event at the given
// instant. Revocation and the validity window are checked here; ownership is
// the gate's concern.
func (p ScanPermission) Covers(eventID string, now time.Time) bool {
	if p.RevokedAt != nil && !now.Before(*p.RevokedAt) {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	if len(p.EventIDs) == 0 {
		return true
	}
	for _, id := range p.EventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}
