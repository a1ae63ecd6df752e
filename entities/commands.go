package entities

import "time"

// CheckInTicket defers one check-in to the worker. The caller already placed
// an idempotency marker and answered "queued".
type CheckInTicket struct {
	Header EventHeader `json:"header"`

	TicketID          string    `json:"ticket_id"`
	EventID           string    `json:"event_id"`
	ActorID           string    `json:"actor_id"`
	EntryGate         string    `json:"entry_gate,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	ObservedAt        time.Time `json:"observed_at"`

	// BatchID and BatchItemID are set when the command is one item of a
	// batch submission. The item id keeps duplicate tickets within one
	// batch distinct in the read model.
	BatchID     string `json:"batch_id,omitempty"`
	BatchItemID string `json:"batch_item_id,omitempty"`
}

func (c CheckInTicket) Request() CheckInRequest {
	return CheckInRequest{
		TicketID:          c.TicketID,
		ActorID:           c.ActorID,
		EntryGate:         c.EntryGate,
		DeviceFingerprint: c.DeviceFingerprint,
		ObservedAt:        c.ObservedAt,
	}
}
