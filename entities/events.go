package entities

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: uuid.NewString(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// IEvent is implemented by every published event so topic generation can
// tell service-internal events from the shared stream.
type IEvent interface {
	IsInternal() bool
}

// TicketCheckedIn_v1 is published through the transactional outbox in the
// same transaction as the valid -> used write.
type TicketCheckedIn_v1 struct {
	Header EventHeader `json:"header"`

	TicketID          string    `json:"ticket_id"`
	EventID           string    `json:"event_id"`
	ActorID           string    `json:"actor_id"`
	EntryGate         string    `json:"entry_gate,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	CheckedInAt       time.Time `json:"checked_in_at"`
	Version           int       `json:"version"`
}

func (TicketCheckedIn_v1) IsInternal() bool { return false }

// CheckInFailed_v1 records a queued check-in whose retry budget ran out. The
// handler persists it as a failed pending check-in for manual review.
type CheckInFailed_v1 struct {
	Header EventHeader `json:"header"`

	TicketID          string    `json:"ticket_id"`
	EventID           string    `json:"event_id"`
	ActorID           string    `json:"actor_id"`
	EntryGate         string    `json:"entry_gate,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	ObservedAt        time.Time `json:"observed_at"`
	Reason            string    `json:"reason"`
	Error             string    `json:"error"`
}

func (CheckInFailed_v1) IsInternal() bool { return true }

// BatchItemProcessed_v1 updates the batch read model as each item of a batch
// reaches a terminal outcome.
type BatchItemProcessed_v1 struct {
	Header EventHeader `json:"header"`

	BatchID  string        `json:"batch_id"`
	ItemID   string        `json:"item_id"`
	TicketID string        `json:"ticket_id"`
	Result   CheckInResult `json:"result"`
}

func (BatchItemProcessed_v1) IsInternal() bool { return true }
