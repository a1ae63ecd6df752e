package entities

import "time"

type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// CheckInRequest describes one attempt to redeem a ticket.
type CheckInRequest struct {
	TicketID          string    `json:"ticket_id"`
	ActorID           string    `json:"actor_id"`
	EntryGate         string    `json:"entry_gate,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	ObservedAt        time.Time `json:"observed_at"`
}

type CheckInResult struct {
	Success bool           `json:"success"`
	Queued  bool           `json:"queued,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Ticket  *TicketSummary `json:"ticket,omitempty"`
}

// PendingCheckIn is a check-in attempt not yet confirmed by the server. On
// the server it is the dead-letter audit record of an exhausted worker; on a
// device it is an entry of the durable offline queue.
type PendingCheckIn struct {
	CheckInID         string     `json:"checkin_id" db:"checkin_id"`
	TicketID          string     `json:"ticket_id" db:"ticket_id"`
	EventID           string     `json:"event_id" db:"event_id"`
	ActorID           string     `json:"actor_id" db:"actor_id"`
	EntryGate         string     `json:"entry_gate" db:"entry_gate"`
	DeviceFingerprint string     `json:"device_fingerprint" db:"device_fingerprint"`
	ObservedAt        time.Time  `json:"observed_at" db:"observed_at"`
	SyncStatus        SyncStatus `json:"sync_status" db:"sync_status"`
	Attempts          int        `json:"attempts" db:"attempts"`
	LastError         string     `json:"last_error" db:"last_error"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// BatchItemOutcome is the terminal result of one batch item. Items carry
// their own id so a batch listing the same ticket twice still converges.
type BatchItemOutcome struct {
	TicketID string        `json:"ticket_id"`
	Result   CheckInResult `json:"result"`
}

// CheckInBatch is the read model of one batch submission. Items are keyed by
// item id; the batch is completed once every item reached a terminal
// outcome. A single item's failure never aborts the rest.
type CheckInBatch struct {
	BatchID    string                      `json:"batch_id"`
	Status     string                      `json:"status"`
	Count      int                         `json:"count"`
	Items      map[string]BatchItemOutcome `json:"items"`
	CreatedAt  time.Time                   `json:"created_at"`
	LastUpdate time.Time                   `json:"last_update"`
}

// EventStats is the aggregate returned by the check-in statistics endpoint.
type EventStats struct {
	EventID   string         `json:"event_id"`
	Total     int            `json:"total"`
	CheckedIn int            `json:"checked_in"`
	Remaining int            `json:"remaining"`
	Cancelled int            `json:"cancelled"`
	PerGate   map[string]int `json:"per_gate_breakdown"`
}
