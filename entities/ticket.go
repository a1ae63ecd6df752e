package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketStatusValid       TicketStatus = "valid"
	TicketStatusUsed        TicketStatus = "used"
	TicketStatusCancelled   TicketStatus = "cancelled"
	TicketStatusTransferred TicketStatus = "transferred"
)

type Money struct {
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`
}

type Ticket struct {
	TicketID    string `json:"ticket_id" db:"ticket_id"`
	EventID     string `json:"event_id" db:"event_id"`
	BookingID   string `json:"booking_id" db:"booking_id"`
	Code        string `json:"code" db:"code"`
	HolderName  string `json:"holder_name" db:"holder_name"`
	HolderEmail string `json:"holder_email" db:"holder_email"`
	Price       Money  `json:"price" db:"price"`
	SeatLabel   string `json:"seat_label" db:"seat_label"`

	Status  TicketStatus `json:"status" db:"status"`
	Version int          `json:"version" db:"version"`

	// Populated only on the valid -> used transition.
	UsedAt            *time.Time `json:"used_at,omitempty" db:"used_at"`
	UsedBy            *string    `json:"used_by,omitempty" db:"used_by"`
	EntryGate         *string    `json:"entry_gate,omitempty" db:"entry_gate"`
	DeviceFingerprint *string    `json:"device_fingerprint,omitempty" db:"device_fingerprint"`

	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// TicketSummary is what a scanner UI needs after a decision, without leaking
// holder contact details into device logs.
type TicketSummary struct {
	TicketID   string       `json:"ticket_id"`
	EventID    string       `json:"event_id"`
	Code       string       `json:"code"`
	HolderName string       `json:"holder_name"`
	SeatLabel  string       `json:"seat_label,omitempty"`
	Status     TicketStatus `json:"status"`
}

func (t Ticket) Summary() TicketSummary {
	return TicketSummary{
		TicketID:   t.TicketID,
		EventID:    t.EventID,
		Code:       t.Code,
		HolderName: t.HolderName,
		SeatLabel:  t.SeatLabel,
		Status:     t.Status,
	}
}
