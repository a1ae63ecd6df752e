package entities

import "time"

// ScanToken is the ephemeral payload embedded in a QR code. It is never
// persisted; the server regenerates it on demand and accepts it only while
// its signature verifies against the current event secret and ExpiresAt has
// not passed.
type ScanToken struct {
	TicketID  string    `json:"ticket_id"`
	EventID   string    `json:"event_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t ScanToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
