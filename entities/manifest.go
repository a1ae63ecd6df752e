package entities

import "time"

// ManifestEntry is one ticket inside a manifest. The signature covers the
// entry's code and status so a single tampered row fails verification on its
// own, independently of the aggregate signature.
type ManifestEntry struct {
	TicketID  string       `json:"ticket_id" db:"ticket_id"`
	Code      string       `json:"code" db:"code"`
	Status    TicketStatus `json:"status" db:"status"`
	Signature string       `json:"signature" db:"signature"`
}

// Manifest is a signed, expiring snapshot of an event's tickets for offline
// scanning. The aggregate signature covers the ordered entry list, so
// insertion, deletion, or reordering invalidates it.
type Manifest struct {
	EventID     string          `json:"event_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Entries     []ManifestEntry `json:"tickets"`
	Signature   string          `json:"signature"`
}

func (m Manifest) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
