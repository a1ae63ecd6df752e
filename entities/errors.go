package entities

import (
	"errors"
	"fmt"
	"time"
)

// Rejection reasons surfaced to callers. Every rejection carries one of
// these so a scanner UI can tell "already checked in by someone else" apart
// from "network error, try again".
const (
	ReasonUntrustedToken  = "untrusted_token"
	ReasonNotFound        = "not_found"
	ReasonForbidden       = "forbidden"
	ReasonAlreadyUsed     = "already_used"
	ReasonCancelled       = "cancelled"
	ReasonTransferred     = "transferred"
	ReasonConflict        = "conflict"
	ReasonTransient       = "transient"
	ReasonManifestExpired = "manifest_expired"
)

// ErrUntrustedToken covers bad or expired token signatures. Unverifiable is
// treated identically to invalid and is never retried.
var ErrUntrustedToken = errors.New("untrusted token")

var ErrTicketNotFound = errors.New("ticket not found")

var ErrForbidden = errors.New("forbidden")

// ErrManifestExpired tells a device to refetch online before trusting
// further offline decisions.
var ErrManifestExpired = errors.New("manifest expired")

// AlreadyUsedError is returned when a ticket was redeemed earlier by the
// same or another actor. The prior actor and time are kept for operator
// transparency.
type AlreadyUsedError struct {
	TicketID string
	UsedBy   string
	UsedAt   time.Time
}

func (e AlreadyUsedError) Error() string {
	return fmt.Sprintf("ticket %s already used by %s at %s", e.TicketID, e.UsedBy, e.UsedAt.Format(time.RFC3339))
}

// ConflictError is returned when a concurrent check-in by a different actor
// won the version race. It is an operator-visible anomaly, never silently
// overwritten.
type ConflictError struct {
	TicketID string
	Winner   string
	Loser    string
	WonAt    time.Time
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("ticket %s: check-in by %s lost to %s at %s", e.TicketID, e.Loser, e.Winner, e.WonAt.Format(time.RFC3339))
}

// NotRedeemableError rejects a ticket whose status is terminal for reasons
// other than a prior check-in (cancelled, transferred out).
type NotRedeemableError struct {
	TicketID string
	Status   TicketStatus
}

func (e NotRedeemableError) Error() string {
	return fmt.Sprintf("ticket %s is not redeemable: status %s", e.TicketID, e.Status)
}

func (e NotRedeemableError) Reason() string {
	switch e.Status {
	case TicketStatusCancelled:
		return ReasonCancelled
	case TicketStatusTransferred:
		return ReasonTransferred
	default:
		return ReasonConflict
	}
}

// TransientError marks failures that are safe to retry with backoff: lock
// contention, lost version races with the same outcome still undecided,
// timeouts.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether the error must not be retried. The worker's
// poison-queue filter and the synchronous retry loop both key off this.
func IsPermanent(err error) bool {
	var transient TransientError
	if errors.As(err, &transient) {
		return false
	}
	return err != nil
}

// ReasonForError maps a taxonomy error to its wire-level reason string.
func ReasonForError(err error) string {
	var used AlreadyUsedError
	var conflict ConflictError
	var notRedeemable NotRedeemableError
	var transient TransientError
	switch {
	case errors.Is(err, ErrUntrustedToken):
		return ReasonUntrustedToken
	case errors.Is(err, ErrTicketNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrManifestExpired):
		return ReasonManifestExpired
	case errors.As(err, &used):
		return ReasonAlreadyUsed
	case errors.As(err, &conflict):
		return ReasonConflict
	case errors.As(err, &notRedeemable):
		return notRedeemable.Reason()
	case errors.As(err, &transient):
		return ReasonTransient
	default:
		return ReasonTransient
	}
}
