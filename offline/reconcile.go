package offline

import (
	"context"
	"time"

	"gatecheck/entities"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// Submitter replays one queued check-in against the server. An accepted
// result with Success or an already-used-by-the-same-actor outcome both
// count as converged.
type Submitter interface {
	Submit(ctx context.Context, req entities.CheckInRequest) (entities.CheckInResult, error)
}

type queuedCheckIn struct {
	CheckInID         string    `db:"checkin_id"`
	TicketID          string    `db:"ticket_id"`
	EventID           string    `db:"event_id"`
	ActorID           string    `db:"actor_id"`
	EntryGate         string    `db:"entry_gate"`
	DeviceFingerprint string    `db:"device_fingerprint"`
	ObservedAt        time.Time `db:"observed_at"`
	Attempts          int       `db:"attempts"`
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Submitted int
	Completed int
	Rejected  int
	Deferred  int
}

// Reconcile replays the pending entries of the durable queue in insertion
// order. Each entry is handled in isolation: a permanent rejection marks
// that entry failed and keeps its reason for review, a transient failure
// leaves it pending for the next pass, and neither stops the remaining
// entries. Completed entries clear the ticket's pending_sync flag. Failed
// entries are never replayed automatically; they surface through
// FailedCheckIns instead.
//
// The store lock is held only while reading the queue and writing outcomes,
// never across a Submit, so scanning at the gate keeps working while a slow
// sync pass runs.
func (s *Store) Reconcile(ctx context.Context, submitter Submitter) (ReconcileReport, error) {
	s.mu.Lock()
	var queued []queuedCheckIn
	err := s.db.SelectContext(ctx, &queued, `
		SELECT checkin_id, ticket_id, event_id, actor_id, entry_gate, device_fingerprint,
		       observed_at, attempts
		FROM pending_checkins
		WHERE sync_status = ?
		ORDER BY rowid`,
		entities.SyncStatusPending)
	s.mu.Unlock()
	if err != nil {
		return ReconcileReport{}, err
	}

	var report ReconcileReport
	for _, entry := range queued {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Submitted++

		result, err := submitter.Submit(ctx, entities.CheckInRequest{
			TicketID:          entry.TicketID,
			ActorID:           entry.ActorID,
			EntryGate:         entry.EntryGate,
			DeviceFingerprint: entry.DeviceFingerprint,
			ObservedAt:        entry.ObservedAt,
		})

		if markErr := s.recordOutcome(ctx, entry, result, err, &report); markErr != nil {
			return report, markErr
		}
	}

	return report, nil
}

func (s *Store) recordOutcome(ctx context.Context, entry queuedCheckIn, result entities.CheckInResult, err error, report *ReconcileReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil && result.Success:
		if markErr := s.markCompletedLocked(ctx, entry); markErr != nil {
			return markErr
		}
		report.Completed++

	case err == nil && result.Reason == entities.ReasonAlreadyUsed:
		// The server saw this check-in already, either from a prior
		// pass that was interrupted or from a race another device won.
		// Locally the ticket is used either way.
		if markErr := s.markCompletedLocked(ctx, entry); markErr != nil {
			return markErr
		}
		report.Completed++

	case err == nil:
		if markErr := s.markFailedLocked(ctx, entry, result.Reason); markErr != nil {
			return markErr
		}
		report.Rejected++
		log.FromContext(ctx).
			WithField("ticket_id", entry.TicketID).
			WithField("reason", result.Reason).
			Warn("Queued check-in rejected during reconciliation")

	case entities.IsPermanent(err):
		if markErr := s.markFailedLocked(ctx, entry, err.Error()); markErr != nil {
			return markErr
		}
		report.Rejected++

	default:
		if markErr := s.deferLocked(ctx, entry, err); markErr != nil {
			return markErr
		}
		report.Deferred++
	}

	return nil
}

// FailedCheckIns lists entries the server rejected permanently, for
// operator review on the device.
func (s *Store) FailedCheckIns(ctx context.Context) ([]entities.PendingCheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []entities.PendingCheckIn
	err := s.db.SelectContext(ctx, &failed, `
		SELECT checkin_id, ticket_id, event_id, actor_id, entry_gate, device_fingerprint,
		       observed_at, sync_status, attempts, last_error, created_at
		FROM pending_checkins
		WHERE sync_status = ?
		ORDER BY rowid`, entities.SyncStatusFailed)
	if err != nil {
		return nil, err
	}
	return failed, nil
}

func (s *Store) markCompletedLocked(ctx context.Context, entry queuedCheckIn) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE pending_checkins
		SET sync_status = ?, attempts = attempts + 1, last_error = ''
		WHERE checkin_id = ?`, entities.SyncStatusCompleted, entry.CheckInID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets SET pending_sync = 0 WHERE ticket_id = ?`, entry.TicketID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) markFailedLocked(ctx context.Context, entry queuedCheckIn, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_checkins
		SET sync_status = ?, attempts = attempts + 1, last_error = ?
		WHERE checkin_id = ?`, entities.SyncStatusFailed, reason, entry.CheckInID)
	return err
}

func (s *Store) deferLocked(ctx context.Context, entry queuedCheckIn, cause error) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_checkins
		SET attempts = attempts + 1, last_error = ?
		WHERE checkin_id = ?`, cause.Error(), entry.CheckInID)
	return err
}
