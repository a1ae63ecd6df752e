package db

import (
	"context"
	"fmt"

	"gatecheck/entities"
)

// PendingCheckInRepository is the server-side dead-letter table: queued
// check-ins whose retry budget ran out land here for manual reconciliation
// instead of being dropped.
type PendingCheckInRepository struct {
	db *DB
}

func NewPendingCheckInRepository(db *DB) PendingCheckInRepository {
	if db == nil {
		panic("db is nil")
	}
	return PendingCheckInRepository{
		db: db,
	}
}

func (pr PendingCheckInRepository) Create(ctx context.Context, pending entities.PendingCheckIn) error {
	_, err := pr.db.Conn.NamedExecContext(ctx, `
		INSERT INTO pending_checkins
			(checkin_id, ticket_id, event_id, actor_id, entry_gate, device_fingerprint,
			 observed_at, sync_status, attempts, last_error)
		VALUES
			(:checkin_id, :ticket_id, :event_id, :actor_id, :entry_gate, :device_fingerprint,
			 :observed_at, :sync_status, :attempts, :last_error) ON CONFLICT DO NOTHING`,
		pending)
	if err != nil {
		return fmt.Errorf("could not save pending check-in: %w", err)
	}
	return nil
}

func (pr PendingCheckInRepository) ListFailed(ctx context.Context) ([]entities.PendingCheckIn, error) {
	var pending []entities.PendingCheckIn
	err := pr.db.Conn.SelectContext(ctx, &pending, `
		SELECT checkin_id, ticket_id, event_id, actor_id, entry_gate, device_fingerprint,
			observed_at, sync_status, attempts, last_error, created_at
		FROM pending_checkins
		WHERE sync_status = $1
		ORDER BY created_at`, entities.SyncStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("could not list failed check-ins: %w", err)
	}

	return pending, nil
}

func (pr PendingCheckInRepository) MarkCompleted(ctx context.Context, checkinID string) error {
	_, err := pr.db.Conn.ExecContext(ctx, `
		UPDATE pending_checkins SET sync_status = $1
		WHERE checkin_id = $2`, entities.SyncStatusCompleted, checkinID)
	if err != nil {
		return fmt.Errorf("could not mark check-in %s completed: %w", checkinID, err)
	}
	return nil
}
