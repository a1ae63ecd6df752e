package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatecheck/entities"
	"gatecheck/message/event"
	"gatecheck/message/outbox"

	"github.com/jmoiron/sqlx"
)

const ticketColumns = `
	ticket_id, event_id, booking_id, code, holder_name, holder_email,
	price_amount AS "price.amount",
	price_currency AS "price.currency",
	seat_label, status, version, used_at, used_by, entry_gate, device_fingerprint, deleted_at
`

type TicketRepository struct {
	db *DB
}

func NewTicketRepository(db *DB) TicketRepository {
	if db == nil {
		panic("db is nil")
	}
	return TicketRepository{
		db: db,
	}
}

func (tr TicketRepository) Create(ctx context.Context, ticket entities.Ticket) error {
	_, err := tr.db.Conn.NamedExecContext(
		ctx,
		`
		INSERT INTO
			tickets (ticket_id, event_id, booking_id, code, holder_name, holder_email,
				price_amount, price_currency, seat_label, status, version)
		VALUES
			(:ticket_id, :event_id, :booking_id, :code, :holder_name, :holder_email,
				:price.amount, :price.currency, :seat_label, :status, :version)
			ON CONFLICT (ticket_id) DO NOTHING`,
		ticket,
	)
	if isErrorUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("could not save ticket: %w", err)
	}
	return nil
}

func (tr TicketRepository) FindByID(ctx context.Context, ticketID string) (entities.Ticket, error) {
	var ticket entities.Ticket
	err := tr.db.Conn.GetContext(ctx, &ticket, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1 AND deleted_at IS NULL`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Ticket{}, entities.ErrTicketNotFound
	}
	if err != nil {
		return entities.Ticket{}, fmt.Errorf("could not get ticket %s: %w", ticketID, err)
	}

	return ticket, nil
}

func (tr TicketRepository) FindByCode(ctx context.Context, eventID, code string) (entities.Ticket, error) {
	var ticket entities.Ticket
	err := tr.db.Conn.GetContext(ctx, &ticket, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE event_id = $1 AND code = $2 AND deleted_at IS NULL`, eventID, code)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Ticket{}, entities.ErrTicketNotFound
	}
	if err != nil {
		return entities.Ticket{}, fmt.Errorf("could not get ticket by code %s: %w", code, err)
	}

	return ticket, nil
}

func (tr TicketRepository) ListForEvent(ctx context.Context, eventID string) ([]entities.Ticket, error) {
	var tickets []entities.Ticket
	err := tr.db.Conn.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE event_id = $1 AND deleted_at IS NULL
		ORDER BY ticket_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("could not list tickets for event %s: %w", eventID, err)
	}

	return tickets, nil
}

// Redeem performs the valid -> used transition exactly once. The ticket row
// is locked for the duration of the read-check-write sequence only; on
// success a TicketCheckedIn_v1 event goes out through the outbox in the same
// transaction. The returned bool is false when the call was an idempotent
// no-op for the same actor.
func (tr TicketRepository) Redeem(ctx context.Context, req entities.CheckInRequest) (ticket entities.Ticket, fresh bool, err error) {
	err = updateInTx(ctx, tr.db.Conn, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &ticket, `
			SELECT `+ticketColumns+`
			FROM tickets
			WHERE ticket_id = $1 AND deleted_at IS NULL
			FOR UPDATE`, req.TicketID)
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTicketNotFound
		}
		if err != nil {
			return entities.TransientError{Err: fmt.Errorf("could not lock ticket %s: %w", req.TicketID, err)}
		}

		switch ticket.Status {
		case entities.TicketStatusUsed:
			if ticket.UsedBy != nil && *ticket.UsedBy == req.ActorID {
				// Duplicate submission from the same actor: retries,
				// double taps, re-queued jobs. state is already correct.
				return nil
			}
			winner := ""
			wonAt := time.Time{}
			if ticket.UsedBy != nil {
				winner = *ticket.UsedBy
			}
			if ticket.UsedAt != nil {
				wonAt = *ticket.UsedAt
			}
			return entities.ConflictError{
				TicketID: ticket.TicketID,
				Winner:   winner,
				Loser:    req.ActorID,
				WonAt:    wonAt,
			}
		case entities.TicketStatusCancelled, entities.TicketStatusTransferred:
			return entities.NotRedeemableError{TicketID: ticket.TicketID, Status: ticket.Status}
		}

		usedAt := req.ObservedAt.UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE tickets
			SET status = $1, used_at = $2, used_by = $3, entry_gate = $4,
				device_fingerprint = $5, version = version + 1
			WHERE ticket_id = $6 AND version = $7`,
			entities.TicketStatusUsed, usedAt, req.ActorID,
			nullable(req.EntryGate), nullable(req.DeviceFingerprint),
			req.TicketID, ticket.Version)
		if err != nil {
			return entities.TransientError{Err: fmt.Errorf("could not mark ticket %s used: %w", req.TicketID, err)}
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return entities.TransientError{Err: err}
		}
		if affected == 0 {
			// Version moved between read and write: another writer won the
			// race. The caller re-runs the whole operation.
			return entities.TransientError{Err: fmt.Errorf("version conflict on ticket %s", req.TicketID)}
		}

		ticket.Status = entities.TicketStatusUsed
		ticket.Version++
		ticket.UsedAt = &usedAt
		ticket.UsedBy = &req.ActorID
		ticket.EntryGate = nullable(req.EntryGate)
		ticket.DeviceFingerprint = nullable(req.DeviceFingerprint)
		fresh = true

		outboxPublisher, err := outbox.NewPublisherForDb(ctx, tx)
		if err != nil {
			return fmt.Errorf("could not create outbox publisher: %w", err)
		}
		err = event.NewBus(outboxPublisher).Publish(ctx, entities.TicketCheckedIn_v1{
			Header:            entities.NewEventHeaderWithIdempotencyKey(req.TicketID + ":" + req.ActorID),
			TicketID:          ticket.TicketID,
			EventID:           ticket.EventID,
			ActorID:           req.ActorID,
			EntryGate:         req.EntryGate,
			DeviceFingerprint: req.DeviceFingerprint,
			CheckedInAt:       usedAt,
			Version:           ticket.Version,
		})
		if err != nil {
			return fmt.Errorf("could not publish check-in event: %w", err)
		}

		return nil
	})
	if err != nil {
		return entities.Ticket{}, false, err
	}

	return ticket, fresh, nil
}

// Stats aggregates check-in progress for one event.
func (tr TicketRepository) Stats(ctx context.Context, eventID string) (entities.EventStats, error) {
	stats := entities.EventStats{EventID: eventID, PerGate: map[string]int{}}

	err := tr.db.Conn.GetContext(ctx, &stats.Total, `
		SELECT count(*) FROM tickets
		WHERE event_id = $1 AND deleted_at IS NULL`, eventID)
	if err != nil {
		return entities.EventStats{}, fmt.Errorf("could not count tickets: %w", err)
	}

	rows, err := tr.db.Conn.QueryxContext(ctx, `
		SELECT status, coalesce(entry_gate, '') AS entry_gate, count(*) AS n
		FROM tickets
		WHERE event_id = $1 AND deleted_at IS NULL
		GROUP BY status, entry_gate`, eventID)
	if err != nil {
		return entities.EventStats{}, fmt.Errorf("could not aggregate check-ins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, gate string
		var n int
		if err := rows.Scan(&status, &gate, &n); err != nil {
			return entities.EventStats{}, err
		}
		switch entities.TicketStatus(status) {
		case entities.TicketStatusUsed:
			stats.CheckedIn += n
			if gate == "" {
				gate = "unspecified"
			}
			stats.PerGate[gate] += n
		case entities.TicketStatusCancelled:
			stats.Cancelled += n
		}
	}
	if err := rows.Err(); err != nil {
		return entities.EventStats{}, err
	}

	stats.Remaining = stats.Total - stats.CheckedIn - stats.Cancelled

	return stats, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
