package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Event is the slice of the platform's event record this engine needs:
// ownership for the permission gate, nothing more.
type Event struct {
	EventID     string    `db:"event_id"`
	OrganizerID string    `db:"organizer_id"`
	OwnerID     string    `db:"owner_id"`
	Title       string    `db:"title"`
	StartsAt    time.Time `db:"starts_at"`
}

var ErrEventNotFound = errors.New("event not found")

type EventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) EventRepository {
	if db == nil {
		panic("db is nil")
	}
	return EventRepository{
		db: db,
	}
}

func (er EventRepository) FindByID(ctx context.Context, eventID string) (Event, error) {
	var event Event
	err := er.db.Conn.GetContext(ctx, &event, `
		SELECT event_id, organizer_id, owner_id, title, starts_at
		FROM events
		WHERE event_id = $1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrEventNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("could not get event %s: %w", eventID, err)
	}

	return event, nil
}

func (er EventRepository) Create(ctx context.Context, event Event) error {
	_, err := er.db.Conn.NamedExecContext(ctx, `
		INSERT INTO events (event_id, organizer_id, owner_id, title, starts_at)
		VALUES (:event_id, :organizer_id, :owner_id, :title, :starts_at) ON CONFLICT DO NOTHING`,
		event)
	if err != nil {
		return fmt.Errorf("could not save event: %w", err)
	}
	return nil
}
