package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"gatecheck/entities"
	"gatecheck/message/outbox"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	conn, err := NewDBConn(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.MigrateSchema()
	// Redeem writes through the outbox staging table; make sure it exists.
	outbox.SubscribeForPGMessages(conn.Conn, watermill.NopLogger{})

	return &conn
}

func seedTicket(t *testing.T, conn *DB) entities.Ticket {
	t.Helper()
	ctx := context.Background()

	eventID := uuid.NewString()
	require.NoError(t, NewEventRepository(conn).Create(ctx, Event{
		EventID:     eventID,
		OrganizerID: uuid.NewString(),
		OwnerID:     uuid.NewString(),
		Title:       "Test Event",
		StartsAt:    time.Now().Add(24 * time.Hour),
	}))

	ticket := entities.Ticket{
		TicketID: uuid.NewString(),
		EventID:  eventID,
		Code:     "GC-" + uuid.NewString()[:8],
		Status:   entities.TicketStatusValid,
	}
	require.NoError(t, NewTicketRepository(conn).Create(ctx, ticket))

	return ticket
}

func TestRedeemHappyPath(t *testing.T) {
	conn := testDB(t)
	repo := NewTicketRepository(conn)
	ticket := seedTicket(t, conn)
	ctx := context.Background()

	redeemed, fresh, err := repo.Redeem(ctx, entities.CheckInRequest{
		TicketID:   ticket.TicketID,
		ActorID:    uuid.NewString(),
		EntryGate:  "north",
		ObservedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.True(t, fresh)
	assert.Equal(t, entities.TicketStatusUsed, redeemed.Status)
	assert.Equal(t, ticket.Version+1, redeemed.Version)
	require.NotNil(t, redeemed.UsedAt)
	require.NotNil(t, redeemed.EntryGate)
	assert.Equal(t, "north", *redeemed.EntryGate)
}

func TestRedeemSameActorIsIdempotent(t *testing.T) {
	conn := testDB(t)
	repo := NewTicketRepository(conn)
	ticket := seedTicket(t, conn)
	ctx := context.Background()
	actor := uuid.NewString()

	req := entities.CheckInRequest{TicketID: ticket.TicketID, ActorID: actor, ObservedAt: time.Now()}

	_, fresh, err := repo.Redeem(ctx, req)
	require.NoError(t, err)
	assert.True(t, fresh)

	redeemed, fresh, err := repo.Redeem(ctx, req)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, entities.TicketStatusUsed, redeemed.Status)
}

func TestRedeemConcurrentActorsExactlyOneWins(t *testing.T) {
	conn := testDB(t)
	repo := NewTicketRepository(conn)
	ticket := seedTicket(t, conn)

	const actors = 8
	var wg sync.WaitGroup
	results := make([]error, actors)

	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = repo.Redeem(context.Background(), entities.CheckInRequest{
				TicketID:   ticket.TicketID,
				ActorID:    uuid.NewString(),
				ObservedAt: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var conflict entities.ConflictError
		require.ErrorAs(t, err, &conflict)
		conflicts++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, actors-1, conflicts)
}

func TestRedeemRejectsCancelledTicket(t *testing.T) {
	conn := testDB(t)
	repo := NewTicketRepository(conn)
	ticket := seedTicket(t, conn)
	ctx := context.Background()

	_, err := conn.Conn.ExecContext(ctx, `
		UPDATE tickets SET status = $1 WHERE ticket_id = $2`,
		entities.TicketStatusCancelled, ticket.TicketID)
	require.NoError(t, err)

	_, _, err = repo.Redeem(ctx, entities.CheckInRequest{
		TicketID:   ticket.TicketID,
		ActorID:    uuid.NewString(),
		ObservedAt: time.Now(),
	})

	var notRedeemable entities.NotRedeemableError
	require.ErrorAs(t, err, &notRedeemable)
	assert.Equal(t, entities.ReasonCancelled, notRedeemable.Reason())
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	conn := testDB(t)
	repo := NewTicketRepository(conn)
	ticket := seedTicket(t, conn)
	ctx := context.Background()

	duplicate := entities.Ticket{
		TicketID: uuid.NewString(),
		EventID:  ticket.EventID,
		Code:     ticket.Code,
		Status:   entities.TicketStatusValid,
	}

	assert.ErrorIs(t, repo.Create(ctx, duplicate), ErrDuplicateCode)
}

func TestStatsCountPerGate(t *testing.T) {
	conn := testDB(t)
	repo := NewTicketRepository(conn)
	ctx := context.Background()

	first := seedTicket(t, conn)
	second := entities.Ticket{
		TicketID: uuid.NewString(),
		EventID:  first.EventID,
		Code:     "GC-" + uuid.NewString()[:8],
		Status:   entities.TicketStatusValid,
	}
	require.NoError(t, repo.Create(ctx, second))

	_, _, err := repo.Redeem(ctx, entities.CheckInRequest{
		TicketID:   first.TicketID,
		ActorID:    uuid.NewString(),
		EntryGate:  "north",
		ObservedAt: time.Now(),
	})
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, first.EventID)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, 1, stats.Remaining)
	assert.Equal(t, 1, stats.PerGate["north"])
}
