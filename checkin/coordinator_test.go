package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatecheck/entities"
	"gatecheck/gate"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowAll struct{}

func (allowAll) CanManage(context.Context, string, string, gate.Capability) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) CanManage(context.Context, string, string, gate.Capability) (bool, error) {
	return false, nil
}

// scriptedRepo returns the queued outcomes in order, then keeps returning
// the last one.
type scriptedRepo struct {
	ticket   entities.Ticket
	outcomes []redeemOutcome
	calls    int
}

type redeemOutcome struct {
	fresh bool
	err   error
}

func (r *scriptedRepo) FindByID(_ context.Context, ticketID string) (entities.Ticket, error) {
	if ticketID != r.ticket.TicketID {
		return entities.Ticket{}, entities.ErrTicketNotFound
	}
	return r.ticket, nil
}

func (r *scriptedRepo) Redeem(_ context.Context, _ entities.CheckInRequest) (entities.Ticket, bool, error) {
	outcome := r.outcomes[len(r.outcomes)-1]
	if r.calls < len(r.outcomes) {
		outcome = r.outcomes[r.calls]
	}
	r.calls++
	return r.ticket, outcome.fresh, outcome.err
}

func testTicket() entities.Ticket {
	return entities.Ticket{
		TicketID: "t-1",
		EventID:  "event-1",
		Code:     "GC-0001",
		Status:   entities.TicketStatusValid,
	}
}

func newTestCoordinator(repo *scriptedRepo, permissionGate PermissionGate) Coordinator {
	return NewCoordinator(repo, permissionGate, NewMarker(nil, time.Minute), NewStatsCache(nil, time.Minute), 3, 0)
}

func request() entities.CheckInRequest {
	return entities.CheckInRequest{
		TicketID:   "t-1",
		ActorID:    "actor-1",
		EntryGate:  "north",
		ObservedAt: time.Now().UTC(),
	}
}

func TestCheckInSucceeds(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{{fresh: true}}}
	coordinator := newTestCoordinator(repo, allowAll{})

	result, err := coordinator.CheckIn(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, "t-1", result.Ticket.TicketID)
	assert.Equal(t, 1, repo.calls)
}

func TestCheckInRepeatBySameActorIsIdempotent(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{
		{fresh: true},
		{fresh: false},
	}}
	coordinator := newTestCoordinator(repo, allowAll{})

	first, err := coordinator.CheckIn(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, first.Success)

	second, err := coordinator.CheckIn(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, second.Success)
}

func TestCheckInDeniedActor(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{{fresh: true}}}
	coordinator := newTestCoordinator(repo, denyAll{})

	result, err := coordinator.CheckIn(context.Background(), request())
	require.ErrorIs(t, err, entities.ErrForbidden)

	assert.False(t, result.Success)
	assert.Equal(t, entities.ReasonForbidden, result.Reason)
	assert.Equal(t, 0, repo.calls, "a denied actor must not touch the row")
}

func TestCheckInUnknownTicket(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{{fresh: true}}}
	coordinator := newTestCoordinator(repo, allowAll{})

	req := request()
	req.TicketID = "no-such-ticket"

	result, err := coordinator.CheckIn(context.Background(), req)
	require.ErrorIs(t, err, entities.ErrTicketNotFound)
	assert.Equal(t, entities.ReasonNotFound, result.Reason)
}

func TestCheckInRetriesVersionRaces(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{
		{err: entities.TransientError{Err: errors.New("version changed")}},
		{err: entities.TransientError{Err: errors.New("version changed")}},
		{fresh: true},
	}}
	coordinator := newTestCoordinator(repo, allowAll{})

	result, err := coordinator.CheckIn(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, repo.calls)
}

func TestCheckInGivesUpAfterRetryBudget(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{
		{err: entities.TransientError{Err: errors.New("still contended")}},
	}}
	coordinator := newTestCoordinator(repo, allowAll{})

	result, err := coordinator.CheckIn(context.Background(), request())
	require.Error(t, err)

	assert.Equal(t, entities.ReasonTransient, result.Reason)
	// Initial attempt plus the configured three retries.
	assert.Equal(t, 4, repo.calls)
}

func TestCheckInConflictIsNotRetried(t *testing.T) {
	conflict := entities.ConflictError{
		TicketID: "t-1",
		Winner:   "actor-2",
		Loser:    "actor-1",
		WonAt:    time.Now().UTC(),
	}
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{{err: conflict}}}
	coordinator := newTestCoordinator(repo, allowAll{})

	result, err := coordinator.CheckIn(context.Background(), request())
	require.Error(t, err)

	var got entities.ConflictError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "actor-2", got.Winner)
	assert.Equal(t, entities.ReasonConflict, result.Reason)
	assert.Equal(t, 1, repo.calls, "a lost race with a different actor is final")
}

func TestCheckInCancelledTicketIsPermanent(t *testing.T) {
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{
		{err: entities.NotRedeemableError{TicketID: "t-1", Status: entities.TicketStatusCancelled}},
	}}
	coordinator := newTestCoordinator(repo, allowAll{})

	result, err := coordinator.CheckIn(context.Background(), request())
	require.Error(t, err)

	assert.Equal(t, entities.ReasonCancelled, result.Reason)
	assert.Equal(t, 1, repo.calls)
}

func TestDoneMarkerShortCircuitsSameActor(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{{fresh: true}}}
	coordinator := NewCoordinator(repo, allowAll{}, NewMarker(rdb, time.Minute), NewStatsCache(nil, time.Minute), 3, 0)

	mock.ExpectGet("checkin:done:t-1").SetVal("actor-1")

	result, err := coordinator.CheckIn(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, repo.calls, "marker hit must not touch the row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoneMarkerForOtherActorDoesNotShortCircuit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	repo := &scriptedRepo{ticket: testTicket(), outcomes: []redeemOutcome{{fresh: true}}}
	coordinator := NewCoordinator(repo, allowAll{}, NewMarker(rdb, time.Minute), NewStatsCache(nil, time.Minute), 3, 0)

	mock.ExpectGet("checkin:done:t-1").SetVal("actor-2")
	mock.ExpectSet("checkin:done:t-1", "actor-1", time.Minute).SetVal("OK")

	result, err := coordinator.CheckIn(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, repo.calls)
}
