package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gatecheck/entities"
	"gatecheck/message/event"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	topics   []string
	messages []*message.Message
}

func (p *capturingPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		p.topics = append(p.topics, topic)
		p.messages = append(p.messages, msg)
	}
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

type scriptedCoordinator struct {
	result entities.CheckInResult
	err    error
	calls  int
}

func (c *scriptedCoordinator) CheckIn(context.Context, entities.CheckInRequest) (entities.CheckInResult, error) {
	c.calls++
	return c.result, c.err
}

type countingDeliveries struct {
	n   int
	err error
}

func (d *countingDeliveries) BumpDeliveries(context.Context, string) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.n++
	return d.n, nil
}

func queuedCheckInCommand() *entities.CheckInTicket {
	return &entities.CheckInTicket{
		Header:     entities.NewEventHeader(),
		TicketID:   "t-1",
		EventID:    "event-1",
		ActorID:    "actor-1",
		EntryGate:  "north",
		ObservedAt: time.Now().UTC(),
	}
}

func TestTransientFailureRedeliversUntilBudgetSpent(t *testing.T) {
	pub := &capturingPublisher{}
	coordinator := &scriptedCoordinator{err: entities.TransientError{Err: errors.New("version race")}}
	deliveries := &countingDeliveries{}
	handler := NewHandler(coordinator, event.NewBus(pub), deliveries)

	cmd := queuedCheckInCommand()
	ctx := context.Background()

	// Two deliveries within budget come back as errors so the broker
	// redelivers, and nothing is published yet.
	require.Error(t, handler.HandleCheckInTicket(ctx, cmd))
	require.Error(t, handler.HandleCheckInTicket(ctx, cmd))
	assert.Empty(t, pub.topics)

	// The final delivery acks and leaves a failure record instead of
	// spinning forever.
	require.NoError(t, handler.HandleCheckInTicket(ctx, cmd))
	assert.Equal(t, 3, coordinator.calls)
	require.Equal(t, []string{"internal-events.svc-gatecheck.entities.CheckInFailed_v1"}, pub.topics)

	var failed entities.CheckInFailed_v1
	require.NoError(t, json.Unmarshal(pub.messages[0].Payload, &failed))
	assert.Equal(t, "t-1", failed.TicketID)
	assert.Equal(t, entities.ReasonTransient, failed.Reason)
	assert.Equal(t, cmd.Header.IdempotencyKey, failed.Header.IdempotencyKey)
}

func TestPermanentFailureIsRecordedImmediately(t *testing.T) {
	pub := &capturingPublisher{}
	coordinator := &scriptedCoordinator{err: entities.NotRedeemableError{TicketID: "t-1", Status: entities.TicketStatusCancelled}}
	deliveries := &countingDeliveries{}
	handler := NewHandler(coordinator, event.NewBus(pub), deliveries)

	require.NoError(t, handler.HandleCheckInTicket(context.Background(), queuedCheckInCommand()))
	assert.Zero(t, deliveries.n, "permanent failures must not consume the delivery budget")
	require.Len(t, pub.topics, 1)

	var failed entities.CheckInFailed_v1
	require.NoError(t, json.Unmarshal(pub.messages[0].Payload, &failed))
	assert.Equal(t, entities.ReasonCancelled, failed.Reason)
}

func TestUnreachableDeliveryCounterEndsRetry(t *testing.T) {
	pub := &capturingPublisher{}
	coordinator := &scriptedCoordinator{err: entities.TransientError{Err: errors.New("timeout")}}
	deliveries := &countingDeliveries{err: errors.New("redis down")}
	handler := NewHandler(coordinator, event.NewBus(pub), deliveries)

	// Without the counter the budget cannot be enforced, so the handler
	// gives up rather than risk an unbounded loop.
	require.NoError(t, handler.HandleCheckInTicket(context.Background(), queuedCheckInCommand()))
	require.Len(t, pub.topics, 1)
}

func TestBatchItemOutcomeIsPublished(t *testing.T) {
	pub := &capturingPublisher{}
	coordinator := &scriptedCoordinator{result: entities.CheckInResult{Success: true}}
	handler := NewHandler(coordinator, event.NewBus(pub), &countingDeliveries{})

	cmd := queuedCheckInCommand()
	cmd.BatchID = "batch-1"
	cmd.BatchItemID = "item-1"

	require.NoError(t, handler.HandleCheckInTicket(context.Background(), cmd))
	require.Equal(t, []string{"internal-events.svc-gatecheck.entities.BatchItemProcessed_v1"}, pub.topics)

	var item entities.BatchItemProcessed_v1
	require.NoError(t, json.Unmarshal(pub.messages[0].Payload, &item))
	assert.Equal(t, "batch-1", item.BatchID)
	assert.Equal(t, "item-1", item.ItemID)
	assert.Equal(t, "t-1", item.TicketID)
	assert.True(t, item.Result.Success)
}
