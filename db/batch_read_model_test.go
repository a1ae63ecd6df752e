package db

import (
	"context"
	"testing"

	"gatecheck/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchReadModelCompletesWhenAllItemsLand(t *testing.T) {
	conn := testDB(t)
	rm := NewCheckInBatchReadModel(conn)
	ctx := context.Background()

	batchID := uuid.NewString()
	require.NoError(t, rm.Create(ctx, batchID, 2))

	batch, err := rm.GetByID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, "processing", batch.Status)
	assert.Equal(t, 2, batch.Count)

	require.NoError(t, rm.OnBatchItemProcessed(ctx, &entities.BatchItemProcessed_v1{
		Header:   entities.NewEventHeader(),
		BatchID:  batchID,
		ItemID:   "item-1",
		TicketID: "t-1",
		Result:   entities.CheckInResult{Success: true},
	}))

	batch, err = rm.GetByID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, "processing", batch.Status)
	assert.Len(t, batch.Items, 1)

	require.NoError(t, rm.OnBatchItemProcessed(ctx, &entities.BatchItemProcessed_v1{
		Header:   entities.NewEventHeader(),
		BatchID:  batchID,
		ItemID:   "item-2",
		TicketID: "t-2",
		Result:   entities.CheckInResult{Reason: entities.ReasonConflict},
	}))

	batch, err = rm.GetByID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, "completed", batch.Status)
	assert.True(t, batch.Items["item-1"].Result.Success)
	assert.Equal(t, "t-1", batch.Items["item-1"].TicketID)
	assert.Equal(t, entities.ReasonConflict, batch.Items["item-2"].Result.Reason)
}

func TestBatchReadModelKeepsDuplicateTicketsDistinct(t *testing.T) {
	conn := testDB(t)
	rm := NewCheckInBatchReadModel(conn)
	ctx := context.Background()

	batchID := uuid.NewString()
	require.NoError(t, rm.Create(ctx, batchID, 2))

	// The same ticket submitted twice in one batch is two items. Each
	// needs its own outcome slot or the batch never completes.
	require.NoError(t, rm.OnBatchItemProcessed(ctx, &entities.BatchItemProcessed_v1{
		Header:   entities.NewEventHeader(),
		BatchID:  batchID,
		ItemID:   "item-1",
		TicketID: "t-1",
		Result:   entities.CheckInResult{Success: true},
	}))
	require.NoError(t, rm.OnBatchItemProcessed(ctx, &entities.BatchItemProcessed_v1{
		Header:   entities.NewEventHeader(),
		BatchID:  batchID,
		ItemID:   "item-2",
		TicketID: "t-1",
		Result:   entities.CheckInResult{Reason: entities.ReasonAlreadyUsed},
	}))

	batch, err := rm.GetByID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, "completed", batch.Status)
	require.Len(t, batch.Items, 2)
	assert.True(t, batch.Items["item-1"].Result.Success)
	assert.Equal(t, entities.ReasonAlreadyUsed, batch.Items["item-2"].Result.Reason)
}

func TestBatchReadModelRedeliveryIsIdempotent(t *testing.T) {
	conn := testDB(t)
	rm := NewCheckInBatchReadModel(conn)
	ctx := context.Background()

	batchID := uuid.NewString()
	require.NoError(t, rm.Create(ctx, batchID, 2))

	item := &entities.BatchItemProcessed_v1{
		Header:   entities.NewEventHeader(),
		BatchID:  batchID,
		ItemID:   "item-1",
		TicketID: "t-1",
		Result:   entities.CheckInResult{Success: true},
	}
	require.NoError(t, rm.OnBatchItemProcessed(ctx, item))
	require.NoError(t, rm.OnBatchItemProcessed(ctx, item))

	batch, err := rm.GetByID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, "processing", batch.Status, "a redelivered item must not complete the batch")
	assert.Len(t, batch.Items, 1)
}

func TestBatchReadModelUnknownBatchErrorsForRedelivery(t *testing.T) {
	conn := testDB(t)
	rm := NewCheckInBatchReadModel(conn)

	err := rm.OnBatchItemProcessed(context.Background(), &entities.BatchItemProcessed_v1{
		Header:   entities.NewEventHeader(),
		BatchID:  uuid.NewString(),
		ItemID:   "item-1",
		TicketID: "t-1",
		Result:   entities.CheckInResult{Success: true},
	})
	assert.Error(t, err)

	_, err = rm.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
