package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gatecheck/entities"

	"github.com/jmoiron/sqlx"
)

var ErrBatchNotFound = errors.New("batch not found")

// CheckInBatchReadModel tracks per-item outcomes of batch submissions. Items
// finish independently on the worker, so each outcome lands as its own event
// and the model converges once every item is terminal.
type CheckInBatchReadModel struct {
	db *DB
}

func NewCheckInBatchReadModel(db *DB) CheckInBatchReadModel {
	if db == nil {
		panic("db is nil")
	}
	return CheckInBatchReadModel{
		db: db,
	}
}

func (rm CheckInBatchReadModel) Create(ctx context.Context, batchID string, count int) error {
	payload, err := json.Marshal(entities.CheckInBatch{
		BatchID:    batchID,
		Status:     "processing",
		Count:      count,
		Items:      map[string]entities.BatchItemOutcome{},
		CreatedAt:  time.Now().UTC(),
		LastUpdate: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	_, err = rm.db.Conn.ExecContext(ctx, `
		INSERT INTO read_model_checkin_batches (batch_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (batch_id) DO NOTHING`, batchID, payload)
	if err != nil {
		return fmt.Errorf("could not create batch read model: %w", err)
	}

	return nil
}

func (rm CheckInBatchReadModel) OnBatchItemProcessed(ctx context.Context, event *entities.BatchItemProcessed_v1) error {
	return updateInTx(ctx, rm.db.Conn, sql.LevelRepeatableRead, func(ctx context.Context, tx *sqlx.Tx) error {
		var payload []byte
		err := tx.GetContext(ctx, &payload, `
			SELECT payload FROM read_model_checkin_batches
			WHERE batch_id = $1
			FOR UPDATE`, event.BatchID)
		if errors.Is(err, sql.ErrNoRows) {
			// Item events can beat the batch row; returning an error makes
			// the router redeliver until the row exists.
			return fmt.Errorf("read model for batch %s does not exist yet", event.BatchID)
		}
		if err != nil {
			return fmt.Errorf("could not load batch read model: %w", err)
		}

		var batch entities.CheckInBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return err
		}
		if batch.Items == nil {
			batch.Items = map[string]entities.BatchItemOutcome{}
		}

		// Keyed by item id: a batch listing the same ticket twice still
		// counts two outcomes, and a redelivery overwrites its own entry.
		batch.Items[event.ItemID] = entities.BatchItemOutcome{
			TicketID: event.TicketID,
			Result:   event.Result,
		}
		batch.LastUpdate = time.Now().UTC()
		if len(batch.Items) >= batch.Count {
			batch.Status = "completed"
		}

		updated, err := json.Marshal(batch)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE read_model_checkin_batches SET payload = $1
			WHERE batch_id = $2`, updated, event.BatchID)
		if err != nil {
			return fmt.Errorf("could not update batch read model: %w", err)
		}

		return nil
	})
}

func (rm CheckInBatchReadModel) GetByID(ctx context.Context, batchID string) (entities.CheckInBatch, error) {
	var payload []byte
	err := rm.db.Conn.GetContext(ctx, &payload, `
		SELECT payload FROM read_model_checkin_batches
		WHERE batch_id = $1`, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.CheckInBatch{}, ErrBatchNotFound
	}
	if err != nil {
		return entities.CheckInBatch{}, fmt.Errorf("could not get batch %s: %w", batchID, err)
	}

	var batch entities.CheckInBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return entities.CheckInBatch{}, err
	}
	if batch.Items == nil {
		batch.Items = map[string]entities.BatchItemOutcome{}
	}

	return batch, nil
}
