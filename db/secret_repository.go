package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
)

// SecretRepository resolves and rotates per-event signing secrets. The
// current secret is the latest row; older rows stay for audit but are never
// used for verification, so rotation invalidates outstanding tokens and
// manifests at once.
type SecretRepository struct {
	db *DB
}

func NewSecretRepository(db *DB) SecretRepository {
	if db == nil {
		panic("db is nil")
	}
	return SecretRepository{
		db: db,
	}
}

func (sr SecretRepository) SecretForEvent(ctx context.Context, eventID string) ([]byte, error) {
	var secret []byte
	err := sr.db.Conn.GetContext(ctx, &secret, `
		SELECT secret FROM event_secrets
		WHERE event_id = $1
		ORDER BY rotated_at DESC
		LIMIT 1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		// First use of the event: mint a secret on demand.
		return sr.Rotate(ctx, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not get secret for event %s: %w", eventID, err)
	}

	return secret, nil
}

func (sr SecretRepository) Rotate(ctx context.Context, eventID string) ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("could not generate secret: %w", err)
	}

	_, err := sr.db.Conn.ExecContext(ctx, `
		INSERT INTO event_secrets (event_id, secret)
		VALUES ($1, $2)`, eventID, secret)
	if err != nil {
		return nil, fmt.Errorf("could not store secret for event %s: %w", eventID, err)
	}

	return secret, nil
}
