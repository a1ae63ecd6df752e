package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gatecheck/entities"
	"gatecheck/manifest"
	"gatecheck/sign"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	ErrNoPermission      = errors.New("no permission to cache this manifest")
	ErrMalformedManifest = errors.New("manifest aggregate signature does not corroborate")
	ErrAlreadyQueued     = errors.New("a pending check-in already exists for this ticket")
	ErrNoManifest        = errors.New("no manifest cached for this event")
)

// Store is the device-local cache: one manifest per event, a tickets
// mirror, a durable insertion-ordered check-in queue, and a permissions
// mirror. One device, one writer; the mutex serializes every mutation
// against the local file.
type Store struct {
	mu sync.Mutex
	db *sqlx.DB

	actorID string
}

func NewStore(path, actorID string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open offline store: %w", err)
	}
	// modernc sqlite serializes internally, but a single connection keeps
	// the single-writer model honest.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate offline store: %w", err)
	}

	return &Store{db: db, actorID: actorID}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CachePermissions mirrors the actor's grants so manifest caching and
// validation can be decided without network access.
func (s *Store) CachePermissions(ctx context.Context, grants []entities.ScanPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions`); err != nil {
		return fmt.Errorf("could not clear permissions mirror: %w", err)
	}

	for _, grant := range grants {
		eventIDs, err := json.Marshal([]string(grant.EventIDs))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO permissions
				(permission_id, actor_id, organizer_id, event_ids, can_scan, can_validate,
				 valid_from, valid_until, revoked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			grant.PermissionID, grant.ActorID, grant.OrganizerID, string(eventIDs),
			grant.CanScan, grant.CanValidate, grant.ValidFrom, grant.ValidUntil, grant.RevokedAt)
		if err != nil {
			return fmt.Errorf("could not mirror permission: %w", err)
		}
	}

	return tx.Commit()
}

// CacheManifest persists a signed manifest after two checks: the local
// permission mirror must allow the actor to scan the event, and the
// aggregate signature must corroborate the ordered ticket list. Tickets the
// device already used offline keep their local state until reconciled.
func (s *Store) CacheManifest(ctx context.Context, m entities.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed, err := s.permittedLocked(ctx, m.EventID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrNoPermission
	}

	if !manifest.CorroborateDigest(m) {
		return ErrMalformedManifest
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (event_id, generated_at, expires_at, signature, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET
			generated_at = excluded.generated_at,
			expires_at = excluded.expires_at,
			signature = excluded.signature,
			cached_at = excluded.cached_at`,
		m.EventID, m.GeneratedAt, m.ExpiresAt, m.Signature, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("could not cache manifest: %w", err)
	}

	for _, entry := range m.Entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tickets (ticket_id, event_id, code, status, signature, pending_sync)
			VALUES (?, ?, ?, ?, ?, 0)
			ON CONFLICT (ticket_id) DO UPDATE SET
				code = excluded.code,
				signature = excluded.signature,
				status = CASE WHEN tickets.pending_sync = 1 THEN tickets.status ELSE excluded.status END`,
			entry.TicketID, m.EventID, entry.Code, entry.Status, entry.Signature)
		if err != nil {
			return fmt.Errorf("could not mirror ticket %s: %w", entry.TicketID, err)
		}
	}

	return tx.Commit()
}

// Result is an offline validation decision. When the cached manifest has
// expired the decision is still made on the stale data, but StaleManifest
// is set and the operator should reconnect rather than trust it blindly.
type Result struct {
	Accepted      bool
	Reason        string
	TicketID      string
	Code          string
	PendingSync   bool
	StaleManifest bool
}

type cachedTicket struct {
	TicketID    string `db:"ticket_id"`
	EventID     string `db:"event_id"`
	Code        string `db:"code"`
	Status      string `db:"status"`
	Signature   string `db:"signature"`
	PendingSync bool   `db:"pending_sync"`
}

// ValidateOffline decides from the local mirror alone. Locally queued but
// unsynced check-ins count as used, so the same device never re-accepts a
// ticket it already scanned offline.
func (s *Store) ValidateOffline(ctx context.Context, rawToken string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := sign.DecodeUnverified(rawToken)
	if err != nil {
		return Result{Reason: entities.ReasonUntrustedToken}, nil
	}

	var expiresAt time.Time
	err = s.db.GetContext(ctx, &expiresAt, `
		SELECT expires_at FROM events WHERE event_id = ?`, token.EventID)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNoManifest
	}
	if err != nil {
		return Result{}, fmt.Errorf("could not read cached manifest: %w", err)
	}
	stale := time.Now().UTC().After(expiresAt)

	var ticket cachedTicket
	err = s.db.GetContext(ctx, &ticket, `
		SELECT ticket_id, event_id, code, status, signature, pending_sync
		FROM tickets WHERE ticket_id = ?`, token.TicketID)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{Reason: entities.ReasonNotFound, StaleManifest: stale}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("could not read cached ticket: %w", err)
	}

	if ticket.Code != token.Code || ticket.EventID != token.EventID {
		return Result{Reason: entities.ReasonUntrustedToken, StaleManifest: stale}, nil
	}

	result := Result{
		TicketID:      ticket.TicketID,
		Code:          ticket.Code,
		PendingSync:   ticket.PendingSync,
		StaleManifest: stale,
	}

	switch entities.TicketStatus(ticket.Status) {
	case entities.TicketStatusValid:
		result.Accepted = true
	case entities.TicketStatusUsed:
		result.Reason = entities.ReasonAlreadyUsed
	case entities.TicketStatusCancelled:
		result.Reason = entities.ReasonCancelled
	case entities.TicketStatusTransferred:
		result.Reason = entities.ReasonTransferred
	default:
		result.Reason = entities.ReasonNotFound
	}

	return result, nil
}

// QueueCheckIn appends a check-in to the durable queue and marks the local
// ticket used with pending_sync set. A second queue attempt for the same
// ticket is rejected, whatever its sync state.
func (s *Store) QueueCheckIn(ctx context.Context, ticketID, entryGate, deviceFingerprint string, observedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ticket cachedTicket
	err := s.db.GetContext(ctx, &ticket, `
		SELECT ticket_id, event_id, code, status, signature, pending_sync
		FROM tickets WHERE ticket_id = ?`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("could not read cached ticket: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_checkins
			(checkin_id, ticket_id, event_id, actor_id, entry_gate, device_fingerprint,
			 observed_at, sync_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), ticketID, ticket.EventID, s.actorID, entryGate, deviceFingerprint,
		observedAt.UTC(), entities.SyncStatusPending, time.Now().UTC())
	if isUniqueViolation(err) {
		return ErrAlreadyQueued
	}
	if err != nil {
		return fmt.Errorf("could not queue check-in: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets SET status = ?, pending_sync = 1
		WHERE ticket_id = ?`, entities.TicketStatusUsed, ticketID)
	if err != nil {
		return fmt.Errorf("could not mark cached ticket used: %w", err)
	}

	return tx.Commit()
}

func (s *Store) permittedLocked(ctx context.Context, eventID string) (bool, error) {
	var grants []struct {
		EventIDs    string     `db:"event_ids"`
		CanScan     bool       `db:"can_scan"`
		CanValidate bool       `db:"can_validate"`
		ValidFrom   *time.Time `db:"valid_from"`
		ValidUntil  *time.Time `db:"valid_until"`
		RevokedAt   *time.Time `db:"revoked_at"`
	}
	err := s.db.SelectContext(ctx, &grants, `
		SELECT event_ids, can_scan, can_validate, valid_from, valid_until, revoked_at
		FROM permissions WHERE actor_id = ?`, s.actorID)
	if err != nil {
		return false, fmt.Errorf("could not read permissions mirror: %w", err)
	}

	now := time.Now().UTC()
	for _, grant := range grants {
		var eventIDs []string
		if err := json.Unmarshal([]byte(grant.EventIDs), &eventIDs); err != nil {
			continue
		}
		permission := entities.ScanPermission{
			ActorID:     s.actorID,
			EventIDs:    eventIDs,
			CanScan:     grant.CanScan,
			CanValidate: grant.CanValidate,
			ValidFrom:   grant.ValidFrom,
			ValidUntil:  grant.ValidUntil,
			RevokedAt:   grant.RevokedAt,
		}
		if permission.Covers(eventID, now) && (permission.CanScan || permission.CanValidate) {
			return true, nil
		}
	}

	return false, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc's sqlite driver has no exported error codes for constraint
	// failures that survive the database/sql boundary reliably, so match
	// the message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
