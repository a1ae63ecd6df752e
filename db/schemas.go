package db

var schema = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

CREATE TABLE IF NOT EXISTS events (
	event_id UUID PRIMARY KEY,
	organizer_id UUID NOT NULL,
	owner_id UUID NOT NULL,
	title VARCHAR(255) NOT NULL,
	starts_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS event_secrets (
	event_id UUID NOT NULL REFERENCES events (event_id),
	secret BYTEA NOT NULL,
	rotated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS event_secrets_event_idx ON event_secrets (event_id, rotated_at DESC);

CREATE TABLE IF NOT EXISTS tickets (
	ticket_id UUID PRIMARY KEY,
	event_id UUID NOT NULL REFERENCES events (event_id),
	booking_id UUID NOT NULL,
	code VARCHAR(32) NOT NULL,
	holder_name VARCHAR(255) NOT NULL,
	holder_email VARCHAR(255) NOT NULL,
	price_amount NUMERIC(10, 2) NOT NULL,
	price_currency CHAR(3) NOT NULL,
	seat_label VARCHAR(64) NOT NULL DEFAULT '',
	status VARCHAR(16) NOT NULL DEFAULT 'valid',
	version INT NOT NULL DEFAULT 0,
	used_at TIMESTAMPTZ,
	used_by UUID,
	entry_gate VARCHAR(64),
	device_fingerprint VARCHAR(128),
	deleted_at TIMESTAMPTZ,
	UNIQUE (event_id, code)
);

CREATE TABLE IF NOT EXISTS scan_permissions (
	permission_id UUID PRIMARY KEY,
	actor_id UUID NOT NULL,
	organizer_id UUID NOT NULL,
	event_ids UUID[] NOT NULL DEFAULT '{}',
	can_scan BOOLEAN NOT NULL DEFAULT false,
	can_validate BOOLEAN NOT NULL DEFAULT false,
	valid_from TIMESTAMPTZ,
	valid_until TIMESTAMPTZ,
	revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS scan_permissions_actor_idx ON scan_permissions (actor_id);

CREATE TABLE IF NOT EXISTS pending_checkins (
	checkin_id UUID PRIMARY KEY,
	ticket_id UUID NOT NULL,
	event_id UUID NOT NULL,
	actor_id UUID NOT NULL,
	entry_gate VARCHAR(64) NOT NULL DEFAULT '',
	device_fingerprint VARCHAR(128) NOT NULL DEFAULT '',
	observed_at TIMESTAMPTZ NOT NULL,
	sync_status VARCHAR(16) NOT NULL DEFAULT 'pending',
	attempts INT NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS pending_checkins_status_idx ON pending_checkins (sync_status);

CREATE TABLE IF NOT EXISTS read_model_checkin_batches (
	batch_id UUID PRIMARY KEY,
	payload JSONB NOT NULL
);
`
