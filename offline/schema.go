package offline

var schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id TEXT PRIMARY KEY,
	generated_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	signature TEXT NOT NULL,
	cached_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tickets (
	ticket_id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	code TEXT NOT NULL,
	status TEXT NOT NULL,
	signature TEXT NOT NULL,
	pending_sync INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS tickets_event_idx ON tickets (event_id);
CREATE INDEX IF NOT EXISTS tickets_code_idx ON tickets (event_id, code);

CREATE TABLE IF NOT EXISTS pending_checkins (
	checkin_id TEXT PRIMARY KEY,
	ticket_id TEXT NOT NULL UNIQUE,
	event_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	entry_gate TEXT NOT NULL DEFAULT '',
	device_fingerprint TEXT NOT NULL DEFAULT '',
	observed_at TIMESTAMP NOT NULL,
	sync_status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS pending_checkins_status_idx ON pending_checkins (sync_status);

CREATE TABLE IF NOT EXISTS permissions (
	permission_id TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL,
	organizer_id TEXT NOT NULL,
	event_ids TEXT NOT NULL DEFAULT '[]',
	can_scan INTEGER NOT NULL DEFAULT 0,
	can_validate INTEGER NOT NULL DEFAULT 0,
	valid_from TIMESTAMP,
	valid_until TIMESTAMP,
	revoked_at TIMESTAMP
);
`
