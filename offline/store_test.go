package offline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gatecheck/entities"
	"gatecheck/manifest"
	"gatecheck/sign"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecrets map[string][]byte

func (s staticSecrets) SecretForEvent(_ context.Context, eventID string) ([]byte, error) {
	return s[eventID], nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "device.db"), "actor-1")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func grantFor(eventIDs ...string) entities.ScanPermission {
	return entities.ScanPermission{
		PermissionID: "perm-1",
		ActorID:      "actor-1",
		OrganizerID:  "org-1",
		EventIDs:     eventIDs,
		CanScan:      true,
		CanValidate:  true,
	}
}

func signedManifest(t *testing.T, eventID string, expiresAt time.Time, tickets ...entities.Ticket) entities.Manifest {
	t.Helper()

	signer := sign.NewSigner(staticSecrets{eventID: []byte("secret-one")})
	ctx := context.Background()

	entries := make([]entities.ManifestEntry, 0, len(tickets))
	for _, ticket := range tickets {
		signature, err := signer.Sign(ctx, eventID, []byte(ticket.Code+"|"+string(ticket.Status)))
		require.NoError(t, err)
		entries = append(entries, entities.ManifestEntry{
			TicketID:  ticket.TicketID,
			Code:      ticket.Code,
			Status:    ticket.Status,
			Signature: signature,
		})
	}

	digest := manifest.Digest(entries)
	outer, err := signer.Sign(ctx, eventID, []byte(digest))
	require.NoError(t, err)

	return entities.Manifest{
		EventID:     eventID,
		GeneratedAt: time.Now().UTC(),
		ExpiresAt:   expiresAt,
		Entries:     entries,
		Signature:   digest + "." + outer,
	}
}

func deviceTickets() []entities.Ticket {
	return []entities.Ticket{
		{TicketID: "t-1", EventID: "event-1", Code: "GC-0001", Status: entities.TicketStatusValid},
		{TicketID: "t-2", EventID: "event-1", Code: "GC-0002", Status: entities.TicketStatusUsed},
	}
}

func tokenFor(t *testing.T, ticket entities.Ticket) string {
	t.Helper()

	codec := sign.NewTokenCodec(sign.NewSigner(staticSecrets{ticket.EventID: []byte("secret-one")}), time.Hour)
	raw, err := codec.Issue(context.Background(), ticket)
	require.NoError(t, err)
	return raw
}

func TestCacheManifestRequiresPermission(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := signedManifest(t, "event-1", time.Now().Add(4*time.Hour), deviceTickets()...)

	err := store.CacheManifest(ctx, m)
	assert.ErrorIs(t, err, ErrNoPermission)

	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor("event-1")}))
	assert.NoError(t, store.CacheManifest(ctx, m))
}

func TestCacheManifestRejectsTamperedList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor()}))

	m := signedManifest(t, "event-1", time.Now().Add(4*time.Hour), deviceTickets()...)
	m.Entries[0], m.Entries[1] = m.Entries[1], m.Entries[0]

	assert.ErrorIs(t, store.CacheManifest(ctx, m), ErrMalformedManifest)

	m = signedManifest(t, "event-1", time.Now().Add(4*time.Hour), deviceTickets()...)
	m.Entries = m.Entries[:1]

	assert.ErrorIs(t, store.CacheManifest(ctx, m), ErrMalformedManifest)
}

func TestValidateOfflineDecidesFromMirror(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor()}))

	tickets := deviceTickets()
	m := signedManifest(t, "event-1", time.Now().Add(4*time.Hour), tickets...)
	require.NoError(t, store.CacheManifest(ctx, m))

	result, err := store.ValidateOffline(ctx, tokenFor(t, tickets[0]))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.False(t, result.StaleManifest)

	result, err = store.ValidateOffline(ctx, tokenFor(t, tickets[1]))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, entities.ReasonAlreadyUsed, result.Reason)

	unknown := entities.Ticket{TicketID: "t-9", EventID: "event-1", Code: "GC-0009", Status: entities.TicketStatusValid}
	result, err = store.ValidateOffline(ctx, tokenFor(t, unknown))
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonNotFound, result.Reason)
}

func TestValidateOfflineRejectsCodeMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor()}))

	tickets := deviceTickets()
	m := signedManifest(t, "event-1", time.Now().Add(4*time.Hour), tickets...)
	require.NoError(t, store.CacheManifest(ctx, m))

	forged := tickets[0]
	forged.Code = "GC-9999"

	result, err := store.ValidateOffline(ctx, tokenFor(t, forged))
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonUntrustedToken, result.Reason)
}

func TestValidateOfflineFlagsStaleManifest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor()}))

	tickets := deviceTickets()
	m := signedManifest(t, "event-1", time.Now().Add(-time.Minute), tickets...)
	require.NoError(t, store.CacheManifest(ctx, m))

	result, err := store.ValidateOffline(ctx, tokenFor(t, tickets[0]))
	require.NoError(t, err)

	// The decision is still made, but the operator is told it rests on
	// stale data.
	assert.True(t, result.Accepted)
	assert.True(t, result.StaleManifest)
}

func TestQueueCheckInIsDurableAndExclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor()}))

	tickets := deviceTickets()
	m := signedManifest(t, "event-1", time.Now().Add(4*time.Hour), tickets...)
	require.NoError(t, store.CacheManifest(ctx, m))

	require.NoError(t, store.QueueCheckIn(ctx, "t-1", "north", "device-a", time.Now()))

	err := store.QueueCheckIn(ctx, "t-1", "south", "device-a", time.Now())
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	// The mirror marks the ticket used so the same device refuses a rescan.
	result, err := store.ValidateOffline(ctx, tokenFor(t, tickets[0]))
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonAlreadyUsed, result.Reason)
	assert.True(t, result.PendingSync)
}

func TestRefreshedManifestKeepsUnsyncedLocalState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CachePermissions(ctx, []entities.ScanPermission{grantFor()}))

	tickets := deviceTickets()
	m := signedManifest(t, "event-1", time.Now().Add(4*time.Hour), tickets...)
	require.NoError(t, store.CacheManifest(ctx, m))
	require.NoError(t, store.QueueCheckIn(ctx, "t-1", "north", "device-a", time.Now()))

	// A re-fetched manifest still says valid; the local used state must
	// survive until reconciliation.
	require.NoError(t, store.CacheManifest(ctx, m))

	result, err := store.ValidateOffline(ctx, tokenFor(t, tickets[0]))
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonAlreadyUsed, result.Reason)
	assert.True(t, result.PendingSync)
}
